package config

import "errors"

// Validation errors returned by Load when the merged configuration is
// unusable.
var (
	ErrMissingAppName        = errors.New("app name is empty")
	ErrMissingEntrypoint     = errors.New("app entrypoint is empty")
	ErrMissingInstaller      = errors.New("installer command is empty")
	ErrInvalidBindPort       = errors.New("bind port out of range")
	ErrInvalidPublishPort    = errors.New("publish port out of range")
	ErrManifestOutsideSource = errors.New("manifest path must stay inside the source directory")
	// ErrIncompleteDomain indicates DNS publishing was enabled without the
	// credentials it needs.
	ErrIncompleteDomain = errors.New("domain publishing enabled without api_token, zone_id and base_domain")
)
