package cloudflare

import (
	"context"

	"plinth/logger"
	"plinth/types"
)

// Manager decides when an app's domain is published: only when publishing is
// enabled and subdomains are auto-generated. Deletion is not gated on
// auto-generation, a record that exists must be removable.
type Manager struct {
	client  *Client
	autoGen bool
	log     *logger.Logger
}

// NewManager wires a Manager from the domain configuration.
func NewManager(config types.DomainConfig, log *logger.Logger) (*Manager, error) {
	client, err := NewClient(config, log)
	if err != nil {
		return nil, err
	}
	return &Manager{
		client:  client,
		autoGen: config.AutoGenerateEnabled(),
		log:     log,
	}, nil
}

// IsEnabled reports whether real DNS records are managed.
func (m *Manager) IsEnabled() bool {
	return m.client.Enabled()
}

// Publish creates the app's domain when publishing applies. It returns nil
// without error when publishing is skipped.
func (m *Manager) Publish(ctx context.Context, appName string) (*types.AppDomain, error) {
	if !m.client.Enabled() {
		return nil, nil
	}
	if !m.autoGen {
		m.log.Debug().Str("app", appName).Msg("domain auto-generation disabled, skipping publish")
		return nil, nil
	}
	return m.client.PublishApp(ctx, appName)
}

// Unpublish removes the app's DNS record, tolerating one that was never
// created.
func (m *Manager) Unpublish(ctx context.Context, appName, recordID string) error {
	return m.client.UnpublishApp(ctx, appName, recordID)
}
