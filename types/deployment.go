package types

import "time"

// DeploymentRecord holds what is known about an app's latest deployment. The
// daemon remains the source of truth for live container state; the record is
// what survives between invocations of the tool.
type DeploymentRecord struct {
	ID             string         `json:"id"`                         // Stable record identifier
	App            string         `json:"app"`                        // App name the record belongs to
	Image          string         `json:"image"`                      // Image tag the container was created from
	ManifestDigest string         `json:"manifest_digest,omitempty"`  // Digest of the manifest baked into the image
	ContainerID    string         `json:"container_id,omitempty"`     // ID of the last created container
	ContainerName  string         `json:"container_name,omitempty"`   // Name of the last created container
	HostPort       int            `json:"host_port,omitempty"`        // Host port the app was published on
	Domain         string         `json:"domain,omitempty"`           // Published domain, when DNS publishing is enabled
	DomainRecordID string         `json:"domain_record_id,omitempty"` // DNS record ID, needed to unpublish later
	Status         ContainerState `json:"status"`                     // Last observed container state
	ExitCode       int            `json:"exit_code,omitempty"`        // Exit code of the served process when Status is exited
	CreatedAt      time.Time      `json:"created_at"`
	UpdatedAt      time.Time      `json:"updated_at"`
}
