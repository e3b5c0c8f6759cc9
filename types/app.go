package types

import (
	"fmt"
	"time"
)

// Environment contract a served app reads its bind settings from. Both
// variables are written once before the server process starts and never
// touched again.
const (
	EnvBindAddress = "SERVER_BIND_ADDRESS"
	EnvBindPort    = "SERVER_BIND_PORT"
)

// App holds the deployable configuration for a dashboard application.
type App struct {
	Name           string            `yaml:"name" json:"name" env:"NAME"`                                                          // Unique identifier, also used for the image and container names
	Source         string            `yaml:"source" json:"source" env:"SOURCE"`                                                    // Directory containing the app's code and manifest
	BaseImage      string            `yaml:"base_image" json:"base_image" env:"BASE_IMAGE"`                                        // Base image the app image is built from
	Entrypoint     []string          `yaml:"entrypoint" json:"entrypoint" env:"ENTRYPOINT" envSeparator:" "`                       // Command that serves the app in the foreground
	Manifest       string            `yaml:"manifest" json:"manifest" env:"MANIFEST"`                                              // Dependency manifest path, relative to Source
	BindAddress    string            `yaml:"bind_address" json:"bind_address" env:"BIND_ADDRESS"`                                  // Address the served process binds to
	BindPort       int               `yaml:"bind_port" json:"bind_port" env:"BIND_PORT"`                                           // Port the served process listens on, the single exposed port
	PublishPort    int               `yaml:"publish_port" json:"publish_port" env:"PUBLISH_PORT"`                                  // Host port the container port is published on
	Env            map[string]string `yaml:"env" json:"env,omitempty" env:"ENV" envSeparator:"," envKeyValSeparator:"="`           // Extra environment passed to the served process
	Volumes        []string          `yaml:"volumes" json:"volumes,omitempty" env:"VOLUMES" envSeparator:","`                      // Host bind mounts in docker's host:container form
	HealthPath     string            `yaml:"health_path" json:"health_path" env:"HEALTH_PATH"`                                     // HTTP path probed for readiness
	StartupTimeout int               `yaml:"startup_timeout" json:"startup_timeout" env:"STARTUP_TIMEOUT"`                         // Seconds the app gets to become ready after start
}

// StartupWindow returns the readiness window as a duration.
func (a App) StartupWindow() time.Duration {
	return time.Duration(a.StartupTimeout) * time.Second
}

// ContainerName returns the fixed container name for the app.
func (a App) ContainerName() string {
	return "plinth-" + a.Name
}

// PortSpec returns the container port in docker's port/proto form.
func (a App) PortSpec() string {
	return fmt.Sprintf("%d/tcp", a.BindPort)
}
