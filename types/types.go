package types

// ContainerState represents the possible states of an app's container
type ContainerState string

const (
	// Container lifecycle states
	StateIdle     ContainerState = "idle"     // Not started yet
	StateStarting ContainerState = "starting" // Created and waiting for readiness
	StateRunning  ContainerState = "running"  // Running and ready
	StateStopping ContainerState = "stopping" // In process of stopping
	StateStopped  ContainerState = "stopped"  // Stopped by the operator
	StateExited   ContainerState = "exited"   // Served process exited on its own
)
