package image

import "fmt"

// BuildError reports a failed image build: a Dockerfile step failed or a
// declared dependency could not be installed. No image tag exists when it is
// returned.
type BuildError struct {
	Image  string // tag the build was producing
	Detail string // the daemon's error message, when it sent one
	Err    error
}

func (e *BuildError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("build of %s failed: %s", e.Image, e.Detail)
	}
	return fmt.Sprintf("build of %s failed: %v", e.Image, e.Err)
}

func (e *BuildError) Unwrap() error {
	return e.Err
}
