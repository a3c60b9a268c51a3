package machine

import "fmt"

// SandboxError reports a failure of the container engine itself, as
// opposed to a build script that ran and exited non-zero.
type SandboxError struct {
	Op    string
	Image string
	Err   error
}

func (e *SandboxError) Error() string {
	return fmt.Sprintf("sandbox %s (%s): %v", e.Op, e.Image, e.Err)
}

func (e *SandboxError) Unwrap() error { return e.Err }
