package builder

import (
	"errors"
	"fmt"
	"strings"
)

// ErrBuildDirBusy is returned when another build holds the build directory.
var ErrBuildDirBusy = errors.New("build directory is in use by another build")

// BuildScriptFailure reports a build script that ran and exited non-zero.
type BuildScriptFailure struct {
	ExitCode int
	Tail     []string
}

func (e *BuildScriptFailure) Error() string {
	msg := fmt.Sprintf("build script exited with code %d", e.ExitCode)
	if len(e.Tail) > 0 {
		msg += ":\n  " + strings.Join(e.Tail, "\n  ")
	}
	return msg
}

// ArtifactMissingError reports a successful script run that left no
// matching, non-empty package behind.
type ArtifactMissingError struct {
	Dir     string
	Pattern string
}

func (e *ArtifactMissingError) Error() string {
	return fmt.Sprintf("no package matching %s in %s", e.Pattern, e.Dir)
}
