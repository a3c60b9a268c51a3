package source

import (
	"errors"
	"fmt"
)

// ErrUnknownDescriptor is returned for a Descriptor implementation the
// resolver does not know how to materialize.
var ErrUnknownDescriptor = errors.New("unknown source descriptor")

// ResolutionError reports a failure to materialize a source: network or
// auth problems, a missing ref, or a missing local path.
type ResolutionError struct {
	Kind   Kind
	Target string
	Err    error
}

func (e *ResolutionError) Error() string {
	return fmt.Sprintf("resolve %s source %s: %v", e.Kind, e.Target, e.Err)
}

func (e *ResolutionError) Unwrap() error { return e.Err }
