package pipeline

import (
	"errors"
	"fmt"
)

// ErrUnsupportedLayout is wrapped by every SpecializationError.
var ErrUnsupportedLayout = errors.New("unsupported vertex layout")

// SpecializationError reports that no pipeline variant exists for a key and
// layout. Callers skip the affected draw; the frame goes on.
type SpecializationError struct {
	Key       Key
	LayoutKey string
	Reason    string
}

func (e *SpecializationError) Error() string {
	return fmt.Sprintf("specialize pipeline (%s, layout %s): %s", e.Key, e.LayoutKey, e.Reason)
}

func (e *SpecializationError) Unwrap() error {
	return ErrUnsupportedLayout
}
