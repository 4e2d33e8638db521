package matching

import "fmt"

// InputError marks a request rejected before any provider call was made.
type InputError struct {
	Reason string
}

func (e *InputError) Error() string {
	return e.Reason
}

func newInputError(format string, args ...any) *InputError {
	return &InputError{Reason: fmt.Sprintf(format, args...)}
}
