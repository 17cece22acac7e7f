package chain

import (
	"errors"
	"fmt"
)

// FetchError reports that the event source could not be reached or answered
// with something unusable. The same request may succeed on a later attempt.
type FetchError struct {
	Op     string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Op, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsFetchError reports whether err came from the event source.
func IsFetchError(err error) bool {
	var fe *FetchError
	return errors.As(err, &fe)
}
