// Package delivery classifies sender failures. Anything not marked
// permanent is treated as transient and retried by the delivery state
// machine.
package delivery

import "errors"

// PermanentError marks a delivery failure that no retry can fix, such
// as a permanently invalid recipient.
type PermanentError struct {
	Err error
}

func (e *PermanentError) Error() string {
	return "permanent delivery failure: " + e.Err.Error()
}

func (e *PermanentError) Unwrap() error {
	return e.Err
}

// Permanent wraps err as non-retryable. A nil err stays nil.
func Permanent(err error) error {
	if err == nil {
		return nil
	}

	return &PermanentError{Err: err}
}

// IsPermanent reports whether err carries a PermanentError anywhere in
// its chain.
func IsPermanent(err error) bool {
	var pe *PermanentError
	return errors.As(err, &pe)
}
