package trading

import "errors"

// TransientError marks a failure that may succeed on a later attempt:
// network errors, timeouts, 5xx responses and rate limiting.
type TransientError struct {
	Err error
}

func (te *TransientError) Error() string {
	return te.Err.Error()
}

func (te *TransientError) Unwrap() error {
	return te.Err
}

// AuthError marks a signature, timestamp or credential rejection. It is
// never retried; the loop must suspend order dispatch until credentials
// are confirmed valid.
type AuthError struct {
	Err error
}

func (ae *AuthError) Error() string {
	return ae.Err.Error()
}

func (ae *AuthError) Unwrap() error {
	return ae.Err
}

func IsTransient(err error) bool {
	var transientError *TransientError
	return errors.As(err, &transientError)
}

func IsAuthFailure(err error) bool {
	var authError *AuthError
	return errors.As(err, &authError)
}
