package domain

import "errors"

// Domain errors. Business-rule declines are carried in results, not here;
// these cover infrastructure and request-shape failures only.
var (
	ErrStateNotFound  = errors.New("player state not found")
	ErrInvalidRequest = errors.New("invalid request")
	ErrInternalError  = errors.New("internal server error")
)

// IsRequestError reports whether the error stems from a malformed request
// rather than an infrastructure failure.
func IsRequestError(err error) bool {
	return errors.Is(err, ErrInvalidRequest)
}
