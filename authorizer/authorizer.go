package authorizer

import (
	"errors"
	"net/http"
)

var ErrUnauthorized = errors.New("unauthorized")

// Authorizer resolves the calling user from a request.
type Authorizer interface {
	Authorize(r *http.Request) (string, error)
}
