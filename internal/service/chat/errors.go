package chat

import (
	"errors"

	"github.com/w-h-a/companion/authorizer"
	"github.com/w-h-a/companion/internal/service/session"
)

var (
	ErrUnauthorized  = authorizer.ErrUnauthorized
	ErrRateLimited   = errors.New("rate limited")
	ErrNotFound      = errors.New("not found")
	ErrValidation    = errors.New("validation failed")
	ErrStreamFailure = session.ErrStreamFailure
	ErrFatal         = session.ErrFatal
)
