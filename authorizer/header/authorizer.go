package header

import (
	"net/http"
	"strings"

	"github.com/w-h-a/companion/authorizer"
)

// headerAuthorizer trusts a user id set by an upstream proxy.
type headerAuthorizer struct {
	options authorizer.Options
}

func (a *headerAuthorizer) Authorize(r *http.Request) (string, error) {
	userId := strings.TrimSpace(r.Header.Get(a.options.Header))
	if len(userId) == 0 {
		return "", authorizer.ErrUnauthorized
	}
	return userId, nil
}

func NewAuthorizer(opts ...authorizer.Option) authorizer.Authorizer {
	options := authorizer.NewOptions(opts...)

	return &headerAuthorizer{
		options: options,
	}
}
