package oidc

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/w-h-a/companion/authorizer"
)

// oidcAuthorizer accepts bearer id tokens from one issuer and uses the
// subject claim as the user id.
type oidcAuthorizer struct {
	options  authorizer.Options
	verifier *oidc.IDTokenVerifier
}

func (a *oidcAuthorizer) Authorize(r *http.Request) (string, error) {
	raw, ok := bearer(r)
	if !ok {
		return "", authorizer.ErrUnauthorized
	}

	token, err := a.verifier.Verify(r.Context(), raw)
	if err != nil {
		slog.DebugContext(r.Context(), "rejected id token", "error", err)
		return "", fmt.Errorf("%w: %w", authorizer.ErrUnauthorized, err)
	}

	if len(token.Subject) == 0 {
		return "", authorizer.ErrUnauthorized
	}

	return token.Subject, nil
}

func bearer(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, found := strings.Cut(h, " ")
	if !found || !strings.EqualFold(scheme, "bearer") || len(strings.TrimSpace(token)) == 0 {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func NewAuthorizer(opts ...authorizer.Option) authorizer.Authorizer {
	options := authorizer.NewOptions(opts...)

	if len(options.Issuer) == 0 || len(options.ClientId) == 0 {
		panic("missing issuer or client id for oidc authorizer")
	}

	provider, err := oidc.NewProvider(context.Background(), options.Issuer)
	if err != nil {
		detail := "failed to discover issuer for oidc authorizer"
		slog.ErrorContext(context.Background(), detail, "error", err)
		panic(detail)
	}

	a := &oidcAuthorizer{
		options:  options,
		verifier: provider.Verifier(&oidc.Config{ClientID: options.ClientId}),
	}

	return a
}
