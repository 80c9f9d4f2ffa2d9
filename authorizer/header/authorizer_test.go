package header

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/w-h-a/companion/authorizer"
)

func TestAuthorizer(t *testing.T) {
	a := NewAuthorizer()

	r := httptest.NewRequest("POST", "/api/chat/ada", nil)
	_, err := a.Authorize(r)
	assert.ErrorIs(t, err, authorizer.ErrUnauthorized)

	r.Header.Set("X-User-Id", " u1 ")
	userId, err := a.Authorize(r)
	require.NoError(t, err)
	assert.Equal(t, "u1", userId)

	custom := NewAuthorizer(authorizer.WithHeader("X-Forwarded-User"))
	r.Header.Set("X-Forwarded-User", "u2")
	userId, err = custom.Authorize(r)
	require.NoError(t, err)
	assert.Equal(t, "u2", userId)
}
