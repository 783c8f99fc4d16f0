package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/anchal79/StudySphere-Collaborative-Study-Hub/internal/types"
)

func TestUserId(t *testing.T) {
	tcases := []struct {
		name     string
		ctx      context.Context
		userId   string
		expected bool
	}{
		{
			name:     "no user ID",
			ctx:      context.Background(),
			expected: false,
		},
		{
			name:     "user ID set",
			ctx:      WithUserId(context.Background(), "u42"),
			userId:   "u42",
			expected: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			userId, ok := UserId(tc.ctx)
			assert.Equal(t, tc.expected, ok, "expected UserId to return %v", tc.expected)
			assert.Equal(t, tc.userId, userId, "expected UserId to return %q", tc.userId)
		})
	}
}

func Test_bearerToken(t *testing.T) {
	tcases := []struct {
		name     string
		header   string
		query    string
		expected string
	}{
		{
			name:     "authorization header",
			header:   "Bearer some-token",
			expected: "some-token",
		},
		{
			name:     "malformed header",
			header:   "Basic dXNlcjpwYXNz",
			expected: "",
		},
		{
			name:     "query parameter fallback",
			query:    "query-token",
			expected: "query-token",
		},
		{
			name:     "header wins over query",
			header:   "Bearer header-token",
			query:    "query-token",
			expected: "header-token",
		},
		{
			name:     "no credential",
			expected: "",
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			target := "/"
			if tc.query != "" {
				target = "/?token=" + tc.query
			}
			req := httptest.NewRequest(http.MethodGet, target, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}

			assert.Equal(t, tc.expected, bearerToken(req), "expected extracted token to match")
		})
	}
}

func Test_jwtRoundTrip(t *testing.T) {
	app := &StudySphereApp{signingKey: []byte("test-signing-key")}

	user := types.User{Id: "u1", Username: "testuser"}
	token, err := app.createJwtForSession(user, defaultJwtExpiration)
	assert.NoError(t, err, "expected token to be created")

	userId, err := app.extractUserIdFromToken(token)
	assert.NoError(t, err, "expected token to verify")
	assert.Equal(t, user.Id, userId, "expected user id claim to round trip")

	t.Run("rejects garbage token", func(t *testing.T) {
		_, err := app.extractUserIdFromToken("invalid-token")
		assert.Error(t, err, "expected invalid token to be rejected")
	})

	t.Run("rejects token signed with another key", func(t *testing.T) {
		other := &StudySphereApp{signingKey: []byte("another-key")}
		token, err := other.createJwtForSession(user, defaultJwtExpiration)
		assert.NoError(t, err)

		_, err = app.extractUserIdFromToken(token)
		assert.Error(t, err, "expected foreign token to be rejected")
	})

	t.Run("rejects expired token", func(t *testing.T) {
		token, err := app.createJwtForSession(user, -defaultJwtExpiration)
		assert.NoError(t, err)

		_, err = app.extractUserIdFromToken(token)
		assert.Error(t, err, "expected expired token to be rejected")
	})
}

func Test_hashAndVerifyPassword(t *testing.T) {
	hash, err := hashPassword("correct horse battery staple")
	assert.NoError(t, err, "expected password to hash")
	assert.NotEqual(t, "correct horse battery staple", hash, "expected hash to differ from plaintext")

	assert.True(t, verifyPassword(hash, "correct horse battery staple"), "expected matching password to verify")
	assert.False(t, verifyPassword(hash, "wrong password"), "expected mismatched password to fail")
}
