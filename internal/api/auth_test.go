package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"convochat/internal/types"

	"github.com/stretchr/testify/assert"
)

func TestUserId(t *testing.T) {
	tcases := []struct {
		name       string
		ctx        context.Context
		expectedId int
		expectedOk bool
	}{
		{
			name:       "user id present",
			ctx:        WithUserId(context.Background(), 1),
			expectedId: 1,
			expectedOk: true,
		},
		{
			name:       "user id absent",
			ctx:        context.Background(),
			expectedId: 0,
			expectedOk: false,
		},
		{
			name:       "wrong type under key",
			ctx:        context.WithValue(context.Background(), userIdKey, "1"),
			expectedId: 0,
			expectedOk: false,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			id, ok := UserId(tc.ctx)
			assert.Equal(t, tc.expectedOk, ok, "expected ok to be %t", tc.expectedOk)
			assert.Equal(t, tc.expectedId, id, "expected user id to be %d", tc.expectedId)
		})
	}
}

func Test_bearerToken(t *testing.T) {
	tcases := []struct {
		name      string
		setup     func(r *http.Request)
		expected  string
		expectErr bool
	}{
		{
			name: "cookie",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "cookie-token"})
			},
			expected: "cookie-token",
		},
		{
			name: "authorization header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "Bearer header-token")
			},
			expected: "header-token",
		},
		{
			name: "query parameter",
			setup: func(r *http.Request) {
				q := r.URL.Query()
				q.Set("token", "query-token")
				r.URL.RawQuery = q.Encode()
			},
			expected: "query-token",
		},
		{
			name: "cookie takes precedence over header",
			setup: func(r *http.Request) {
				r.AddCookie(&http.Cookie{Name: tokenCookieKey, Value: "cookie-token"})
				r.Header.Set("Authorization", "Bearer header-token")
			},
			expected: "cookie-token",
		},
		{
			name: "malformed authorization header",
			setup: func(r *http.Request) {
				r.Header.Set("Authorization", "header-token")
			},
			expectErr: true,
		},
		{
			name:      "no credential",
			setup:     func(r *http.Request) {},
			expectErr: true,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			r, err := http.NewRequest(http.MethodGet, "/ws", nil)
			assert.NoError(t, err, "expected request to be created")
			tc.setup(r)

			token, err := bearerToken(r)
			if tc.expectErr {
				assert.Error(t, err, "expected an error extracting credential")
				return
			}

			assert.NoError(t, err, "expected no error extracting credential")
			assert.Equal(t, tc.expected, token, "expected extracted token to match")
		})
	}
}

func Test_hashPassword_verifyPassword(t *testing.T) {
	hash, err := hashPassword("hunter2")
	assert.NoError(t, err, "expected password to hash")
	assert.NotEqual(t, "hunter2", hash, "expected hash to differ from plaintext")

	assert.True(t, verifyPassword(hash, "hunter2"), "expected correct password to verify")
	assert.False(t, verifyPassword(hash, "wrong"), "expected wrong password to fail verification")
}

func TestJwtRoundTrip(t *testing.T) {
	s := &ConvoApp{signingKey: []byte("test-signing-key")}

	token, err := s.createJwtForSession(types.User{Id: 42}, defaultJwtExpiration)
	assert.NoError(t, err, "expected token to be created")

	userId, err := s.extractUserIdFromToken(token)
	assert.NoError(t, err, "expected token to verify")
	assert.Equal(t, 42, userId, "expected user id claim to round trip")
}

func TestExtractUserIdFromToken_Invalid(t *testing.T) {
	s := &ConvoApp{signingKey: []byte("test-signing-key")}

	t.Run("garbage token", func(t *testing.T) {
		_, err := s.extractUserIdFromToken("not-a-token")
		assert.Error(t, err, "expected garbage token to be rejected")
	})

	t.Run("wrong signing key", func(t *testing.T) {
		other := &ConvoApp{signingKey: []byte("other-key")}
		token, err := other.createJwtForSession(types.User{Id: 42}, defaultJwtExpiration)
		assert.NoError(t, err, "expected token to be created")

		_, err = s.extractUserIdFromToken(token)
		assert.Error(t, err, "expected token signed with another key to be rejected")
	})

	t.Run("expired token", func(t *testing.T) {
		token, err := s.createJwtForSession(types.User{Id: 42}, -time.Minute)
		assert.NoError(t, err, "expected token to be created")

		_, err = s.extractUserIdFromToken(token)
		assert.Error(t, err, "expected expired token to be rejected")
	})
}

func Test_createJwtCookie(t *testing.T) {
	cookie := createJwtCookie("test-token", time.Hour)
	assert.Equal(t, tokenCookieKey, cookie.Name, "expected cookie name to match")
	assert.Equal(t, "test-token", cookie.Value, "expected cookie value to match")
	assert.True(t, cookie.HttpOnly, "expected cookie to be http only")
	assert.Equal(t, http.SameSiteStrictMode, cookie.SameSite, "expected strict same site policy")
	assert.Equal(t, "/", cookie.Path, "expected cookie path to cover the api")
}
