package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"connectrpc.com/connect"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mmynk/circles/internal/auth"
	"github.com/mmynk/circles/internal/models"
	"github.com/mmynk/circles/internal/session"
)

type empty struct{}

var alice = models.Profile{FullName: "Alice Smith", Email: "alice@example.com"}

// captureNext records the context the wrapped handler was called with.
func captureNext(got *context.Context) connect.UnaryFunc {
	return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		*got = ctx
		return connect.NewResponse(&empty{}), nil
	}
}

func newRequest(authHeader string) *connect.Request[empty] {
	req := connect.NewRequest(&empty{})
	if authHeader != "" {
		req.Header().Set("Authorization", authHeader)
	}
	return req
}

func TestRequireAuth(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	revoker := session.NewMemoryRevoker()
	interceptor := RequireAuth(jwtManager, revoker)

	token, err := jwtManager.Generate(alice)
	require.NoError(t, err)

	t.Run("valid token populates session", func(t *testing.T) {
		var got context.Context
		_, err := interceptor(captureNext(&got))(context.Background(), newRequest("Bearer "+token))
		require.NoError(t, err)

		profile, ok := SessionFrom(got).Get()
		assert.True(t, ok)
		assert.Equal(t, alice, profile)

		claims := ClaimsFrom(got)
		require.NotNil(t, claims)
		assert.NotEmpty(t, claims.ID)
	})

	rejected := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic " + token},
		{"no token", "Bearer "},
		{"garbage token", "Bearer not-a-jwt"},
	}
	for _, tt := range rejected {
		t.Run(tt.name, func(t *testing.T) {
			var got context.Context
			_, err := interceptor(captureNext(&got))(context.Background(), newRequest(tt.header))
			assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
			assert.Nil(t, got, "next must not run")
		})
	}

	t.Run("revoked token", func(t *testing.T) {
		claims, err := jwtManager.Validate(token)
		require.NoError(t, err)
		require.NoError(t, revoker.Revoke(context.Background(), claims.ID, claims.Expiry()))

		var got context.Context
		_, err = interceptor(captureNext(&got))(context.Background(), newRequest("Bearer "+token))
		assert.Equal(t, connect.CodeUnauthenticated, connect.CodeOf(err))
		assert.Nil(t, got)
	})
}

type failingRevoker struct{}

func (failingRevoker) Revoke(context.Context, string, time.Time) error { return nil }
func (failingRevoker) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func TestRequireAuth_RevokerUnavailable(t *testing.T) {
	jwtManager := auth.NewJWTManager("test-secret", time.Hour)
	token, err := jwtManager.Generate(alice)
	require.NoError(t, err)

	var got context.Context
	_, err = RequireAuth(jwtManager, failingRevoker{})(captureNext(&got))(context.Background(), newRequest("Bearer "+token))
	assert.Equal(t, connect.CodeUnavailable, connect.CodeOf(err))
	assert.Nil(t, got)
}

func TestSessionFrom_Missing(t *testing.T) {
	sess := SessionFrom(context.Background())
	require.NotNil(t, sess)
	assert.False(t, sess.Authenticated())
	assert.Nil(t, ClaimsFrom(context.Background()))
}

func TestInterceptorsPassThrough(t *testing.T) {
	boom := connect.NewError(connect.CodeNotFound, errors.New("no such circle"))
	failing := func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
		return nil, boom
	}

	for name, interceptor := range map[string]connect.UnaryInterceptorFunc{
		"logging": LoggingInterceptor(),
		"metrics": MetricsInterceptor(),
	} {
		t.Run(name, func(t *testing.T) {
			var got context.Context
			resp, err := interceptor(captureNext(&got))(context.Background(), newRequest(""))
			assert.NoError(t, err)
			assert.NotNil(t, resp)
			assert.NotNil(t, got)

			_, err = interceptor(failing)(context.Background(), newRequest(""))
			assert.Equal(t, connect.CodeNotFound, connect.CodeOf(err))
		})
	}
}

func TestRequestLogger(t *testing.T) {
	handler := RequestLogger(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
