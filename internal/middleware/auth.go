package middleware

import (
	"context"
	"log/slog"
	"strings"

	"connectrpc.com/connect"

	"github.com/mmynk/circles/internal/auth"
	"github.com/mmynk/circles/internal/session"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// SessionKey is the context key for the caller's *session.Context.
	SessionKey contextKey = "session"
	// ClaimsKey is the context key for the validated token claims.
	ClaimsKey contextKey = "claims"
)

// SessionFrom returns the session placed in ctx by RequireAuth.
// Returns a fresh unauthenticated session if none is present.
func SessionFrom(ctx context.Context) *session.Context {
	if sess, ok := ctx.Value(SessionKey).(*session.Context); ok {
		return sess
	}
	return session.New()
}

// ClaimsFrom returns the token claims placed in ctx by RequireAuth, or nil.
func ClaimsFrom(ctx context.Context) *auth.Claims {
	claims, _ := ctx.Value(ClaimsKey).(*auth.Claims)
	return claims
}

// WithSession returns a copy of ctx carrying sess and claims.
func WithSession(ctx context.Context, sess *session.Context, claims *auth.Claims) context.Context {
	ctx = context.WithValue(ctx, SessionKey, sess)
	return context.WithValue(ctx, ClaimsKey, claims)
}

// RequireAuth returns a middleware that validates JWT tokens and requires authentication.
// It extracts the bearer token, validates it, rejects revoked tokens, and
// rebuilds the caller's session from the profile the token carries.
func RequireAuth(jwtManager *auth.JWTManager, revoker session.Revoker) connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			authHeader := req.Header().Get("Authorization")
			if authHeader == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
			}

			scheme, tokenString, ok := strings.Cut(authHeader, " ")
			if !ok || !strings.EqualFold(scheme, "Bearer") || tokenString == "" {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			claims, err := jwtManager.Validate(tokenString)
			if err != nil {
				slog.Warn("Rejected token", "procedure", req.Spec().Procedure, "error", err)
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			revoked, err := revoker.IsRevoked(ctx, claims.ID)
			if err != nil {
				slog.Error("Revocation check failed", "error", err)
				return nil, connect.NewError(connect.CodeUnavailable, err)
			}
			if revoked {
				return nil, connect.NewError(connect.CodeUnauthenticated, auth.ErrInvalidToken)
			}

			sess := session.NewAuthenticated(claims.Profile)
			return next(WithSession(ctx, sess, claims), req)
		}
	}
}
