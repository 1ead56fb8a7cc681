package rpc

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/circles/internal/auth"
	"github.com/mmynk/circles/internal/middleware"
	"github.com/mmynk/circles/internal/models"
	"github.com/mmynk/circles/internal/service"
	"github.com/mmynk/circles/internal/session"
)

// AccountHandler implements circles.v1.AccountService.
type AccountHandler struct {
	users      *service.UserService
	jwtManager *auth.JWTManager
	revoker    session.Revoker
	logger     *slog.Logger
}

// NewAccountHandler creates a new account handler.
func NewAccountHandler(users *service.UserService, jwtManager *auth.JWTManager, revoker session.Revoker, logger *slog.Logger) *AccountHandler {
	return &AccountHandler{
		users:      users,
		jwtManager: jwtManager,
		revoker:    revoker,
		logger:     logger,
	}
}

// Register creates a new user account and returns a token for it.
func (h *AccountHandler) Register(ctx context.Context, req *connect.Request[RegisterRequest]) (*connect.Response[RegisterResponse], error) {
	sess := session.New()
	_, err := h.users.Register(ctx, sess, service.RegisterInput{
		FullName:        req.Msg.FullName,
		Email:           req.Msg.Email,
		Phone:           req.Msg.Phone,
		Address:         req.Msg.Address,
		Age:             req.Msg.Age,
		Password:        req.Msg.Password,
		ConfirmPassword: req.Msg.ConfirmPassword,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	profile, token, err := h.issue(sess)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&RegisterResponse{Profile: profile, Token: token}), nil
}

// Login authenticates a user and returns a JWT token.
func (h *AccountHandler) Login(ctx context.Context, req *connect.Request[LoginRequest]) (*connect.Response[LoginResponse], error) {
	sess := session.New()
	if _, err := h.users.Authenticate(ctx, sess, req.Msg.Email, req.Msg.Password); err != nil {
		return nil, toConnectError(err)
	}

	profile, token, err := h.issue(sess)
	if err != nil {
		return nil, err
	}
	return connect.NewResponse(&LoginResponse{Profile: profile, Token: token}), nil
}

// Logout revokes the caller's token and clears the session.
func (h *AccountHandler) Logout(ctx context.Context, req *connect.Request[LogoutRequest]) (*connect.Response[LogoutResponse], error) {
	if err := h.revokeCurrent(ctx); err != nil {
		return nil, err
	}
	h.users.Logout(middleware.SessionFrom(ctx))
	return connect.NewResponse(&LogoutResponse{}), nil
}

// GetProfile returns the caller's stored profile.
func (h *AccountHandler) GetProfile(ctx context.Context, req *connect.Request[GetProfileRequest]) (*connect.Response[GetProfileResponse], error) {
	current, ok := middleware.SessionFrom(ctx).Get()
	if !ok {
		return nil, toConnectError(service.ErrAuthentication)
	}

	user, err := h.users.GetProfile(ctx, current.Email)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&GetProfileResponse{Profile: user.Profile()}), nil
}

// UpdateProfile edits the caller's profile and returns a new token carrying
// the updated profile. The old token is revoked on a best-effort basis: the
// edit is already stored, so a revocation failure is logged, not returned.
func (h *AccountHandler) UpdateProfile(ctx context.Context, req *connect.Request[UpdateProfileRequest]) (*connect.Response[UpdateProfileResponse], error) {
	sess := middleware.SessionFrom(ctx)
	_, err := h.users.UpdateProfile(ctx, sess, service.ProfileUpdate{
		FullName: req.Msg.FullName,
		Phone:    req.Msg.Phone,
		Address:  req.Msg.Address,
		Age:      req.Msg.Age,
		Image:    req.Msg.Image,
	})
	if err != nil {
		return nil, toConnectError(err)
	}

	profile, token, err := h.issue(sess)
	if err != nil {
		return nil, err
	}
	if claims := middleware.ClaimsFrom(ctx); claims != nil {
		if err := h.revoker.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
			h.logger.Warn("Old token not revoked after profile update", "email", profile.Email, "error", err)
		}
	}
	return connect.NewResponse(&UpdateProfileResponse{Profile: profile, Token: token}), nil
}

func (h *AccountHandler) issue(sess *session.Context) (models.Profile, string, error) {
	profile, _ := sess.Get()
	token, err := h.jwtManager.Generate(profile)
	if err != nil {
		h.logger.Error("Failed to generate token", "email", profile.Email, "error", err)
		return models.Profile{}, "", connect.NewError(connect.CodeInternal, err)
	}
	return profile, token, nil
}

func (h *AccountHandler) revokeCurrent(ctx context.Context) error {
	claims := middleware.ClaimsFrom(ctx)
	if claims == nil {
		return connect.NewError(connect.CodeUnauthenticated, auth.ErrMissingToken)
	}
	if err := h.revoker.Revoke(ctx, claims.ID, claims.Expiry()); err != nil {
		h.logger.Error("Failed to revoke token", "email", claims.Profile.Email, "error", err)
		return connect.NewError(connect.CodeUnavailable, err)
	}
	return nil
}
