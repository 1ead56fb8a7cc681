package rpc

import (
	"context"
	"log/slog"

	"connectrpc.com/connect"

	"github.com/mmynk/circles/internal/middleware"
	"github.com/mmynk/circles/internal/service"
)

// CircleHandler implements circles.v1.CircleService. Circles are created
// and joined under the caller's full name.
type CircleHandler struct {
	groups *service.GroupService
}

// NewCircleHandler creates a new circle handler.
func NewCircleHandler(groups *service.GroupService) *CircleHandler {
	return &CircleHandler{groups: groups}
}

// CreateCircle creates a circle with the caller as its only member, under
// the requested passcode when one is given and still free.
func (h *CircleHandler) CreateCircle(ctx context.Context, req *connect.Request[CreateCircleRequest]) (*connect.Response[CreateCircleResponse], error) {
	name, err := callerName(ctx)
	if err != nil {
		return nil, err
	}

	group, err := h.groups.CreateGroupWithPasscode(ctx, req.Msg.Name, name, req.Msg.Passcode)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&CreateCircleResponse{Circle: circleFromModel(group)}), nil
}

// FindCircle looks a circle up by passcode.
func (h *CircleHandler) FindCircle(ctx context.Context, req *connect.Request[FindCircleRequest]) (*connect.Response[FindCircleResponse], error) {
	group, err := h.groups.FindGroupByPasscode(ctx, req.Msg.Passcode)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&FindCircleResponse{Circle: circleFromModel(group)}), nil
}

// JoinCircle adds the caller to the circle with the given passcode.
func (h *CircleHandler) JoinCircle(ctx context.Context, req *connect.Request[JoinCircleRequest]) (*connect.Response[JoinCircleResponse], error) {
	name, err := callerName(ctx)
	if err != nil {
		return nil, err
	}

	group, err := h.groups.JoinGroup(ctx, req.Msg.Passcode, name)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&JoinCircleResponse{Circle: circleFromModel(group)}), nil
}

// ListMyCircles returns every circle the caller belongs to.
func (h *CircleHandler) ListMyCircles(ctx context.Context, req *connect.Request[ListMyCirclesRequest]) (*connect.Response[ListMyCirclesResponse], error) {
	name, err := callerName(ctx)
	if err != nil {
		return nil, err
	}

	groups, err := h.groups.ListGroupsForUser(ctx, name)
	if err != nil {
		return nil, toConnectError(err)
	}

	circles := make([]*Circle, 0, len(groups))
	for _, g := range groups {
		circles = append(circles, circleFromModel(g))
	}
	slog.Debug("ListMyCircles successful", "count", len(circles))
	return connect.NewResponse(&ListMyCirclesResponse{Circles: circles}), nil
}

// GeneratePasscode returns a fresh passcode preview.
func (h *CircleHandler) GeneratePasscode(ctx context.Context, req *connect.Request[GeneratePasscodeRequest]) (*connect.Response[GeneratePasscodeResponse], error) {
	return connect.NewResponse(&GeneratePasscodeResponse{Passcode: h.groups.GeneratePasscode()}), nil
}

func callerName(ctx context.Context) (string, error) {
	profile, ok := middleware.SessionFrom(ctx).Get()
	if !ok {
		return "", toConnectError(service.ErrAuthentication)
	}
	return profile.FullName, nil
}
