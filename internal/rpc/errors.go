package rpc

import (
	"errors"

	"connectrpc.com/connect"

	"github.com/mmynk/circles/internal/service"
)

// toConnectError maps service errors onto Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}

	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var verr *service.ValidationError
	var perr *service.PersistenceError
	switch {
	case errors.As(err, &verr):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, service.ErrDuplicateEmail), errors.Is(err, service.ErrAlreadyMember):
		return connect.NewError(connect.CodeAlreadyExists, err)
	case errors.Is(err, service.ErrAuthentication):
		return connect.NewError(connect.CodeUnauthenticated, err)
	case errors.Is(err, service.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	case errors.As(err, &perr):
		return connect.NewError(connect.CodeUnavailable, errors.New("directory unavailable, try again"))
	default:
		return connect.NewError(connect.CodeInternal, errors.New("internal error"))
	}
}
