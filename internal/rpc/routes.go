package rpc

import (
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-chi/chi/v5"

	"github.com/mmynk/circles/internal/middleware"
)

// Mount registers every procedure on r. Register and Login are public; the
// rest go through requireAuth.
func Mount(r chi.Router, account *AccountHandler, circles *CircleHandler, requireAuth connect.Interceptor) {
	public := connect.WithHandlerOptions(
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(middleware.MetricsInterceptor(), middleware.LoggingInterceptor()),
	)
	private := connect.WithHandlerOptions(
		connect.WithCodec(jsonCodec{}),
		connect.WithInterceptors(middleware.MetricsInterceptor(), requireAuth, middleware.LoggingInterceptor()),
	)

	handle := func(procedure string, h http.Handler) {
		r.Handle(procedure, h)
	}

	handle(AccountRegisterProcedure, connect.NewUnaryHandler(AccountRegisterProcedure, account.Register, public))
	handle(AccountLoginProcedure, connect.NewUnaryHandler(AccountLoginProcedure, account.Login, public))
	handle(AccountLogoutProcedure, connect.NewUnaryHandler(AccountLogoutProcedure, account.Logout, private))
	handle(AccountGetProfileProcedure, connect.NewUnaryHandler(AccountGetProfileProcedure, account.GetProfile, private))
	handle(AccountUpdateProfileProcedure, connect.NewUnaryHandler(AccountUpdateProfileProcedure, account.UpdateProfile, private))

	handle(CircleCreateProcedure, connect.NewUnaryHandler(CircleCreateProcedure, circles.CreateCircle, private))
	handle(CircleFindProcedure, connect.NewUnaryHandler(CircleFindProcedure, circles.FindCircle, private))
	handle(CircleJoinProcedure, connect.NewUnaryHandler(CircleJoinProcedure, circles.JoinCircle, private))
	handle(CircleListMineProcedure, connect.NewUnaryHandler(CircleListMineProcedure, circles.ListMyCircles, private))
	handle(CircleGeneratePasscodeProcedure, connect.NewUnaryHandler(CircleGeneratePasscodeProcedure, circles.GeneratePasscode, private))
}
