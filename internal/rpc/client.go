package rpc

import (
	"context"

	"connectrpc.com/connect"
)

// WithBearerToken attaches token to every outgoing request. An empty token
// sends no Authorization header.
func WithBearerToken(token string) connect.ClientOption {
	return connect.WithInterceptors(connect.UnaryInterceptorFunc(
		func(next connect.UnaryFunc) connect.UnaryFunc {
			return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
				if token != "" {
					req.Header().Set("Authorization", "Bearer "+token)
				}
				return next(ctx, req)
			}
		},
	))
}

func clientOptions(opts []connect.ClientOption) []connect.ClientOption {
	return append([]connect.ClientOption{connect.WithCodec(jsonCodec{})}, opts...)
}

// AccountClient calls circles.v1.AccountService.
type AccountClient struct {
	register      *connect.Client[RegisterRequest, RegisterResponse]
	login         *connect.Client[LoginRequest, LoginResponse]
	logout        *connect.Client[LogoutRequest, LogoutResponse]
	getProfile    *connect.Client[GetProfileRequest, GetProfileResponse]
	updateProfile *connect.Client[UpdateProfileRequest, UpdateProfileResponse]
}

// NewAccountClient constructs a client for the server at baseURL.
func NewAccountClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AccountClient {
	opts = clientOptions(opts)
	return &AccountClient{
		register:      connect.NewClient[RegisterRequest, RegisterResponse](httpClient, baseURL+AccountRegisterProcedure, opts...),
		login:         connect.NewClient[LoginRequest, LoginResponse](httpClient, baseURL+AccountLoginProcedure, opts...),
		logout:        connect.NewClient[LogoutRequest, LogoutResponse](httpClient, baseURL+AccountLogoutProcedure, opts...),
		getProfile:    connect.NewClient[GetProfileRequest, GetProfileResponse](httpClient, baseURL+AccountGetProfileProcedure, opts...),
		updateProfile: connect.NewClient[UpdateProfileRequest, UpdateProfileResponse](httpClient, baseURL+AccountUpdateProfileProcedure, opts...),
	}
}

func (c *AccountClient) Register(ctx context.Context, req *RegisterRequest) (*RegisterResponse, error) {
	return call(ctx, c.register, req)
}

func (c *AccountClient) Login(ctx context.Context, req *LoginRequest) (*LoginResponse, error) {
	return call(ctx, c.login, req)
}

func (c *AccountClient) Logout(ctx context.Context) error {
	_, err := call(ctx, c.logout, &LogoutRequest{})
	return err
}

func (c *AccountClient) GetProfile(ctx context.Context) (*GetProfileResponse, error) {
	return call(ctx, c.getProfile, &GetProfileRequest{})
}

func (c *AccountClient) UpdateProfile(ctx context.Context, req *UpdateProfileRequest) (*UpdateProfileResponse, error) {
	return call(ctx, c.updateProfile, req)
}

// CircleClient calls circles.v1.CircleService.
type CircleClient struct {
	create   *connect.Client[CreateCircleRequest, CreateCircleResponse]
	find     *connect.Client[FindCircleRequest, FindCircleResponse]
	join     *connect.Client[JoinCircleRequest, JoinCircleResponse]
	listMine *connect.Client[ListMyCirclesRequest, ListMyCirclesResponse]
	passcode *connect.Client[GeneratePasscodeRequest, GeneratePasscodeResponse]
}

// NewCircleClient constructs a client for the server at baseURL.
func NewCircleClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *CircleClient {
	opts = clientOptions(opts)
	return &CircleClient{
		create:   connect.NewClient[CreateCircleRequest, CreateCircleResponse](httpClient, baseURL+CircleCreateProcedure, opts...),
		find:     connect.NewClient[FindCircleRequest, FindCircleResponse](httpClient, baseURL+CircleFindProcedure, opts...),
		join:     connect.NewClient[JoinCircleRequest, JoinCircleResponse](httpClient, baseURL+CircleJoinProcedure, opts...),
		listMine: connect.NewClient[ListMyCirclesRequest, ListMyCirclesResponse](httpClient, baseURL+CircleListMineProcedure, opts...),
		passcode: connect.NewClient[GeneratePasscodeRequest, GeneratePasscodeResponse](httpClient, baseURL+CircleGeneratePasscodeProcedure, opts...),
	}
}

func (c *CircleClient) CreateCircle(ctx context.Context, name string) (*Circle, error) {
	return c.CreateCircleWithPasscode(ctx, name, "")
}

// CreateCircleWithPasscode asks for a previewed passcode. The server falls
// back to a fresh code if it has been taken meanwhile.
func (c *CircleClient) CreateCircleWithPasscode(ctx context.Context, name, passcode string) (*Circle, error) {
	resp, err := call(ctx, c.create, &CreateCircleRequest{Name: name, Passcode: passcode})
	if err != nil {
		return nil, err
	}
	return resp.Circle, nil
}

func (c *CircleClient) FindCircle(ctx context.Context, passcode string) (*Circle, error) {
	resp, err := call(ctx, c.find, &FindCircleRequest{Passcode: passcode})
	if err != nil {
		return nil, err
	}
	return resp.Circle, nil
}

func (c *CircleClient) JoinCircle(ctx context.Context, passcode string) (*Circle, error) {
	resp, err := call(ctx, c.join, &JoinCircleRequest{Passcode: passcode})
	if err != nil {
		return nil, err
	}
	return resp.Circle, nil
}

func (c *CircleClient) ListMyCircles(ctx context.Context) ([]*Circle, error) {
	resp, err := call(ctx, c.listMine, &ListMyCirclesRequest{})
	if err != nil {
		return nil, err
	}
	return resp.Circles, nil
}

func (c *CircleClient) GeneratePasscode(ctx context.Context) (string, error) {
	resp, err := call(ctx, c.passcode, &GeneratePasscodeRequest{})
	if err != nil {
		return "", err
	}
	return resp.Passcode, nil
}

func call[Req, Res any](ctx context.Context, client *connect.Client[Req, Res], req *Req) (*Res, error) {
	resp, err := client.CallUnary(ctx, connect.NewRequest(req))
	if err != nil {
		return nil, err
	}
	return resp.Msg, nil
}
