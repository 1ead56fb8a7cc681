package rpc

import "github.com/mmynk/circles/internal/models"

// Circle is the wire form of a circle.
type Circle struct {
	ID        string   `json:"id"`
	Name      string   `json:"name"`
	Passcode  string   `json:"passcode"`
	Members   []string `json:"members"`
	CreatedAt int64    `json:"created_at"`
}

func circleFromModel(g *models.Group) *Circle {
	return &Circle{
		ID:        g.ID,
		Name:      g.Name,
		Passcode:  g.Passcode,
		Members:   g.Members,
		CreatedAt: g.CreatedAt,
	}
}

type RegisterRequest struct {
	FullName        string `json:"full_name"`
	Email           string `json:"email"`
	Phone           string `json:"phone"`
	Address         string `json:"address"`
	Age             int    `json:"age"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password,omitempty"`
}

type RegisterResponse struct {
	Profile models.Profile `json:"profile"`
	Token   string         `json:"token"`
}

type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type LoginResponse struct {
	Profile models.Profile `json:"profile"`
	Token   string         `json:"token"`
}

type LogoutRequest struct{}

type LogoutResponse struct{}

type GetProfileRequest struct{}

type GetProfileResponse struct {
	Profile models.Profile `json:"profile"`
}

// UpdateProfileRequest edits the caller's profile. Omitted fields are kept.
type UpdateProfileRequest struct {
	FullName *string `json:"full_name,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Address  *string `json:"address,omitempty"`
	Age      *int    `json:"age,omitempty"`
	Image    *string `json:"image,omitempty"`
}

// UpdateProfileResponse carries a fresh token, since tokens embed the profile.
type UpdateProfileResponse struct {
	Profile models.Profile `json:"profile"`
	Token   string         `json:"token"`
}

type CreateCircleRequest struct {
	Name string `json:"name"`
	// Passcode optionally carries a code previewed with GeneratePasscode.
	Passcode string `json:"passcode,omitempty"`
}

type CreateCircleResponse struct {
	Circle *Circle `json:"circle"`
}

type FindCircleRequest struct {
	Passcode string `json:"passcode"`
}

type FindCircleResponse struct {
	Circle *Circle `json:"circle"`
}

type JoinCircleRequest struct {
	Passcode string `json:"passcode"`
}

type JoinCircleResponse struct {
	Circle *Circle `json:"circle"`
}

type ListMyCirclesRequest struct{}

type ListMyCirclesResponse struct {
	Circles []*Circle `json:"circles"`
}

type GeneratePasscodeRequest struct{}

type GeneratePasscodeResponse struct {
	Passcode string `json:"passcode"`
}
