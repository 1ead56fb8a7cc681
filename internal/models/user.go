package models

// DefaultImage is the profile picture assigned at sign-up.
const DefaultImage = "https://via.placeholder.com/150"

// User represents a registered user account.
type User struct {
	// ID is the directory-assigned identifier (UUID format).
	ID string `json:"-"`

	// FullName is the display name. Circles list members by this name.
	FullName string `json:"full_name"`

	// Email is the user's email address, trimmed and lower-cased.
	// Unique across all users; used as the login key.
	Email string `json:"email"`

	Phone   string `json:"phone"`
	Address string `json:"address"`
	Age     int    `json:"age"`

	// PasswordHash is the bcrypt hash of the password. Never the plaintext.
	PasswordHash string `json:"password_hash"`

	// Image is the profile picture URI.
	Image string `json:"image"`

	CreatedAt int64 `json:"created_at"`
	UpdatedAt int64 `json:"updated_at"`
}

// Profile returns the session view of the user.
func (u *User) Profile() Profile {
	return Profile{
		FullName: u.FullName,
		Email:    u.Email,
		Phone:    u.Phone,
		Address:  u.Address,
		Age:      u.Age,
		Image:    u.Image,
	}
}

// Profile is the part of a User that a session carries around.
type Profile struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	Age      int    `json:"age"`
	Image    string `json:"image"`
}
