package models

// Group represents a circle: a named list of members joined by passcode.
type Group struct {
	// ID is the directory-assigned identifier (UUID format).
	ID string `json:"-"`

	// Name is the display name of the circle (e.g., "Family", "Running Club").
	Name string `json:"name"`

	// Passcode is the 6-character code other users type to join.
	// Expected unique; the directory enforces it with a unique index.
	Passcode string `json:"passcode"`

	// Members is the list of member full names in join order.
	// The creator is always the first member. A name appears at most once.
	Members []string `json:"members"`

	// CreatedAt is the Unix timestamp when the circle was created.
	CreatedAt int64 `json:"created_at"`
}

// HasMember reports whether name is already in the member list.
func (g *Group) HasMember(name string) bool {
	for _, m := range g.Members {
		if m == name {
			return true
		}
	}
	return false
}
