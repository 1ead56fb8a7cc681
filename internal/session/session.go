// Package session holds the state of one signed-in user.
//
// A Context is created once per session and passed explicitly to the
// services that need to know who is acting. There is no package-level
// session state.
package session

import (
	"sync"

	"github.com/mmynk/circles/internal/models"
)

// Context is the currently authenticated user's profile, if any.
// The zero value is an unauthenticated session ready to use.
type Context struct {
	mu            sync.RWMutex
	profile       models.Profile
	authenticated bool
}

// New returns an unauthenticated session.
func New() *Context {
	return &Context{}
}

// NewAuthenticated returns a session already signed in as profile.
func NewAuthenticated(profile models.Profile) *Context {
	return &Context{profile: profile, authenticated: true}
}

// Get returns the current profile and whether the session is authenticated.
func (c *Context) Get() (models.Profile, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.profile, c.authenticated
}

// Set replaces the session profile wholesale and marks it authenticated.
func (c *Context) Set(profile models.Profile) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = profile
	c.authenticated = true
}

// Clear signs the session out.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.profile = models.Profile{}
	c.authenticated = false
}

// Authenticated reports whether a user is signed in.
func (c *Context) Authenticated() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authenticated
}
