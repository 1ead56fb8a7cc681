// Package models defines the core domain models for Circles.
//
// # Models
//
//   - User: a registered account, keyed by a unique email address
//   - Profile: the subset of a User carried by a session
//   - Group: a "circle" of members that others join with a passcode
//
// # Design Principles
//
// 1. **Names as members**: circle members are full-name strings, in join order
// 2. **Documents, not rows**: models carry json tags because they are stored as
//    documents in the directory (see internal/directory)
// 3. **No secrets in sessions**: Profile never carries the password hash
package models
