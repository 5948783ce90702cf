// Package auth signs admins in with Google and keeps their sessions in Redis.
// Only addresses on the configured whitelist, or at the configured domain,
// are admitted. There are no local accounts or passwords.
package auth

import "time"

// Identity is what the identity provider vouches for after sign-in.
type Identity struct {
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Session is an admin session stored in Redis as JSON. The key is derived
// from the cookie token, never the token itself.
type Session struct {
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Picture   string    `json:"picture,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
