package domain

import "time"

// Session is a server-side login. Only the SHA-256 fingerprint of the
// opaque token is stored.
type Session struct {
	ID        string
	UserID    string
	TokenHash string
	UserAgent string
	CreatedAt time.Time
	ExpiresAt time.Time
	RevokedAt *time.Time
}

// Active reports whether the session can still authenticate at now.
func (s Session) Active(now time.Time) bool {
	return s.RevokedAt == nil && s.ExpiresAt.After(now)
}
