package domain

import (
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/jwtx"
)

// ActionToken is the ledger entry of a single-use email verification or
// password reset token. ID is the token's jti.
type ActionToken struct {
	ID         string
	UserID     string
	Purpose    jwtx.Purpose
	CreatedAt  time.Time
	ExpiresAt  time.Time
	ConsumedAt *time.Time
}
