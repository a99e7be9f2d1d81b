package jwtx

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Purpose scopes an action token to exactly one flow, so a verification
// token can never be replayed as a reset token.
type Purpose string

const (
	PurposeVerifyEmail   Purpose = "verify_email"
	PurposeResetPassword Purpose = "reset_password"
)

// Default action token lifetimes.
const (
	DefaultVerifyEmailTTL   = 48 * time.Hour
	DefaultResetPasswordTTL = time.Hour
)

func (p Purpose) Valid() bool {
	return p == PurposeVerifyEmail || p == PurposeResetPassword
}

// ActionClaims are the claims carried by a single-use action token. The
// jti is the key of the server's consumption ledger.
type ActionClaims struct {
	jwt.RegisteredClaims

	Purpose Purpose `json:"purpose"`

	// Email pins the token to the address it was issued for; a token
	// issued before an email change no longer verifies.
	Email string `json:"email,omitempty"`
}

// NewActionClaims builds claims for subject valid from now for ttl.
func NewActionClaims(subject, email string, purpose Purpose, issuer string, ttl time.Duration, now time.Time) ActionClaims {
	return ActionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   subject,
			Audience:  jwt.ClaimStrings{string(purpose)},
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        NewJTI(),
		},
		Purpose: purpose,
		Email:   email,
	}
}

// NewJTI returns a random UUIDv4 for the "jti" claim.
func NewJTI() string {
	return uuid.NewString()
}
