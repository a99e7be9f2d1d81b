package jwtx

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// MinSecretLength is the shortest HMAC secret ActionSigner accepts.
const MinSecretLength = 32

var (
	ErrMalformed     = errors.New("jwtx: malformed token")
	ErrInvalidSig    = errors.New("jwtx: invalid signature")
	ErrExpired       = errors.New("jwtx: token expired")
	ErrNotYetValid   = errors.New("jwtx: token not yet valid")
	ErrWrongPurpose  = errors.New("jwtx: token purpose mismatch")
	ErrInvalidClaim  = errors.New("jwtx: invalid claims")
	ErrShortSecret   = errors.New("jwtx: secret too short")
	ErrUnknownIssuer = errors.New("jwtx: issuer mismatch")
)

// ActionSigner issues and verifies HS256 action tokens. The same secret
// signs and verifies, so it never leaves the identity server.
type ActionSigner struct {
	secret []byte
	issuer string
	leeway time.Duration

	// Now is used for issuing and validating; nil means time.Now.
	Now func() time.Time
}

// NewActionSigner returns a signer for issuer. secret must be at least
// MinSecretLength bytes.
func NewActionSigner(secret []byte, issuer string) (*ActionSigner, error) {
	if len(secret) < MinSecretLength {
		return nil, fmt.Errorf("%w: need %d bytes, got %d", ErrShortSecret, MinSecretLength, len(secret))
	}
	return &ActionSigner{secret: secret, issuer: issuer, leeway: 30 * time.Second}, nil
}

func (s *ActionSigner) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

// Issue signs a new token for subject. It returns the compact token and its
// claims so callers can record the jti.
func (s *ActionSigner) Issue(subject, email string, purpose Purpose, ttl time.Duration) (string, ActionClaims, error) {
	if !purpose.Valid() {
		return "", ActionClaims{}, fmt.Errorf("%w: purpose %q", ErrInvalidClaim, purpose)
	}
	if subject == "" || ttl <= 0 {
		return "", ActionClaims{}, fmt.Errorf("%w: subject and positive ttl required", ErrInvalidClaim)
	}

	claims := NewActionClaims(subject, email, purpose, s.issuer, ttl, s.now())
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", ActionClaims{}, fmt.Errorf("jwtx: sign: %w", err)
	}
	return tok, claims, nil
}

// Verify checks the signature, lifetime, issuer and purpose of token.
// It does not consult the consumption ledger.
func (s *ActionSigner) Verify(token string, purpose Purpose) (ActionClaims, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(s.now),
		jwt.WithLeeway(s.leeway),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
	)

	var claims ActionClaims
	_, err := parser.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return s.secret, nil
	})
	switch {
	case err == nil:
	case errors.Is(err, jwt.ErrTokenExpired):
		return ActionClaims{}, ErrExpired
	case errors.Is(err, jwt.ErrTokenNotValidYet), errors.Is(err, jwt.ErrTokenUsedBeforeIssued):
		return ActionClaims{}, ErrNotYetValid
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ActionClaims{}, ErrInvalidSig
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ActionClaims{}, ErrMalformed
	default:
		return ActionClaims{}, fmt.Errorf("%w: %v", ErrInvalidClaim, err)
	}

	if s.issuer != "" && claims.Issuer != s.issuer {
		return ActionClaims{}, ErrUnknownIssuer
	}
	if claims.Purpose != purpose {
		return ActionClaims{}, ErrWrongPurpose
	}
	if claims.Subject == "" || claims.ID == "" {
		return ActionClaims{}, fmt.Errorf("%w: missing sub or jti", ErrInvalidClaim)
	}
	return claims, nil
}
