package app

import (
	"fmt"
	"log/slog"

	"github.com/aussiebroadwan/clubhouse/pkg/cryptox"
	"github.com/aussiebroadwan/clubhouse/pkg/jwtx"
)

// Secrets holds the key material the identity service needs at startup.
type Secrets struct {
	Pepper      []byte
	TokenSecret []byte
}

// InitSecrets loads the password pepper and the action token secret.
//
// The pepper lives in a file that is created on first start. The token
// secret comes from IDENTITY_TOKEN_SECRET; in dev an ephemeral secret is
// generated when it is unset, so outstanding verification and reset links
// stop working when the service restarts.
func InitSecrets(cfg Config, logger *slog.Logger) (Secrets, error) {
	pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
	if err != nil {
		return Secrets{}, fmt.Errorf("failed to load pepper: %w", err)
	}
	logger.Info("password pepper loaded", "path", cfg.PepperFile)

	secret := []byte(cfg.TokenSecret)
	switch {
	case len(secret) >= jwtx.MinSecretLength:
	case len(secret) == 0 && cfg.Env == "dev":
		raw, err := cryptox.GenerateToken(cryptox.TokenSize256)
		if err != nil {
			return Secrets{}, err
		}
		secret = []byte(raw)
		logger.Warn("IDENTITY_TOKEN_SECRET not set, using an ephemeral token secret")
	case len(secret) == 0:
		return Secrets{}, fmt.Errorf("IDENTITY_TOKEN_SECRET is required when ENV=%s", cfg.Env)
	default:
		return Secrets{}, fmt.Errorf("IDENTITY_TOKEN_SECRET must be at least %d bytes", jwtx.MinSecretLength)
	}

	return Secrets{Pepper: pepper, TokenSecret: secret}, nil
}
