package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/aussiebroadwan/clubhouse/internal/identity/domain"
	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// Notifier delivers one-time tokens to the account owner out of band.
type Notifier interface {
	SendVerification(ctx context.Context, u domain.User, token string, expiresAt time.Time) error
	SendPasswordReset(ctx context.Context, u domain.User, token string, expiresAt time.Time) error
}

// LogNotifier "delivers" tokens to the log. Token values are only logged
// when IncludeTokens is set, which is meant for development.
type LogNotifier struct {
	IncludeTokens bool
}

func (n LogNotifier) SendVerification(ctx context.Context, u domain.User, token string, expiresAt time.Time) error {
	n.log(ctx, "verification", u, token, expiresAt)
	return nil
}

func (n LogNotifier) SendPasswordReset(ctx context.Context, u domain.User, token string, expiresAt time.Time) error {
	n.log(ctx, "password_reset", u, token, expiresAt)
	return nil
}

func (n LogNotifier) log(ctx context.Context, kind string, u domain.User, token string, expiresAt time.Time) {
	attrs := []any{
		slog.String("kind", kind),
		slog.String("user_id", u.ID),
		slog.String("email", u.Email),
		slog.Time("expires_at", expiresAt),
	}
	if n.IncludeTokens {
		attrs = append(attrs, slog.String("token", token))
	}
	slogx.FromContext(ctx).Info("notification queued", attrs...)
}
