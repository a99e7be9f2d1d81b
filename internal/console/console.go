package console

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/aussiebroadwan/clubhouse/internal/identity/service"
	"github.com/aussiebroadwan/clubhouse/internal/identity/store/drivers/sqlite"
	"github.com/aussiebroadwan/clubhouse/pkg/authsdk"
	"github.com/aussiebroadwan/clubhouse/pkg/cryptox"
	"github.com/aussiebroadwan/clubhouse/pkg/jwtx"
	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// Version is reported by clubctl version and sent as the user agent.
var Version = "v0.1.0"

// Console is an opened identity client: the orchestrator plus whatever
// backend and session store resources it holds.
type Console struct {
	Service *authsdk.Service
	Config  Config
	Logger  *slog.Logger

	closers []io.Closer
}

// Open builds the backend and session store selected by cfg. Logs go to
// stderr so command output stays clean.
func Open(ctx context.Context, cfg Config) (*Console, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Console{
		Config: cfg,
		Logger: slog.New(slogx.NewHandler(slogx.Config{
			Service: "clubctl",
			Version: Version,
			Level:   cfg.Log.Level,
			Format:  cfg.Log.Format,
			Output:  os.Stderr,
		})),
	}
	ctx = slogx.WithContext(ctx, c.Logger)

	backend, err := c.openBackend(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	sessions, err := c.openSessionStore(ctx)
	if err != nil {
		_ = c.Close()
		return nil, err
	}

	c.Service, err = authsdk.NewService(backend, sessions,
		authsdk.WithGatewayTimeout(cfg.Timeout),
		authsdk.WithGatewayRetries(cfg.MaxAttempts, cfg.RetryDelay),
		authsdk.WithMinPasswordLength(cfg.MinPassword),
		authsdk.WithUserAgent("clubctl/"+Version),
		authsdk.WithLogger(c.Logger),
	)
	if err != nil {
		_ = c.Close()
		return nil, err
	}
	return c, nil
}

func (c *Console) openBackend(ctx context.Context) (authsdk.Backend, error) {
	cfg := c.Config
	switch cfg.Backend {
	case BackendHTTP:
		client := authsdk.NewClient(cfg.BaseURL)
		client.UserAgent = "clubctl/" + Version
		return client, nil

	case BackendEmbedded:
		st, err := sqlite.NewStore(sqlite.DSN(cfg.DatabaseFile))
		if err != nil {
			return nil, fmt.Errorf("open identity database: %w", err)
		}
		c.closers = append(c.closers, st)
		if err := st.ApplyMigrations(); err != nil {
			return nil, fmt.Errorf("migrate identity database: %w", err)
		}

		pepper, err := cryptox.LoadOrCreatePepper(cfg.PepperFile)
		if err != nil {
			return nil, fmt.Errorf("load pepper: %w", err)
		}
		signer, err := jwtx.NewActionSigner([]byte(cfg.TokenSecret), "clubhouse-identity")
		if err != nil {
			return nil, fmt.Errorf("token_secret: %w", err)
		}

		slogx.FromContext(ctx).Debug("using embedded identity backend", "database", cfg.DatabaseFile)
		return &service.EmbeddedBackend{
			Accounts: &service.AccountService{
				Store:             st,
				Hasher:            cryptox.NewPasswordHasher(pepper),
				Signer:            signer,
				MinPasswordLength: cfg.MinPassword,
				// The operator is on the machine holding the database.
				ExposeTokens: true,
			},
			Logger: c.Logger,
		}, nil
	}
	return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
}

func (c *Console) openSessionStore(ctx context.Context) (authsdk.SessionStore, error) {
	cfg := c.Config.Session
	switch cfg.Store {
	case SessionStoreFile:
		return authsdk.NewFileSessionStore(cfg.File), nil
	case SessionStoreMemory:
		return authsdk.NewMemorySessionStore(), nil
	case SessionStoreRedis:
		rdb, err := authsdk.NewRedisClient(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			return nil, err
		}
		c.closers = append(c.closers, rdb)
		return authsdk.NewRedisSessionStore(rdb, cfg.Key), nil
	}
	return nil, fmt.Errorf("unknown session store %q", cfg.Store)
}

// Close releases the database and Redis connections.
func (c *Console) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i].Close())
	}
	c.closers = nil
	return errors.Join(errs...)
}
