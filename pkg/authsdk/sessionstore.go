package authsdk

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/aussiebroadwan/clubhouse/pkg/slogx"
)

// DefaultSessionKey is the single key under which the current session is kept.
const DefaultSessionKey = "clubhouse:session"

// SessionStore is the durable cache of the one active session of a client
// process. Implementations keep at most one session under one key and
// serialise Save, Load and Clear.
type SessionStore interface {
	// Save stores s, replacing any previously cached session.
	Save(ctx context.Context, s Session) error

	// Load returns the cached session, or nil when there is none. An expired
	// session is cleared and reported as nil.
	Load(ctx context.Context) (*Session, error)

	// Clear removes the cached session. Clearing an empty store is not an
	// error.
	Clear(ctx context.Context) error
}

// storedSession is the persisted shape of a session.
type storedSession struct {
	Token     string    `json:"token"`
	User      User      `json:"user"`
	ExpiresAt time.Time `json:"expiresAt"`
	IssuedAt  time.Time `json:"issuedAt,omitzero"`
}

func encodeSession(s Session) ([]byte, error) {
	if s.Token == "" {
		return nil, fmt.Errorf("session token is empty")
	}
	return json.Marshal(storedSession{
		Token:     s.Token,
		User:      s.User,
		ExpiresAt: s.ExpiresAt,
		IssuedAt:  s.IssuedAt,
	})
}

func decodeSession(data []byte) (*Session, error) {
	var ss storedSession
	if err := json.Unmarshal(data, &ss); err != nil {
		return nil, fmt.Errorf("decode cached session: %w", err)
	}
	if ss.Token == "" {
		return nil, fmt.Errorf("cached session has no token")
	}
	return &Session{
		Token:     ss.Token,
		User:      ss.User,
		IssuedAt:  ss.IssuedAt,
		ExpiresAt: ss.ExpiresAt,
	}, nil
}

func nowOr(clock func() time.Time) time.Time {
	if clock != nil {
		return clock()
	}
	return time.Now()
}

// ============================================================================
// Memory
// ============================================================================

// MemorySessionStore keeps the session in process memory. It does not survive
// restarts and is meant for tests and short-lived tools.
type MemorySessionStore struct {
	// Clock overrides time.Now for expiry checks.
	Clock func() time.Time

	mu      sync.Mutex
	session *Session
}

var _ SessionStore = (*MemorySessionStore)(nil)

func NewMemorySessionStore() *MemorySessionStore {
	return &MemorySessionStore{}
}

func (m *MemorySessionStore) Save(_ context.Context, s Session) error {
	if s.Token == "" {
		return fmt.Errorf("session token is empty")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := s
	m.session = &cp
	return nil
}

func (m *MemorySessionStore) Load(_ context.Context) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	if m.session.Expired(nowOr(m.Clock)) {
		m.session = nil
		return nil, nil
	}
	cp := *m.session
	return &cp, nil
}

func (m *MemorySessionStore) Clear(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// ============================================================================
// File
// ============================================================================

// FileSessionStore keeps the session as a JSON document in a single file.
// Writes go through a temporary file and rename so a crash never leaves a
// half-written session behind.
type FileSessionStore struct {
	path string

	// Clock overrides time.Now for expiry checks.
	Clock func() time.Time

	mu sync.Mutex
}

var _ SessionStore = (*FileSessionStore)(nil)

// NewFileSessionStore returns a store backed by the file at path. The parent
// directory is created on first save.
func NewFileSessionStore(path string) *FileSessionStore {
	return &FileSessionStore{path: path}
}

// Path returns the file the session is stored in.
func (f *FileSessionStore) Path() string { return f.path }

func (f *FileSessionStore) Save(_ context.Context, s Session) error {
	data, err := encodeSession(s)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*")
	if err != nil {
		return fmt.Errorf("create temp session file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write session file: %w", err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("chmod session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close session file: %w", err)
	}
	if err := os.Rename(tmpName, f.path); err != nil {
		return fmt.Errorf("replace session file: %w", err)
	}
	return nil
}

func (f *FileSessionStore) Load(ctx context.Context) (*Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session file: %w", err)
	}

	s, err := decodeSession(data)
	if err != nil {
		// An unreadable cache is the same as no cache.
		slogx.FromContext(ctx).Warn("discarding unreadable cached session", "path", f.path, "error", err)
		return nil, f.removeLocked()
	}

	if s.Expired(nowOr(f.Clock)) {
		return nil, f.removeLocked()
	}
	return s, nil
}

func (f *FileSessionStore) Clear(_ context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.removeLocked()
}

func (f *FileSessionStore) removeLocked() error {
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove session file: %w", err)
	}
	return nil
}
