package cryptox

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

// PepperSize is the number of random bytes in a generated pepper.
const PepperSize = 32

// LoadOrCreatePepper reads the pepper stored at path, creating a new random
// one (mode 0600) when the file does not exist. Losing the pepper makes every
// stored password hash unverifiable.
func LoadOrCreatePepper(path string) ([]byte, error) {
	path = filepath.Clean(path)

	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		pepper := strings.TrimSpace(string(raw))
		if pepper == "" {
			return nil, fmt.Errorf("pepper file %s is empty", path)
		}
		return []byte(pepper), nil
	case !errors.Is(err, fs.ErrNotExist):
		return nil, fmt.Errorf("read pepper: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create pepper dir: %w", err)
	}

	buf := make([]byte, PepperSize)
	if _, err := rand.Read(buf); err != nil {
		return nil, fmt.Errorf("generate pepper: %w", err)
	}
	pepper := base64.RawURLEncoding.EncodeToString(buf)

	// O_EXCL so two processes racing on first start cannot clobber each other.
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if errors.Is(err, fs.ErrExist) {
		return LoadOrCreatePepper(path)
	}
	if err != nil {
		return nil, fmt.Errorf("create pepper: %w", err)
	}
	if _, err := f.WriteString(pepper); err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("write pepper: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("write pepper: %w", err)
	}
	return []byte(pepper), nil
}
