// Package credential persists the single account token used by the sender.
package credential

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrPathRequired = errors.New("credential: path required")
	ErrEmptyToken   = errors.New("credential: empty token")
	// ErrMalformedToken marks a file holding more than one line.
	ErrMalformedToken = errors.New("credential: token spans multiple lines")
)

// Credential is the opaque token issued at registration.
type Credential struct {
	Token string
}

// Store reads and writes one token file. The file is opened only for the
// duration of a single read or write.
type Store struct {
	path string
}

func NewStore(path string) (*Store, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, ErrPathRequired
	}
	return &Store{path: path}, nil
}

func (s *Store) Path() string { return s.path }

// Load returns the stored credential. A missing or blank file reports ok=false
// with a nil error: absence means "register". A multi-line file reports
// ok=false with ErrMalformedToken.
func (s *Store) Load() (Credential, bool, error) {
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Credential{}, false, nil
		}
		return Credential{}, false, fmt.Errorf("credential: read %s: %w", s.path, err)
	}
	token := strings.TrimSpace(string(raw))
	if token == "" {
		return Credential{}, false, nil
	}
	if strings.ContainsAny(token, "\r\n") {
		return Credential{}, false, fmt.Errorf("%w: %s", ErrMalformedToken, s.path)
	}
	return Credential{Token: token}, true, nil
}

// Save writes the token as the whole file content, replacing it atomically.
func (s *Store) Save(c Credential) error {
	token := strings.TrimSpace(c.Token)
	if token == "" {
		return ErrEmptyToken
	}
	if strings.ContainsAny(token, "\r\n") {
		return ErrMalformedToken
	}
	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*")
	if err != nil {
		return fmt.Errorf("credential: write %s: %w", s.path, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.WriteString(token); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("credential: write %s: %w", s.path, err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("credential: chmod %s: %w", s.path, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("credential: write %s: %w", s.path, err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("credential: write %s: %w", s.path, err)
	}
	return nil
}
