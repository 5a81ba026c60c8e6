// Package session holds the signed-in identity that the client attaches to
// every request. It is an explicit value with a load/save/clear lifecycle
// backed by a TOML file.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
	"github.com/pelletier/go-toml/v2"

	"github.com/team-spoved/spoved/internal/model"
)

type Session struct {
	UserID int        `toml:"user_id"`
	Name   string     `toml:"name"`
	Role   model.Role `toml:"role"`
	JWT    string     `toml:"jwt"`
}

// Token returns the bearer token, or "" when signed out.
func (s *Session) Token() string {
	if s == nil {
		return ""
	}
	return s.JWT
}

func (s *Session) SignedIn() bool {
	return s != nil && s.JWT != ""
}

type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

func (st *Store) Path() string { return st.path }

// Load returns the persisted session; a missing file yields an empty session.
func (st *Store) Load() (*Session, error) {
	f, err := os.Open(st.path)
	if errors.Is(err, os.ErrNotExist) {
		return &Session{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open session: %w", err)
	}
	defer f.Close()

	var s Session
	if err := toml.NewDecoder(f).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode session %s: %w", st.path, err)
	}
	return &s, nil
}

// lock serializes writers across processes sharing the session file.
func (st *Store) lock() (func(), error) {
	if err := os.MkdirAll(filepath.Dir(st.path), 0o700); err != nil {
		return nil, fmt.Errorf("create session dir: %w", err)
	}
	fl := flock.New(st.path + ".lock")
	if err := fl.Lock(); err != nil {
		return nil, fmt.Errorf("lock session: %w", err)
	}
	return func() { _ = fl.Unlock() }, nil
}

func (st *Store) Save(s *Session) error {
	unlock, err := st.lock()
	if err != nil {
		return err
	}
	defer unlock()
	data, err := toml.Marshal(s)
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}
	tmp := st.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	if err := os.Rename(tmp, st.path); err != nil {
		return fmt.Errorf("replace session: %w", err)
	}
	return nil
}

// Clear forgets the persisted identity (logout).
func (st *Store) Clear() error {
	unlock, err := st.lock()
	if err != nil {
		return err
	}
	defer unlock()
	if err := os.Remove(st.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
