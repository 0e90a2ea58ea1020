package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/BurntSushi/toml"
)

// State is the client's persisted state: named backend profiles and the
// last active session per backend.
type State struct {
	Active   string            `toml:"active"`
	Remotes  map[string]Remote `toml:"remotes"`
	Sessions map[string]string `toml:"sessions"` // backend URL -> last active session id
}

// Remote is a named backend profile.
type Remote struct {
	URL     string `toml:"url"`
	Token   string `toml:"token,omitempty"`
	NATSURL string `toml:"nats_url,omitempty"`
}

// ActiveRemote returns the active profile, if one is set and exists.
func (s State) ActiveRemote() (string, Remote, bool) {
	if s.Active == "" {
		return "", Remote{}, false
	}
	r, ok := s.Remotes[s.Active]
	return s.Active, r, ok
}

// DefaultStateDir returns ~/.local/state/flowstudio.
func DefaultStateDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("locating home directory: %w", err)
	}
	return filepath.Join(home, ".local", "state", "flowstudio"), nil
}

// StatePath returns the state file inside dir.
func StatePath(dir string) string {
	return filepath.Join(dir, "state.toml")
}

// StateStore reads and writes the TOML state file. Updates within one
// process are serialized.
type StateStore struct {
	path string
	mu   sync.Mutex
}

func NewStateStore(path string) *StateStore {
	return &StateStore{path: path}
}

// Path returns the file location.
func (s *StateStore) Path() string { return s.path }

// Load reads the state. A missing file yields an empty state.
func (s *StateStore) Load() (State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.load()
}

// Save replaces the state file.
func (s *StateStore) Save(st State) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(st)
}

// Update loads the state, applies fn and saves the result. Nothing is
// written when fn fails.
func (s *StateStore) Update(fn func(*State) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	st, err := s.load()
	if err != nil {
		return err
	}
	if err := fn(&st); err != nil {
		return err
	}
	return s.save(st)
}

func (s *StateStore) load() (State, error) {
	var st State
	if _, err := toml.DecodeFile(s.path, &st); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return State{}, err
		}
	}
	if st.Remotes == nil {
		st.Remotes = map[string]Remote{}
	}
	if st.Sessions == nil {
		st.Sessions = map[string]string{}
	}
	return st, nil
}

func (s *StateStore) save(st State) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(st)
}

// SessionMemory remembers the last active session for one backend.
type SessionMemory struct {
	store *StateStore
	key   string
}

// SessionMemory returns the memory for the backend at serverURL.
func (s *StateStore) SessionMemory(serverURL string) *SessionMemory {
	return &SessionMemory{store: s, key: serverURL}
}

// Remembered returns the remembered session id, or "".
func (m *SessionMemory) Remembered() (string, error) {
	st, err := m.store.Load()
	if err != nil {
		return "", err
	}
	return st.Sessions[m.key], nil
}

// Remember stores id as the last active session.
func (m *SessionMemory) Remember(id string) error {
	return m.store.Update(func(st *State) error {
		st.Sessions[m.key] = id
		return nil
	})
}

// Forget clears the remembered session.
func (m *SessionMemory) Forget() error {
	return m.store.Update(func(st *State) error {
		delete(st.Sessions, m.key)
		return nil
	})
}
