package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Credential lifetimes. An entry older than its lifetime loads as absent.
const (
	AccessTTL  = 7 * 24 * time.Hour
	RefreshTTL = 30 * 24 * time.Hour
)

// Credentials is a bearer credential pair. Either field may be empty.
type Credentials struct {
	Access  string
	Refresh string
}

// Store persists a credential pair across runs. Implementations must treat
// expired entries as absent.
type Store interface {
	Load() (Credentials, bool)
	Save(creds Credentials) error
	Clear() error
}

type storedCredentials struct {
	Access         string    `json:"access"`
	AccessExpires  time.Time `json:"access_expires"`
	Refresh        string    `json:"refresh"`
	RefreshExpires time.Time `json:"refresh_expires"`
}

func (s storedCredentials) load(now time.Time) (Credentials, bool) {
	creds := Credentials{}
	if s.Access != "" && now.Before(s.AccessExpires) {
		creds.Access = s.Access
	}
	if s.Refresh != "" && now.Before(s.RefreshExpires) {
		creds.Refresh = s.Refresh
	}
	return creds, creds.Access != "" || creds.Refresh != ""
}

func stamp(creds Credentials, now time.Time) storedCredentials {
	return storedCredentials{
		Access:         creds.Access,
		AccessExpires:  now.Add(AccessTTL),
		Refresh:        creds.Refresh,
		RefreshExpires: now.Add(RefreshTTL),
	}
}

// MemoryStore keeps credentials in process memory.
type MemoryStore struct {
	mu    sync.Mutex
	creds storedCredentials
	set   bool
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.set {
		return Credentials{}, false
	}
	return s.creds.load(time.Now())
}

func (s *MemoryStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = stamp(creds, time.Now())
	s.set = true
	return nil
}

func (s *MemoryStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds = storedCredentials{}
	s.set = false
	return nil
}

// FileStore persists credentials as a JSON file readable only by the owner.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore constructs a FileStore at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

func (s *FileStore) Load() (Credentials, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	raw, err := os.ReadFile(s.path)
	if err != nil {
		return Credentials{}, false
	}

	var stored storedCredentials
	if err := json.Unmarshal(raw, &stored); err != nil {
		return Credentials{}, false
	}
	return stored.load(time.Now())
}

func (s *FileStore) Save(creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	payload, err := json.Marshal(stamp(creds, time.Now()))
	if err != nil {
		return err
	}
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return err
		}
	}
	return os.WriteFile(s.path, payload, 0o600)
}

func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
