package securestore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Store is a small durable key-value map. With an empty path it stays
// in-memory (used by tests); with an empty passphrase the file is plaintext
// JSON, otherwise it is sealed in an argon2id/XChaCha20-Poly1305 envelope.
type Store struct {
	mu     sync.Mutex
	path   string
	secret string
	values map[string]string
}

// Open loads the store at path, creating an empty one when the file does not
// exist yet.
func Open(path, passphrase string) (*Store, error) {
	s := &Store{
		path:   path,
		secret: passphrase,
		values: make(map[string]string),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

// NewMemory returns a store without persistence.
func NewMemory() *Store {
	return &Store{values: make(map[string]string)}
}

func (s *Store) Get(key string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.values[key]
	return v, ok
}

func (s *Store) Set(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	next[key] = value
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// Delete removes every given key in one write.
func (s *Store) Delete(keys ...string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := s.cloneLocked()
	for _, key := range keys {
		delete(next, key)
	}
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

// Wipe drops all keys.
func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := make(map[string]string)
	if err := s.persistLocked(next); err != nil {
		return err
	}
	s.values = next
	return nil
}

func (s *Store) cloneLocked() map[string]string {
	next := make(map[string]string, len(s.values))
	for k, v := range s.values {
		next[k] = v
	}
	return next
}

func (s *Store) load() error {
	if s.path == "" {
		return nil
	}
	raw, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if s.secret != "" {
		raw, err = decrypt(s.secret, raw)
		if err != nil {
			return err
		}
	}
	return json.Unmarshal(raw, &s.values)
}

func (s *Store) persistLocked(values map[string]string) error {
	if s.path == "" {
		return nil
	}
	payload, err := json.Marshal(values)
	if err != nil {
		return err
	}
	if s.secret != "" {
		payload, err = encrypt(s.secret, payload)
		if err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, payload, 0o600)
}
