// Package identity persists one synthetic browser fingerprint per account.
//
// The store file is shared by every account runner in the process. Writes are
// serialized by the Store mutex, so one Store value must be shared by all
// runners; two processes pointing at the same file are not supported. Each
// session name is expected to be driven by a single runner at a time.
package identity

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// Record maps a session name to its persisted user agent.
type Record struct {
	SessionName string `json:"session_name"`
	UserAgent   string `json:"user_agent"`
}

type Store struct {
	path     string
	generate func() string

	mu      sync.Mutex
	loaded  bool
	records []Record
}

func NewStore(path string) *Store {
	return &Store{
		path:     path,
		generate: GenerateUserAgent,
	}
}

// Load reads the store file. A missing or corrupt file yields an empty set.
func (s *Store) Load() []Record {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Lookup returns the stored fingerprint without creating one.
func (s *Store) Lookup(name string) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	for _, rec := range s.records {
		if rec.SessionName == name {
			return rec.UserAgent, true
		}
	}
	return "", false
}

// Resolve returns the fingerprint for name, generating and persisting a new
// one on first sight.
func (s *Store) Resolve(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("resolve fingerprint: empty session name")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.loadLocked()
	for _, rec := range s.records {
		if rec.SessionName == name {
			return rec.UserAgent, nil
		}
	}

	rec := Record{SessionName: name, UserAgent: s.generate()}
	s.records = append(s.records, rec)
	if err := s.saveLocked(); err != nil {
		s.records = s.records[:len(s.records)-1]
		return "", fmt.Errorf("resolve fingerprint: %w", err)
	}

	return rec.UserAgent, nil
}

func (s *Store) loadLocked() {
	if s.loaded {
		return
	}
	s.loaded = true
	s.records = nil

	content, err := os.ReadFile(s.path)
	if err != nil {
		return
	}

	var records []Record
	if err := json.Unmarshal(content, &records); err != nil {
		return
	}

	seen := make(map[string]bool, len(records))
	for _, rec := range records {
		if rec.SessionName == "" || rec.UserAgent == "" || seen[rec.SessionName] {
			continue
		}
		seen[rec.SessionName] = true
		s.records = append(s.records, rec)
	}
}

func (s *Store) saveLocked() error {
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("save fingerprints: ensure dir: %w", err)
		}
	}

	records := s.records
	if records == nil {
		records = []Record{}
	}
	payload, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("save fingerprints: marshal json: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, payload, 0o600); err != nil {
		return fmt.Errorf("save fingerprints: write temp file: %w", err)
	}
	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("save fingerprints: rename temp file: %w", err)
	}

	return nil
}
