package state

import (
	"path/filepath"
	"sync"
)

// MemoryStore is an in-memory Store used by tests and by platforms without a
// system registry.
type MemoryStore struct {
	mu       sync.Mutex
	record   *Record
	commands map[string]string
	entry    *UninstallEntry
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{commands: make(map[string]string)}
}

func (s *MemoryStore) Load() (*Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.record == nil {
		return nil, nil
	}
	record := *s.record
	return &record, nil
}

func (s *MemoryStore) Save(record *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	saved := *record
	s.record = &saved
	return nil
}

func (s *MemoryStore) Delete() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = nil
	return nil
}

func (s *MemoryStore) RegisterCommands(installDir string, exes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exe := range exes {
		s.commands[exe] = filepath.Join(installDir, exe)
	}
	return nil
}

func (s *MemoryStore) UnregisterCommands(exes []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, exe := range exes {
		delete(s.commands, exe)
	}
	return nil
}

func (s *MemoryStore) WriteUninstallEntry(entry UninstallEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = &entry
	return nil
}

func (s *MemoryStore) DeleteUninstallEntry() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry = nil
	return nil
}

// Commands returns the registered command lookup table.
func (s *MemoryStore) Commands() map[string]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]string, len(s.commands))
	for k, v := range s.commands {
		out[k] = v
	}
	return out
}

// UninstallMetadata returns the written uninstall entry, or nil.
func (s *MemoryStore) UninstallMetadata() *UninstallEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.entry == nil {
		return nil
	}
	entry := *s.entry
	return &entry
}
