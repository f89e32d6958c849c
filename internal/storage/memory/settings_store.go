package memory

import (
	"context"
	"sync"

	"github.com/Menenkel/aibulletin/internal/storage"
)

// SettingsStore is a volatile storage.SettingsStore.
type SettingsStore struct {
	mu           sync.RWMutex
	apiKey       string
	systemPrompt string
	history      []storage.HistoryEntry
	historyLimit int
}

// NewSettingsStore keeps up to historyLimit URL history entries.
func NewSettingsStore(historyLimit int) *SettingsStore {
	if historyLimit <= 0 {
		historyLimit = storage.DefaultHistoryLimit
	}
	return &SettingsStore{historyLimit: historyLimit}
}

// SaveAPIKey stores the key.
func (s *SettingsStore) SaveAPIKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = key
	return nil
}

// LoadAPIKey returns the stored key.
func (s *SettingsStore) LoadAPIKey(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.apiKey, nil
}

// ClearAPIKey forgets the key.
func (s *SettingsStore) ClearAPIKey(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.apiKey = ""
	return nil
}

// SaveSystemPrompt stores the prompt.
func (s *SettingsStore) SaveSystemPrompt(_ context.Context, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.systemPrompt = prompt
	return nil
}

// LoadSystemPrompt returns the stored prompt.
func (s *SettingsStore) LoadSystemPrompt(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.systemPrompt, nil
}

// SaveURLs appends a history entry.
func (s *SettingsStore) SaveURLs(_ context.Context, entry storage.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.history = storage.AppendHistory(s.history, entry, s.historyLimit)
	return nil
}

// RecentURLs returns up to limit newest entries, oldest first.
func (s *SettingsStore) RecentURLs(_ context.Context, limit int) ([]storage.HistoryEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return storage.Tail(s.history, limit), nil
}

// RecentPrompt returns the newest entry's custom prompt.
func (s *SettingsStore) RecentPrompt(context.Context) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if len(s.history) == 0 {
		return "", nil
	}
	return s.history[len(s.history)-1].CustomPrompt, nil
}
