package local

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/Menenkel/aibulletin/internal/storage"
)

// File names are kept stable so existing data directories keep working.
const (
	apiKeyFile       = "api_key.json"
	urlsFile         = "saved_urls.json"
	systemPromptFile = "system_prompt.json"
)

// SettingsStore is a storage.SettingsStore backed by small JSON files.
type SettingsStore struct {
	mu           sync.Mutex
	dir          string
	historyLimit int
}

// NewSettingsStore prepares dir and keeps up to historyLimit URL entries.
func NewSettingsStore(cfg Config, historyLimit int) (*SettingsStore, error) {
	dir, err := prepareDir(cfg.BaseDir)
	if err != nil {
		return nil, err
	}
	if historyLimit <= 0 {
		historyLimit = storage.DefaultHistoryLimit
	}
	return &SettingsStore{dir: dir, historyLimit: historyLimit}, nil
}

type apiKeyDoc struct {
	APIKey string `json:"api_key"`
}

type systemPromptDoc struct {
	SystemPrompt string `json:"system_prompt"`
}

// SaveAPIKey writes api_key.json.
func (s *SettingsStore) SaveAPIKey(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(apiKeyFile, apiKeyDoc{APIKey: key})
}

// LoadAPIKey reads api_key.json.
func (s *SettingsStore) LoadAPIKey(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var doc apiKeyDoc
	if err := s.readJSON(apiKeyFile, &doc); err != nil {
		return "", err
	}
	return doc.APIKey, nil
}

// ClearAPIKey removes api_key.json.
func (s *SettingsStore) ClearAPIKey(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := os.Remove(filepath.Join(s.dir, apiKeyFile))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("clear api key: %w", err)
	}
	return nil
}

// SaveSystemPrompt writes system_prompt.json.
func (s *SettingsStore) SaveSystemPrompt(_ context.Context, prompt string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.writeJSON(systemPromptFile, systemPromptDoc{SystemPrompt: prompt})
}

// LoadSystemPrompt reads system_prompt.json.
func (s *SettingsStore) LoadSystemPrompt(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var doc systemPromptDoc
	if err := s.readJSON(systemPromptFile, &doc); err != nil {
		return "", err
	}
	return doc.SystemPrompt, nil
}

// SaveURLs appends to saved_urls.json.
func (s *SettingsStore) SaveURLs(_ context.Context, entry storage.HistoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.loadHistory()
	if err != nil {
		return err
	}
	return s.writeJSON(urlsFile, storage.AppendHistory(history, entry, s.historyLimit))
}

// RecentURLs returns up to limit newest entries, oldest first.
func (s *SettingsStore) RecentURLs(_ context.Context, limit int) ([]storage.HistoryEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.loadHistory()
	if err != nil {
		return nil, err
	}
	return storage.Tail(history, limit), nil
}

// RecentPrompt returns the newest entry's custom prompt.
func (s *SettingsStore) RecentPrompt(context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	history, err := s.loadHistory()
	if err != nil || len(history) == 0 {
		return "", err
	}
	return history[len(history)-1].CustomPrompt, nil
}

func (s *SettingsStore) loadHistory() ([]storage.HistoryEntry, error) {
	var history []storage.HistoryEntry
	if err := s.readJSON(urlsFile, &history); err != nil {
		return nil, err
	}
	return history, nil
}

// readJSON leaves v untouched when the file does not exist.
func (s *SettingsStore) readJSON(name string, v any) error {
	raw, err := os.ReadFile(filepath.Join(s.dir, name))
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}

func (s *SettingsStore) writeJSON(name string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	if err := writeFileAtomic(filepath.Join(s.dir, name), raw); err != nil {
		return fmt.Errorf("write %s: %w", name, err)
	}
	return nil
}
