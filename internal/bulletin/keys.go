package bulletin

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/Menenkel/aibulletin/internal/storage"
	"github.com/Menenkel/aibulletin/internal/summarize"
)

// ErrInvalidAPIKey indicates the model provider rejected a key.
var ErrInvalidAPIKey = errors.New("invalid api key")

// KeySource reports where the active key came from.
type KeySource string

const (
	KeySourceNone    KeySource = ""
	KeySourceEnv     KeySource = "environment"
	KeySourceStorage KeySource = "storage"
	KeySourceAPI     KeySource = "api"
)

// KeyValidator checks a key against the model provider.
type KeyValidator func(ctx context.Context, key string) error

// KeyManager owns the process-wide model API key. It is safe for concurrent use.
type KeyManager struct {
	mu       sync.RWMutex
	key      string
	source   KeySource
	store    storage.SettingsStore
	validate KeyValidator
	logger   *zap.Logger
}

// NewKeyManager builds a KeyManager. store and validate may be nil.
func NewKeyManager(store storage.SettingsStore, validate KeyValidator, logger *zap.Logger) *KeyManager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &KeyManager{store: store, validate: validate, logger: logger}
}

// Load installs the startup key: envKey when set, otherwise the stored key.
func (k *KeyManager) Load(ctx context.Context, envKey string) (KeySource, error) {
	if envKey = strings.TrimSpace(envKey); envKey != "" {
		k.install(envKey, KeySourceEnv)
		k.logger.Info("loaded API key from environment variable")
		return KeySourceEnv, nil
	}
	if k.store == nil {
		return KeySourceNone, nil
	}
	stored, err := k.store.LoadAPIKey(ctx)
	if err != nil {
		return KeySourceNone, fmt.Errorf("load stored api key: %w", err)
	}
	if stored == "" {
		return KeySourceNone, nil
	}
	k.install(stored, KeySourceStorage)
	k.logger.Info("loaded API key from storage")
	return KeySourceStorage, nil
}

// Set validates key (unless it is the development key), persists it and makes
// it active. It reports whether development mode is now on.
func (k *KeyManager) Set(ctx context.Context, key string) (bool, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return false, fmt.Errorf("%w: empty key", ErrInvalidAPIKey)
	}
	dev := key == summarize.DevKey
	if !dev && k.validate != nil {
		if err := k.validate(ctx, key); err != nil {
			return false, fmt.Errorf("%w: %v", ErrInvalidAPIKey, err)
		}
	}
	if k.store != nil {
		if err := k.store.SaveAPIKey(ctx, key); err != nil {
			return false, fmt.Errorf("save api key: %w", err)
		}
	}
	k.install(key, KeySourceAPI)
	if dev {
		k.logger.Info("using development API key")
	}
	return dev, nil
}

// Key returns the active key, or "" when none is set.
func (k *KeyManager) Key() string {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.key
}

// Source reports where the active key came from.
func (k *KeyManager) Source() KeySource {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.source
}

// HasKey reports whether any key is active.
func (k *KeyManager) HasKey() bool {
	return k.Key() != ""
}

// DevMode reports whether the development key is active.
func (k *KeyManager) DevMode() bool {
	return k.Key() == summarize.DevKey
}

func (k *KeyManager) install(key string, source KeySource) {
	k.mu.Lock()
	k.key, k.source = key, source
	k.mu.Unlock()
}
