package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/Menenkel/aibulletin/internal/storage"
)

// Archive provides an in-memory storage.Archive for development/testing.
type Archive struct {
	mu        sync.RWMutex
	bulletins map[string]storage.Bulletin
	order     []string
}

// NewArchive constructs an Archive.
func NewArchive() *Archive {
	return &Archive{bulletins: make(map[string]storage.Bulletin)}
}

// SaveBulletin stores a new bulletin.
func (a *Archive) SaveBulletin(_ context.Context, b storage.Bulletin) error {
	if b.ID == "" {
		return errors.New("bulletin id is required")
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, exists := a.bulletins[b.ID]; exists {
		return errors.New("bulletin already exists")
	}
	b.URLs = append([]string(nil), b.URLs...)
	a.bulletins[b.ID] = b
	a.order = append(a.order, b.ID)
	return nil
}

// GetBulletin fetches a bulletin by ID.
func (a *Archive) GetBulletin(_ context.Context, id string) (storage.Bulletin, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	b, ok := a.bulletins[id]
	if !ok {
		return storage.Bulletin{}, storage.ErrNotFound
	}
	return b, nil
}

// ListBulletins returns up to limit bulletins, newest first.
func (a *Archive) ListBulletins(_ context.Context, limit int) ([]storage.Bulletin, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if limit <= 0 || limit > len(a.order) {
		limit = len(a.order)
	}
	out := make([]storage.Bulletin, 0, limit)
	for i := len(a.order) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, a.bulletins[a.order[i]])
	}
	return out, nil
}
