package objectstore

import (
	"context"
	"fmt"
	"sync"

	"github.com/yungbote/autopilot-backend/internal/platform/apierr"
	"github.com/yungbote/autopilot-backend/internal/platform/logger"
)

// Store holds artefact video bytes outside the database.
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Get(ctx context.Context, key string) ([]byte, error)
	Delete(ctx context.Context, key string) error
	Name() string
	Close() error
}

// New builds the store for cfg. Inline mode has no store and returns nil.
func New(ctx context.Context, log *logger.Logger, cfg Config) (Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	var (
		st  Store
		err error
	)
	switch cfg.Mode {
	case ModeInline:
		return nil, nil
	case ModeGCS, ModeGCSEmulator:
		st, err = newGCSStore(ctx, cfg)
	case ModeMinIO:
		st, err = newMinIOStore(ctx, cfg)
	}
	if err != nil {
		return nil, fmt.Errorf("init %s object store: %w", cfg.Mode, err)
	}
	log.Info("Object storage initialized", "mode", cfg.Mode, "bucket", cfg.Bucket)
	return st, nil
}

// Memory is a process-local Store.
type Memory struct {
	mu      sync.RWMutex
	objects map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{objects: map[string][]byte{}}
}

func (m *Memory) Name() string { return "memory" }

func (m *Memory) Put(_ context.Context, key, _ string, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[key] = append([]byte(nil), data...)
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.objects[key]
	if !ok {
		return nil, apierr.Wrap(apierr.ErrNotFound, "object %s", key)
	}
	return append([]byte(nil), b...), nil
}

func (m *Memory) Delete(_ context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, key)
	return nil
}

func (m *Memory) Close() error { return nil }
