package config

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/MrWong99/voxmate/internal/journal"
	"github.com/MrWong99/voxmate/pkg/provider/stt"
)

// ErrBackendNotRegistered is returned by Create* methods when no factory has
// been registered under the requested name.
var ErrBackendNotRegistered = errors.New("config: backend not registered")

// Registry maps backend names to their constructors for the offline speech
// recognizer and the utterance journal. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	stt     map[string]func(STTConfig) (stt.Provider, error)
	journal map[JournalBackend]func(context.Context, JournalConfig) (journal.Store, error)
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{
		stt:     make(map[string]func(STTConfig) (stt.Provider, error)),
		journal: make(map[JournalBackend]func(context.Context, JournalConfig) (journal.Store, error)),
	}
}

// RegisterSTT registers an offline recognizer factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSTT(name string, factory func(STTConfig) (stt.Provider, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = factory
}

// RegisterJournal registers a journal store factory for backend.
func (r *Registry) RegisterJournal(backend JournalBackend, factory func(context.Context, JournalConfig) (journal.Store, error)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.journal[backend] = factory
}

// CreateSTT instantiates the recognizer registered under cfg.Offline.
// Returns [ErrBackendNotRegistered] if no factory has been registered for
// that name.
func (r *Registry) CreateSTT(cfg STTConfig) (stt.Provider, error) {
	r.mu.RLock()
	factory, ok := r.stt[cfg.Offline]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: stt/%q", ErrBackendNotRegistered, cfg.Offline)
	}
	return factory(cfg)
}

// CreateJournal instantiates the journal store registered for cfg.Backend.
func (r *Registry) CreateJournal(ctx context.Context, cfg JournalConfig) (journal.Store, error) {
	r.mu.RLock()
	factory, ok := r.journal[cfg.Backend]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: journal/%q", ErrBackendNotRegistered, cfg.Backend)
	}
	return factory(ctx, cfg)
}
