package config

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// Snapshot is an immutable view of the configuration. Handlers hold a
// snapshot for the duration of a request; a reload never mutates one
// in place.
type Snapshot struct {
	Config      *Config
	RulesetHash string
}

// Store serves the current configuration snapshot and swaps it
// atomically on reload.
type Store struct {
	path   string
	logger *zap.Logger
	cur    atomic.Pointer[Snapshot]

	mu   sync.Mutex
	subs []func(*Snapshot)
}

// NewStore loads the file at path (or defaults when absent) and
// returns a store serving that snapshot.
func NewStore(path string, logger *zap.Logger) (*Store, error) {
	s := &Store{path: path, logger: logger}
	if err := s.Reload(); err != nil {
		return nil, err
	}
	return s, nil
}

// Current returns the active snapshot. Never nil after NewStore.
func (s *Store) Current() *Snapshot {
	return s.cur.Load()
}

// Subscribe registers fn to run after every successful reload, with the
// snapshot that was just installed. Callbacks run on the reloading
// goroutine and must not block.
func (s *Store) Subscribe(fn func(*Snapshot)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.subs = append(s.subs, fn)
}

// Reload re-reads the file and swaps the snapshot. On error the
// previous snapshot stays active.
func (s *Store) Reload() error {
	cfg, hash, err := Load(s.path)
	if err != nil {
		return err
	}
	snap := &Snapshot{Config: cfg, RulesetHash: hash}
	s.cur.Store(snap)
	s.logger.Info("configuration loaded",
		zap.String("path", s.path),
		zap.String("ruleset_hash", hash),
		zap.Int("policies", len(cfg.Policies)))

	s.mu.Lock()
	subs := append([]func(*Snapshot){}, s.subs...)
	s.mu.Unlock()
	for _, fn := range subs {
		fn(snap)
	}
	return nil
}
