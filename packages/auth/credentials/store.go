package credentials

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

// Persister writes store changes to durable storage.
type Persister interface {
	SaveCredential(key string, rec *Record) error
	DeleteCredential(key string) error
	WipeCredentials() error
}

// Store provides thread-safe storage for authentication records keyed by host.
type Store struct {
	mu      sync.RWMutex
	records map[string]*Record

	locksMu sync.Mutex
	locks   map[string]*sync.Mutex

	persister Persister
	logger    *slog.Logger
}

// StoreOption configures a Store.
type StoreOption func(*Store)

// WithPersister mirrors every write to p.
func WithPersister(p Persister) StoreOption {
	return func(s *Store) {
		s.persister = p
	}
}

// WithData seeds the store with records indexed by origin key.
func WithData(data map[string]*Record) StoreOption {
	return func(s *Store) {
		for k, rec := range data {
			s.records[k] = rec.Clone()
		}
	}
}

// WithLogger sets the logger used for store events.
func WithLogger(l *slog.Logger) StoreOption {
	return func(s *Store) {
		s.logger = l
	}
}

// NewStore creates an empty store.
func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		records: make(map[string]*Record),
		locks:   make(map[string]*sync.Mutex),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Set stores rec under the host of its authentication URL, replacing any
// existing record for that host. A record without an ID is assigned one.
func (s *Store) Set(rec *Record) error {
	if rec == nil {
		return ErrMissingOrigin
	}
	host, err := HostOf(rec.AuthenticationURL)
	if err != nil {
		return err
	}

	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = uuid.New().String()
	}
	key := OriginKey(host)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.SaveCredential(key, stored); err != nil {
			return fmt.Errorf("failed to persist credential for %s: %w", host, err)
		}
	}
	s.records[key] = stored

	// Only the host is logged, never token values.
	s.logger.Debug("stored credentials", "host", host)
	return nil
}

// Get returns a copy of the record for host, or nil if none is stored.
func (s *Store) Get(host string) *Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.records[OriginKey(host)].Clone()
}

// Delete removes the record for host.
func (s *Store) Delete(host string) error {
	key := OriginKey(host)

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.DeleteCredential(key); err != nil {
			return fmt.Errorf("failed to delete credential for %s: %w", host, err)
		}
	}
	delete(s.records, key)
	s.logger.Debug("deleted credentials", "host", host)
	return nil
}

// Wipe removes all records.
func (s *Store) Wipe() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.persister != nil {
		if err := s.persister.WipeCredentials(); err != nil {
			return fmt.Errorf("failed to wipe credentials: %w", err)
		}
	}
	s.records = make(map[string]*Record)
	return nil
}

// Snapshot returns a copy of all records indexed by origin key.
func (s *Store) Snapshot() map[string]*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make(map[string]*Record, len(s.records))
	for k, rec := range s.records {
		out[k] = rec.Clone()
	}
	return out
}

// Count returns the number of stored records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Lock acquires the exclusive lock for host and returns the release function.
// Holders may read, refresh and Set the host's record without interleaving
// with another holder.
func (s *Store) Lock(host string) func() {
	key := OriginKey(host)

	s.locksMu.Lock()
	l, ok := s.locks[key]
	if !ok {
		l = &sync.Mutex{}
		s.locks[key] = l
	}
	s.locksMu.Unlock()

	l.Lock()
	return l.Unlock
}
