package blob

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/uuid/v5"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"
)

// Scheme prefixes every URL handed out by a MemoryStore.
const Scheme = "blob:"

type entry struct {
	data    []byte
	mime    string
	expires time.Time
}

// MemoryStore keeps blobs in process memory. URLs have the form
// blob:<base>/<uuid> and stay valid until revoked or, with a TTL, until
// the next sweep after they expire.
type MemoryStore struct {
	base string
	ttl  time.Duration
	now  func() time.Time

	mu    sync.RWMutex
	items map[string]entry

	cron *cron.Cron
}

// NewMemoryStore creates a store whose URLs start with blob:<base>/.
// A zero ttl keeps blobs until they are revoked.
func NewMemoryStore(base string, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		base:  strings.TrimSuffix(base, "/"),
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]entry),
	}
}

// Put stores a copy of data and returns its URL.
func (s *MemoryStore) Put(_ context.Context, data []byte, mime string) (string, error) {
	id, err := uuid.NewV4()
	if err != nil {
		return "", fmt.Errorf("blob id: %w", err)
	}

	e := entry{data: append([]byte(nil), data...), mime: mime}
	if s.ttl > 0 {
		e.expires = s.now().Add(s.ttl)
	}

	s.mu.Lock()
	s.items[id.String()] = e
	s.mu.Unlock()

	return s.URL(id.String()), nil
}

// URL returns the URL for id.
func (s *MemoryStore) URL(id string) string {
	return Scheme + s.base + "/" + id
}

// ID extracts the blob id from a URL produced by this store.
func (s *MemoryStore) ID(url string) (string, bool) {
	prefix := Scheme + s.base + "/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	return strings.TrimPrefix(url, prefix), true
}

// Get returns the bytes and MIME type stored under id.
func (s *MemoryStore) Get(id string) ([]byte, string, error) {
	s.mu.RLock()
	e, ok := s.items[id]
	s.mu.RUnlock()

	if !ok || s.expired(e) {
		return nil, "", ErrNotFound
	}
	return e.data, e.mime, nil
}

// Revoke removes id and reports whether it existed.
func (s *MemoryStore) Revoke(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.items[id]
	delete(s.items, id)
	return ok
}

// Len returns the number of stored blobs, expired ones included.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Sweep drops expired blobs and returns how many were removed.
func (s *MemoryStore) Sweep() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, e := range s.items {
		if s.expired(e) {
			delete(s.items, id)
			removed++
		}
	}
	return removed
}

func (s *MemoryStore) expired(e entry) bool {
	return !e.expires.IsZero() && !s.now().Before(e.expires)
}

// StartSweeper runs Sweep on a cron schedule such as "@every 1m".
func (s *MemoryStore) StartSweeper(spec string) error {
	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		if n := s.Sweep(); n > 0 {
			log.Debug().Int("removed", n).Msg("swept expired blobs")
		}
	}); err != nil {
		return fmt.Errorf("schedule sweep %q: %w", spec, err)
	}
	c.Start()
	s.cron = c
	log.Info().Str("schedule", spec).Dur("ttl", s.ttl).Msg("blob sweeper started")
	return nil
}

// Stop halts the sweeper, if running.
func (s *MemoryStore) Stop() {
	if s.cron != nil {
		<-s.cron.Stop().Done()
		s.cron = nil
	}
}
