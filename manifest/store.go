package manifest

import (
	"sync/atomic"
	"time"

	"github.com/go-upf/upf/errors"
)

// Entry is a stored manifest plus its registration instant; the timestamp
// is the tie-break of last resort during provider selection.
type Entry struct {
	Manifest     *Manifest `json:"manifest"`
	RegisteredAt time.Time `json:"registered_at"`
}

func (e Entry) clone() Entry {
	return Entry{Manifest: e.Manifest.Clone(), RegisteredAt: e.RegisteredAt}
}

// Store is the authoritative manifest table. Reads go against an immutable
// snapshot swapped atomically on every mutation, so a resolve in flight
// sees the table fully before or fully after a concurrent mutation, never
// in between. Writers acquire a timed lock: blocking past lockWait fails
// with a Timeout error instead of starving other callers.
type Store struct {
	snap     atomic.Value // map[string]Entry
	write    chan struct{}
	lockWait time.Duration
	now      func() time.Time
}

type StoreOption func(*Store)

func LockWait(d time.Duration) StoreOption {
	return func(s *Store) {
		if d > 0 {
			s.lockWait = d
		}
	}
}

func Clock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

func NewStore(opts ...StoreOption) *Store {
	s := &Store{
		write:    make(chan struct{}, 1),
		lockWait: 3 * time.Second,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.snap.Store(map[string]Entry{})
	return s
}

func (s *Store) acquire(op string) error {
	timer := time.NewTimer(s.lockWait)
	defer timer.Stop()
	select {
	case s.write <- struct{}{}:
		return nil
	case <-timer.C:
		return errors.Timeout(op)
	}
}

func (s *Store) release() {
	<-s.write
}

func (s *Store) table() map[string]Entry {
	return s.snap.Load().(map[string]Entry)
}

func (s *Store) swap(mutate func(map[string]Entry)) {
	old := s.table()
	next := make(map[string]Entry, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	mutate(next)
	s.snap.Store(next)
}

// Register validates and stores a manifest. The stored copy is detached
// from the caller's value.
func (s *Store) Register(m *Manifest) (Entry, error) {
	if err := m.Validate(); err != nil {
		return Entry{}, err
	}
	if err := s.acquire("register"); err != nil {
		return Entry{}, err
	}
	defer s.release()
	if _, ok := s.table()[m.ID]; ok {
		return Entry{}, errors.Duplicate(m.ID)
	}
	entry := Entry{Manifest: m.Clone(), RegisteredAt: s.now()}
	s.swap(func(t map[string]Entry) {
		t[m.ID] = entry
	})
	return entry.clone(), nil
}

func (s *Store) Unregister(id string) (Entry, error) {
	if err := s.acquire("unregister"); err != nil {
		return Entry{}, err
	}
	defer s.release()
	entry, ok := s.table()[id]
	if !ok {
		return Entry{}, errors.NotFound(id)
	}
	s.swap(func(t map[string]Entry) {
		delete(t, id)
	})
	return entry.clone(), nil
}

// Replace atomically swaps the manifest for id; the registration instant
// of the original entry is preserved so the incumbent tie-break holds.
func (s *Store) Replace(id string, m *Manifest) (Entry, error) {
	if err := m.Validate(); err != nil {
		return Entry{}, err
	}
	if m.ID != id {
		return Entry{}, errors.Invalid("manifest id does not match plugin id")
	}
	if err := s.acquire("replace"); err != nil {
		return Entry{}, err
	}
	defer s.release()
	old, ok := s.table()[id]
	if !ok {
		return Entry{}, errors.NotFound(id)
	}
	entry := Entry{Manifest: m.Clone(), RegisteredAt: old.RegisteredAt}
	s.swap(func(t map[string]Entry) {
		t[id] = entry
	})
	return entry.clone(), nil
}

func (s *Store) Get(id string) (Entry, bool) {
	entry, ok := s.table()[id]
	if !ok {
		return Entry{}, false
	}
	return entry.clone(), true
}

func (s *Store) List() []Entry {
	t := s.table()
	out := make([]Entry, 0, len(t))
	for _, entry := range t {
		out = append(out, entry.clone())
	}
	return out
}

// Providers returns every entry providing the named interface, all read
// from one snapshot.
func (s *Store) Providers(name string) []Entry {
	var out []Entry
	for _, entry := range s.table() {
		if len(entry.Manifest.Provided(name)) != 0 {
			out = append(out, entry.clone())
		}
	}
	return out
}

func (s *Store) Len() int {
	return len(s.table())
}
