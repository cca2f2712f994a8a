package urlstate

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Store is the page's URL state. Every change produces a new immutable Query and a new
// version, and is announced to subscribers.
type Store struct {
	mu      sync.RWMutex
	query   Query
	version uint64
	props   []Property
	subs    map[int]chan uint64
	nextSub int
	logger  *logrus.Logger
}

// NewStore creates a store from the initial parameters, resolved against props.
func NewStore(initial Query, props []Property, logger *logrus.Logger) *Store {
	return &Store{
		query:   ResolveProperties(initial, props),
		version: 1,
		props:   props,
		subs:    make(map[int]chan uint64),
		logger:  logger,
	}
}

// Query returns the current snapshot.
func (s *Store) Query() Query {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query
}

// Version returns the current version; it increases on every effective update.
func (s *Store) Version() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.version
}

// Snapshot returns the current query together with its version.
func (s *Store) Snapshot() (Query, uint64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.query, s.version
}

// UpdateRoute merges set into the query and removes unset keys. Updates that leave the query
// unchanged are dropped and return false.
func (s *Store) UpdateRoute(set map[string]string, unset ...string) bool {
	s.mu.Lock()
	next := s.query.Merge(set, unset...)
	if next.Equal(s.query) {
		s.mu.Unlock()
		return false
	}
	s.query = next
	s.version++
	version := s.version
	for _, ch := range s.subs {
		notify(ch, version)
	}
	s.mu.Unlock()

	s.logger.WithFields(logrus.Fields{
		"version": version,
		"set":     set,
		"unset":   unset,
	}).Debug("URL state updated")

	return true
}

// Replace swaps the whole query, e.g. when a bookmarked session is restored.
func (s *Store) Replace(q Query) bool {
	current := s.Query()
	resolved := ResolveProperties(q, s.props)
	set := resolved.Map()
	var unset []string
	for _, k := range current.Keys() {
		if !resolved.Has(k) {
			unset = append(unset, k)
		}
	}
	return s.UpdateRoute(set, unset...)
}

// notify delivers version without blocking; a subscriber only needs the latest one.
func notify(ch chan uint64, version uint64) {
	select {
	case ch <- version:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- version:
	default:
	}
}

// SessionProps returns the parameters flagged as session properties.
func (s *Store) SessionProps() map[string]string {
	q := s.Query()
	out := make(map[string]string)
	for _, p := range s.props {
		if !p.IsSessionProp {
			continue
		}
		if v, ok := q.Get(p.Name); ok {
			out[p.Name] = v
		}
	}
	return out
}

// Subscribe returns a channel receiving the version after each update, and a function that
// cancels the subscription.
func (s *Store) Subscribe() (<-chan uint64, func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextSub
	s.nextSub++
	ch := make(chan uint64, 1)
	s.subs[id] = ch
	return ch, func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if c, ok := s.subs[id]; ok {
			delete(s.subs, id)
			close(c)
		}
	}
}
