package session

import (
	"container/list"
	"sync"
	"time"

	"github.com/google/uuid"

	"bnrag/internal/conversation"
)

const (
	DefaultMaxSessions = 1000
	DefaultIdleTTL     = 30 * time.Minute
)

// Limits bound how many sessions a Store keeps. Zero values take the defaults;
// a negative value disables that limit.
type Limits struct {
	MaxSessions int
	IdleTTL     time.Duration
}

type entry struct {
	id       string
	window   *conversation.Window
	lastUsed time.Time
}

// Store hands out one conversation window per session id. Sessions idle for
// longer than the TTL are forgotten, and when the store is full the least
// recently used one makes room for a new id.
type Store struct {
	mu          sync.Mutex
	capacity    int
	maxSessions int
	idleTTL     time.Duration
	now         func() time.Time
	order       *list.List // front is most recently used
	entries     map[string]*list.Element
}

func NewStore(capacity int, limits Limits) *Store {
	if limits.MaxSessions == 0 {
		limits.MaxSessions = DefaultMaxSessions
	}
	if limits.IdleTTL == 0 {
		limits.IdleTTL = DefaultIdleTTL
	}
	return &Store{
		capacity:    capacity,
		maxSessions: limits.MaxSessions,
		idleTTL:     limits.IdleTTL,
		now:         time.Now,
		order:       list.New(),
		entries:     make(map[string]*list.Element),
	}
}

// Get returns the window for id, creating it if needed. An empty id gets a fresh
// random session id, which is returned alongside the window.
func (s *Store) Get(id string) (string, *conversation.Window) {
	if id == "" {
		id = uuid.NewString()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.expire(now)
	if el, ok := s.entries[id]; ok {
		e := el.Value.(*entry)
		e.lastUsed = now
		s.order.MoveToFront(el)
		return id, e.window
	}
	if s.maxSessions > 0 {
		for len(s.entries) >= s.maxSessions {
			s.remove(s.order.Back())
		}
	}
	e := &entry{id: id, window: conversation.NewWindow(s.capacity), lastUsed: now}
	s.entries[id] = s.order.PushFront(e)
	return id, e.window
}

// Clear empties the window of id. It reports whether the session existed.
func (s *Store) Clear(id string) bool {
	s.mu.Lock()
	now := s.now()
	s.expire(now)
	el, ok := s.entries[id]
	var w *conversation.Window
	if ok {
		e := el.Value.(*entry)
		e.lastUsed = now
		s.order.MoveToFront(el)
		w = e.window
	}
	s.mu.Unlock()
	if ok {
		w.Clear()
	}
	return ok
}

// Drop forgets the session entirely.
func (s *Store) Drop(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if el, ok := s.entries[id]; ok {
		s.remove(el)
	}
}

func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

// expire removes sessions idle past the TTL. The list is ordered by recency,
// so it stops at the first live entry from the back.
func (s *Store) expire(now time.Time) {
	if s.idleTTL < 0 {
		return
	}
	for el := s.order.Back(); el != nil; el = s.order.Back() {
		if now.Sub(el.Value.(*entry).lastUsed) <= s.idleTTL {
			return
		}
		s.remove(el)
	}
}

func (s *Store) remove(el *list.Element) {
	s.order.Remove(el)
	delete(s.entries, el.Value.(*entry).id)
}
