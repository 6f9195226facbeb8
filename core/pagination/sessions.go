package pagination

import "sync"

// Sessions holds one CursorCache per listing session (eg. per signed-in admin).
type Sessions[C any, T any] struct {
	src      Source[C, T]
	pageSize int

	mu     sync.Mutex
	caches map[string]*CursorCache[C, T]
}

func NewSessions[C any, T any](src Source[C, T], pageSize int) *Sessions[C, T] {
	return &Sessions[C, T]{
		src:      src,
		pageSize: pageSize,
		caches:   make(map[string]*CursorCache[C, T]),
	}
}

// Get returns the cache of session key, creating it when needed.
func (s *Sessions[C, T]) Get(key string) *CursorCache[C, T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	cc, ok := s.caches[key]
	if !ok {
		cc = NewCursorCache(s.src, s.pageSize)
		s.caches[key] = cc
	}
	return cc
}

func (s *Sessions[C, T]) Drop(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.caches, key)
}

// ResetAll resets every session; used when the listing order itself changed (records added or removed).
func (s *Sessions[C, T]) ResetAll() {
	s.mu.Lock()
	caches := make([]*CursorCache[C, T], 0, len(s.caches))
	for _, cc := range s.caches {
		caches = append(caches, cc)
	}
	s.mu.Unlock()

	for _, cc := range caches {
		cc.Reset()
	}
}

func (s *Sessions[C, T]) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.caches)
}
