package http

import "sync"

// AbortSignal cancels in-flight exchanges cooperatively. Once aborted it stays
// aborted. The zero value is ready to use.
type AbortSignal struct {
	mu        sync.Mutex
	aborted   bool
	nextID    int
	listeners map[int]func()
	done      chan struct{}
}

// NewAbortSignal returns a signal that has not fired.
func NewAbortSignal() *AbortSignal {
	return &AbortSignal{}
}

// lazyInit must be called with mu held.
func (s *AbortSignal) lazyInit() {
	if s.listeners == nil {
		s.listeners = make(map[int]func())
	}
	if s.done == nil {
		s.done = make(chan struct{})
	}
}

// Abort fires the signal and notifies every registered listener. Listener
// panics are recovered. Calling Abort again notifies the listeners again.
func (s *AbortSignal) Abort() {
	s.mu.Lock()
	s.lazyInit()
	if !s.aborted {
		s.aborted = true
		close(s.done)
	}
	listeners := make([]func(), 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.mu.Unlock()

	for _, l := range listeners {
		notify(l)
	}
}

func notify(l func()) {
	defer func() { _ = recover() }()
	l()
}

// Aborted reports whether Abort has been called.
func (s *AbortSignal) Aborted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.aborted
}

// Done is closed when the signal fires.
func (s *AbortSignal) Done() <-chan struct{} {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lazyInit()
	return s.done
}

// AddListener registers fn to run when the signal fires and returns a function that unregisters it.
func (s *AbortSignal) AddListener(fn func()) (remove func()) {
	s.mu.Lock()
	s.lazyInit()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.listeners, id)
		s.mu.Unlock()
	}
}
