package ports

import "sync"

// SimulatedLink is a manually toggled connectivity source. There is no
// real transport behind it; the TUI flips it to exercise the offline
// queue and reconnect path.
type SimulatedLink struct {
	mu       sync.Mutex
	online   bool
	next     int
	watchers map[int]func(online bool)
}

// NewSimulatedLink creates a link in the given initial state.
func NewSimulatedLink(online bool) *SimulatedLink {
	return &SimulatedLink{online: online, watchers: make(map[int]func(bool))}
}

// Online reports the current link state.
func (l *SimulatedLink) Online() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.online
}

// Watch registers an edge callback. Callbacks fire only on actual state
// changes, in SetOnline's calling goroutine.
func (l *SimulatedLink) Watch(fn func(online bool)) (stop func()) {
	l.mu.Lock()
	id := l.next
	l.next++
	l.watchers[id] = fn
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		delete(l.watchers, id)
		l.mu.Unlock()
	}
}

// SetOnline sets the link state, notifying watchers on the edge.
func (l *SimulatedLink) SetOnline(online bool) {
	l.mu.Lock()
	if l.online == online {
		l.mu.Unlock()
		return
	}
	l.online = online
	fns := make([]func(bool), 0, len(l.watchers))
	for _, fn := range l.watchers {
		fns = append(fns, fn)
	}
	l.mu.Unlock()

	for _, fn := range fns {
		fn(online)
	}
}

// Toggle flips the link state and returns the new state.
func (l *SimulatedLink) Toggle() bool {
	l.mu.Lock()
	online := !l.online
	l.mu.Unlock()
	l.SetOnline(online)
	return online
}
