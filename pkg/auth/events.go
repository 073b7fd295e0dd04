package auth

import "sync"

// Event reports a session connecting or disconnecting.
type Event struct {
	Account   string
	Connected bool
}

// notifier fans events out to registered listeners.
type notifier struct {
	mu        sync.Mutex
	next      int
	listeners map[int]func(Event)
}

// OnChange registers fn and returns a function that removes it.
func (n *notifier) OnChange(fn func(Event)) (cancel func()) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.listeners == nil {
		n.listeners = make(map[int]func(Event))
	}
	id := n.next
	n.next++
	n.listeners[id] = fn
	return func() {
		n.mu.Lock()
		delete(n.listeners, id)
		n.mu.Unlock()
	}
}

func (n *notifier) emit(ev Event) {
	n.mu.Lock()
	fns := make([]func(Event), 0, len(n.listeners))
	for _, fn := range n.listeners {
		fns = append(fns, fn)
	}
	n.mu.Unlock()

	for _, fn := range fns {
		fn(ev)
	}
}
