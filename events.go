package godesk

import "sync"

// EventKind identifies one of the desk event streams observers can attach to.
type EventKind int

const (
	// EventHeightChanged fires once per decoded height notification.
	EventHeightChanged EventKind = iota
	// EventNameAcknowledged fires when the desk acknowledges a rename.
	EventNameAcknowledged
)

func (k EventKind) String() string {
	switch k {
	case EventHeightChanged:
		return "height-changed"
	case EventNameAcknowledged:
		return "name-acknowledged"
	default:
		return "unknown"
	}
}

// State is the snapshot of a desk session passed to observers.
type State struct {
	Address string
	Name    string
	Height  float64 // inches
	Moving  bool
}

// Observer receives a session snapshot when its event fires.
type Observer func(State)

// Token identifies a single subscription for later removal. Go functions are
// not comparable, so removal is by token rather than by callback value.
type Token uint64

type subscription struct {
	token Token
	fn    Observer
}

// Registry holds observers per event kind and dispatches to them in
// registration order. Subscribing the same callback twice yields two
// deliveries per event; that is the caller's lookout.
type Registry struct {
	mu   sync.Mutex
	next Token
	subs map[EventKind][]subscription
}

// NewRegistry creates an empty observer registry.
func NewRegistry() *Registry {
	return &Registry{subs: make(map[EventKind][]subscription)}
}

// Subscribe appends an observer to the end of the kind's dispatch order.
func (r *Registry) Subscribe(kind EventKind, fn Observer) Token {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.next++
	r.subs[kind] = append(r.subs[kind], subscription{token: r.next, fn: fn})
	return r.next
}

// Unsubscribe removes the first subscription matching the token. Removing a
// token that was never registered (or already removed) is a no-op.
func (r *Registry) Unsubscribe(kind EventKind, token Token) {
	r.mu.Lock()
	defer r.mu.Unlock()

	subs := r.subs[kind]
	for i, s := range subs {
		if s.token == token {
			r.subs[kind] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Dispatch invokes every observer registered for the kind, sequentially and
// in registration order. Observers may subscribe or unsubscribe from within
// a callback; such changes take effect on the next dispatch.
func (r *Registry) Dispatch(kind EventKind, state State) {
	r.mu.Lock()
	subs := make([]subscription, len(r.subs[kind]))
	copy(subs, r.subs[kind])
	r.mu.Unlock()

	for _, s := range subs {
		s.fn(state)
	}
}
