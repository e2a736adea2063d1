package core

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"plantkeeper/pkg/domain"
)

// ErrUnknownSubscription is returned when listening on a name that was never registered.
var ErrUnknownSubscription = errors.New("unknown subscription")

// Subscription selects committed changes of one entity type. A nil Predicate
// matches every change of that type.
type Subscription struct {
	Entity    domain.EntityType
	Predicate func(domain.Change) bool
}

// Event is a committed change delivered to a subscription listener.
type Event struct {
	Subscription string        `json:"subscription"`
	Change       domain.Change `json:"change"`
}

type subscriptionEntry struct {
	sub       Subscription
	listeners map[int]chan Event
}

// SubscriptionRegistry holds named subscriptions and fans committed changes
// out to their listeners. Slow listeners lose events instead of blocking commits.
type SubscriptionRegistry struct {
	mu      sync.Mutex
	entries map[string]*subscriptionEntry
	nextID  int
	buffer  int
	logger  Logger
	closed  bool
}

// NewSubscriptionRegistry constructs an empty registry.
func NewSubscriptionRegistry(logger Logger, buffer int) *SubscriptionRegistry {
	if logger == nil {
		logger = noopLogger{}
	}
	if buffer <= 0 {
		buffer = 1
	}
	return &SubscriptionRegistry{entries: make(map[string]*subscriptionEntry), buffer: buffer, logger: logger}
}

// AddOrUpdate registers sub under name, replacing the selection of an existing
// subscription while keeping its listeners attached.
func (r *SubscriptionRegistry) AddOrUpdate(name string, sub Subscription) error {
	if name == "" {
		return fmt.Errorf("subscription name required")
	}
	if sub.Entity == "" {
		return fmt.Errorf("subscription %s: entity required", name)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if e, ok := r.entries[name]; ok {
		e.sub = sub
		return nil
	}
	r.entries[name] = &subscriptionEntry{sub: sub, listeners: make(map[int]chan Event)}
	return nil
}

// Remove drops a subscription and closes its listeners.
func (r *SubscriptionRegistry) Remove(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok {
		return false
	}
	for id, ch := range e.listeners {
		close(ch)
		delete(e.listeners, id)
	}
	delete(r.entries, name)
	return true
}

// Names lists registered subscriptions in lexical order.
func (r *SubscriptionRegistry) Names() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, 0, len(r.entries))
	for name := range r.entries {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Listen attaches a listener to name. The returned cancel func detaches it and
// closes the channel; calling it more than once is safe.
func (r *SubscriptionRegistry) Listen(name string) (<-chan Event, func(), error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[name]
	if !ok || r.closed {
		return nil, nil, fmt.Errorf("%w: %s", ErrUnknownSubscription, name)
	}
	id := r.nextID
	r.nextID++
	ch := make(chan Event, r.buffer)
	e.listeners[id] = ch
	cancel := func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		if entry, ok := r.entries[name]; ok {
			if c, ok := entry.listeners[id]; ok {
				close(c)
				delete(entry.listeners, id)
			}
		}
	}
	return ch, cancel, nil
}

// Publish delivers each change to every listener whose subscription matches.
func (r *SubscriptionRegistry) Publish(changes []domain.Change) {
	if len(changes) == 0 {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		if len(e.listeners) == 0 {
			continue
		}
		for _, change := range changes {
			if change.Entity != e.sub.Entity {
				continue
			}
			if e.sub.Predicate != nil && !e.sub.Predicate(change) {
				continue
			}
			for _, ch := range e.listeners {
				select {
				case ch <- Event{Subscription: name, Change: change}:
				default:
					r.logger.Warn("subscription listener full, dropping event", "subscription", name, "entity", change.Entity, "action", change.Action)
				}
			}
		}
	}
}

// Close removes every subscription and closes all listeners.
func (r *SubscriptionRegistry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for name, e := range r.entries {
		for id, ch := range e.listeners {
			close(ch)
			delete(e.listeners, id)
		}
		delete(r.entries, name)
	}
	r.closed = true
}

// OwnedBy builds a predicate matching changes to plants or rooms owned by
// userID, and to profiles belonging to userID, before or after the change.
func OwnedBy(userID string) func(domain.Change) bool {
	return func(c domain.Change) bool {
		return ownedBy(c.Before, userID) || ownedBy(c.After, userID)
	}
}

func ownedBy(v any, userID string) bool {
	switch e := v.(type) {
	case domain.Plant:
		return domain.IsOwner(&e, userID)
	case domain.Room:
		return domain.IsOwner(&e, userID)
	case domain.Profile:
		return e.OwnerID == userID
	default:
		return false
	}
}

// AddOrUpdateSubscription registers a named subscription on the service.
func (s *Service) AddOrUpdateSubscription(name string, sub Subscription) error {
	return s.subs.AddOrUpdate(name, sub)
}

// RemoveSubscription drops a named subscription.
func (s *Service) RemoveSubscription(name string) bool {
	return s.subs.Remove(name)
}

// Subscribe attaches a listener to a named subscription.
func (s *Service) Subscribe(name string) (<-chan Event, func(), error) {
	return s.subs.Listen(name)
}
