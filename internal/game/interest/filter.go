package interest

import (
	"slices"
	"sync"
)

// Filter manages subscriptions by client identity.
//
// The map is guarded by mu. Compute and Snapshot are called only from the
// engine's delivery phase, after every instance tick of the frame finished.
type Filter struct {
	mu   sync.RWMutex
	subs map[string]*Subscription
}

// NewFilter creates an empty filter.
func NewFilter() *Filter {
	return &Filter{subs: make(map[string]*Subscription, 32)}
}

// Subscribe returns the subscription of identity, creating it for instance.
// An existing subscription is switched to instance and keeps its sent rows.
func (f *Filter) Subscribe(identity, instance string) *Subscription {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.subs[identity]; ok {
		s.Switch(instance)
		return s
	}
	s := NewSubscription(identity, instance)
	f.subs[identity] = s
	return s
}

// Unsubscribe drops the subscription of identity.
func (f *Filter) Unsubscribe(identity string) {
	f.mu.Lock()
	delete(f.subs, identity)
	f.mu.Unlock()
}

// Get returns the subscription of identity.
func (f *Filter) Get(identity string) (*Subscription, bool) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	s, ok := f.subs[identity]
	return s, ok
}

// Switch moves identity's subscription to instance. Returns false if
// identity has no subscription.
func (f *Filter) Switch(identity, instance string) bool {
	f.mu.RLock()
	s, ok := f.subs[identity]
	f.mu.RUnlock()
	if ok {
		s.Switch(instance)
	}
	return ok
}

// Len returns the number of subscriptions.
func (f *Filter) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.subs)
}

// ComputeAll computes the diff of every subscription, keyed by identity.
func (f *Filter) ComputeAll(src Source) map[string]Diff {
	f.mu.RLock()
	ids := make([]string, 0, len(f.subs))
	for id := range f.subs {
		ids = append(ids, id)
	}
	f.mu.RUnlock()
	slices.Sort(ids)

	out := make(map[string]Diff, len(ids))
	for _, id := range ids {
		if s, ok := f.Get(id); ok {
			out[id] = s.Compute(src)
		}
	}
	return out
}
