// Package memory is an in-process host. Several contexts share one store;
// a change made through one context is announced to every other context
// and never to the one that made it, the way browser tabs share storage.
package memory

import (
	"sort"
	"sync"

	"github.com/arthur-debert/kvsync/pkg/host"
)

// Shared is the store shared by all contexts created from it.
type Shared struct {
	mu       sync.Mutex
	data     map[string]string
	contexts []*Context

	// pending holds announcements in mutation order. One goroutine at a
	// time drains it, so listeners see changes one by one and in order.
	pending  []announcement
	draining bool
}

type announcement struct {
	targets []*Context
	change  host.Change
}

// NewShared creates an empty shared store.
func NewShared() *Shared {
	return &Shared{
		data: make(map[string]string),
	}
}

// NewContext attaches a new context to the shared store.
func (s *Shared) NewContext() *Context {
	c := &Context{
		shared:    s,
		listeners: make(map[string][]host.Listener),
	}

	s.mu.Lock()
	s.contexts = append(s.contexts, c)
	s.mu.Unlock()

	return c
}

// Len returns the number of stored items.
func (s *Shared) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// others returns every attached context except c. Callers hold s.mu.
func (s *Shared) others(c *Context) []*Context {
	out := make([]*Context, 0, len(s.contexts))
	for _, other := range s.contexts {
		if other != c {
			out = append(out, other)
		}
	}
	return out
}

// announce queues change for every context except from. Callers hold s.mu.
func (s *Shared) announce(from *Context, change host.Change) {
	s.pending = append(s.pending, announcement{targets: s.others(from), change: change})
}

// drain delivers pending announcements unless another goroutine already
// is. A write made by a listener during delivery is queued and delivered
// by the draining goroutine once the current change has reached everyone.
func (s *Shared) drain() {
	s.mu.Lock()
	if s.draining {
		s.mu.Unlock()
		return
	}
	s.draining = true
	s.mu.Unlock()

	done := false
	defer func() {
		if !done {
			s.mu.Lock()
			s.draining = false
			s.mu.Unlock()
		}
	}()

	for {
		s.mu.Lock()
		if len(s.pending) == 0 {
			s.draining = false
			s.mu.Unlock()
			done = true
			return
		}
		next := s.pending[0]
		s.pending = s.pending[1:]
		s.mu.Unlock()

		for _, t := range next.targets {
			t.deliver(next.change)
		}
	}
}

func (s *Shared) detach(c *Context) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, other := range s.contexts {
		if other == c {
			s.contexts = append(s.contexts[:i], s.contexts[i+1:]...)
			return
		}
	}
}

// Context is one participant of a Shared store. It implements host.Store,
// host.Lister, host.Clearer and host.Notifier.
type Context struct {
	shared *Shared

	mu        sync.Mutex
	listeners map[string][]host.Listener
}

// Environment returns the context as a host environment.
func (c *Context) Environment() host.Environment {
	return host.Environment{Store: c, Notifier: c}
}

// GetItem returns the value stored under key.
func (c *Context) GetItem(key string) (string, bool) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()

	v, ok := c.shared.data[key]
	return v, ok
}

// SetItem stores value under key. Writing the value already stored is not
// a change and announces nothing.
func (c *Context) SetItem(key, value string) error {
	c.shared.mu.Lock()
	old, had := c.shared.data[key]
	if had && old == value {
		c.shared.mu.Unlock()
		return nil
	}
	c.shared.data[key] = value
	change := host.Change{Key: host.String(key), NewValue: host.String(value)}
	if had {
		change.OldValue = host.String(old)
	}
	c.shared.announce(c, change)
	c.shared.mu.Unlock()

	c.shared.drain()
	return nil
}

// RemoveItem deletes key. Removing a missing key announces nothing.
func (c *Context) RemoveItem(key string) error {
	c.shared.mu.Lock()
	old, had := c.shared.data[key]
	if !had {
		c.shared.mu.Unlock()
		return nil
	}
	delete(c.shared.data, key)
	c.shared.announce(c, host.Change{Key: host.String(key), OldValue: host.String(old)})
	c.shared.mu.Unlock()

	c.shared.drain()
	return nil
}

// Keys returns all stored keys in sorted order.
func (c *Context) Keys() ([]string, error) {
	c.shared.mu.Lock()
	defer c.shared.mu.Unlock()

	keys := make([]string, 0, len(c.shared.data))
	for k := range c.shared.data {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every item and announces a cleared store.
func (c *Context) Clear() error {
	c.shared.mu.Lock()
	c.shared.data = make(map[string]string)
	c.shared.announce(c, host.Change{})
	c.shared.mu.Unlock()

	c.shared.drain()
	return nil
}

// AddListener registers l on channel. Adding a listener that is already
// registered on the channel does nothing.
func (c *Context) AddListener(channel string, l host.Listener) {
	if l == nil {
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.listeners[channel] {
		if existing == l {
			return
		}
	}
	c.listeners[channel] = append(c.listeners[channel], l)
}

// RemoveListener unregisters l from channel.
func (c *Context) RemoveListener(channel string, l host.Listener) {
	c.mu.Lock()
	defer c.mu.Unlock()

	ls := c.listeners[channel]
	for i, existing := range ls {
		if existing == l {
			c.listeners[channel] = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	if len(c.listeners[channel]) == 0 {
		delete(c.listeners, channel)
	}
}

// ListenerCount returns the number of listeners on channel.
func (c *Context) ListenerCount(channel string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.listeners[channel])
}

// Emit delivers change to this context's own storage listeners, as if the
// host had announced it. The store contents are not touched.
func (c *Context) Emit(change host.Change) {
	c.deliver(change)
}

// Close detaches the context; it stops receiving changes.
func (c *Context) Close() {
	c.shared.detach(c)
}

func (c *Context) deliver(change host.Change) {
	c.mu.Lock()
	ls := make([]host.Listener, len(c.listeners[host.StorageChannel]))
	copy(ls, c.listeners[host.StorageChannel])
	c.mu.Unlock()

	for _, l := range ls {
		l.HandleChange(change)
	}
}
