package events

import (
	"sync"

	"github.com/arthur-debert/kvsync/pkg/lifecycle"
)

// Handler receives the data passed to Trigger.
type Handler[T any] func(data T)

// Unregister removes the registration it was returned for.
type Unregister func()

// Noop is the Unregister handed out when nothing was registered.
func Noop() {}

// registration is compared by pointer, so two registrations of the same
// handler under the same name stay distinct.
type registration[T any] struct {
	name    string
	handler Handler[T]
}

// Registry is an insertion-ordered list of registrations.
// It is safe for concurrent use; handlers run outside the lock.
type Registry[T any] struct {
	mu    sync.Mutex
	regs  []*registration[T]
	guard *lifecycle.Guard
}

// New creates an empty registry.
func New[T any]() *Registry[T] {
	return &Registry[T]{
		guard: lifecycle.NewGuard("Registry"),
	}
}

// Register appends handler under name and returns its Unregister.
func (r *Registry[T]) Register(name string, handler Handler[T]) Unregister {
	if !r.guard.Alive("Register") {
		return Noop
	}
	if handler == nil {
		return Noop
	}

	reg := &registration[T]{name: name, handler: handler}

	r.mu.Lock()
	r.regs = append(r.regs, reg)
	r.mu.Unlock()

	return func() {
		if r.guard.Destroyed() {
			return
		}
		r.remove(reg)
	}
}

func (r *Registry[T]) remove(reg *registration[T]) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for i, existing := range r.regs {
		if existing == reg {
			r.regs = append(r.regs[:i], r.regs[i+1:]...)
			return
		}
	}
}

// Trigger calls every handler registered under name with data.
// Handlers see the registrations present when Trigger started.
func (r *Registry[T]) Trigger(name string, data T) {
	if !r.guard.Alive("Trigger") {
		return
	}

	r.mu.Lock()
	var matched []Handler[T]
	for _, reg := range r.regs {
		if reg.name == name {
			matched = append(matched, reg.handler)
		}
	}
	r.mu.Unlock()

	for _, h := range matched {
		h(data)
	}
}

// Count returns the number of registrations under name.
func (r *Registry[T]) Count(name string) int {
	if !r.guard.Alive("Count") {
		return 0
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, reg := range r.regs {
		if reg.name == name {
			n++
		}
	}
	return n
}

// Destroy drops every registration. The registry is unusable afterwards.
func (r *Registry[T]) Destroy() {
	if !r.guard.Destroy() {
		return
	}

	r.mu.Lock()
	r.regs = nil
	r.mu.Unlock()
}

// Destroyed reports whether Destroy has been called.
func (r *Registry[T]) Destroyed() bool {
	return r.guard.Destroyed()
}
