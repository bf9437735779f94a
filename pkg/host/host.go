// Package host defines the capabilities kvsync needs from its environment:
// a shared string key-value store and a source of change notifications.
//
// Notifications follow shared-storage semantics: a change made through one
// context is announced to every other context attached to the same store,
// never to the context that made it.
package host

// StorageChannel is the notification channel carrying store changes.
const StorageChannel = "storage"

// Change is a raw change notification. A nil pointer is an absent value.
// A nil Key means the whole store was cleared.
type Change struct {
	Key      *string
	OldValue *string
	NewValue *string
}

// Cleared reports whether the change announces a cleared store.
func (c Change) Cleared() bool {
	return c.Key == nil
}

// Store is a string key-value store.
type Store interface {
	// GetItem returns the value for key and whether it exists.
	GetItem(key string) (string, bool)
	SetItem(key, value string) error
	RemoveItem(key string) error
}

// Lister is implemented by stores that can enumerate their keys.
type Lister interface {
	Keys() ([]string, error)
}

// Clearer is implemented by stores that can remove every item at once.
type Clearer interface {
	Clear() error
}

// Listener receives raw changes. Listeners are compared by identity, so
// implementations should be pointer types.
type Listener interface {
	HandleChange(Change)
}

// Notifier delivers raw changes to listeners registered on a channel.
type Notifier interface {
	AddListener(channel string, l Listener)
	RemoveListener(channel string, l Listener)
}

// ListenerFunc adapts a function to a Listener. Register it by pointer so
// it can be removed again.
type ListenerFunc func(Change)

// HandleChange calls f(c).
func (f *ListenerFunc) HandleChange(c Change) {
	(*f)(c)
}

// Environment bundles the capabilities a host provides. A nil field means
// the capability is absent.
type Environment struct {
	Store    Store
	Notifier Notifier
}

// Enabled reports whether both required capabilities are present.
func (e Environment) Enabled() bool {
	return e.Store != nil && e.Notifier != nil
}

// String returns a pointer to s, for building Change values.
func String(s string) *string {
	return &s
}
