// Package events provides a named-channel publish/subscribe registry.
//
// Handlers are registered under a channel name and fire, in registration
// order, for every Trigger on that name. Register returns an Unregister
// function that removes exactly that registration; calling it again, or
// after the registry is destroyed, does nothing.
package events
