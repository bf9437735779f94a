// Package storage turns a shared host key-value store into a scoped,
// typed event source.
//
// A Sync wraps a host environment. Values are JSON encoded on Set and
// decoded on Get. Raw change notifications from the host are classified as
// cleared, created, deleted or modified, filtered by the instance prefix,
// stripped of that prefix, decoded, and republished to two registries:
// one for every change (Register) and one per item (RegisterItem).
//
// # Global or prefixed
//
// With an empty prefix a Sync sees every key in the store, including keys
// written by prefixed instances, which arrive under their full key. With a
// prefix, a Sync reads and writes only prefix+item and receives only
// changes to keys carrying the prefix, delivered with the prefix removed.
// Every context that wants to share a namespace must use the same prefix.
//
// # Disabled mode
//
// When the environment lacks a store or a notifier, New returns a disabled
// Sync: Get returns nil, Set and Remove do nothing, and Register and
// RegisterItem return no-op unregister functions. The mode never changes.
//
// # Classification
//
// Flags are derived from the raw strings, never the decoded values, and
// exactly one is set per delivered event. A cleared store is reported as
// Cleared only, with Deleted false. A notification whose old and new
// values are identical carries no change and is not delivered.
package storage
