package storage

import (
	"encoding/json"

	"github.com/arthur-debert/kvsync/pkg/codec"
	"github.com/arthur-debert/kvsync/pkg/host"
)

// Event describes one change to the store as seen by a Sync.
type Event struct {
	// Key is the item key with the instance prefix removed. It is empty
	// when Cleared is set.
	Key string `json:"key" yaml:"key"`

	OldValue any `json:"oldValue" yaml:"oldValue"`
	NewValue any `json:"newValue" yaml:"newValue"`

	Cleared  bool `json:"cleared" yaml:"cleared"`
	Created  bool `json:"created" yaml:"created"`
	Deleted  bool `json:"deleted" yaml:"deleted"`
	Modified bool `json:"modified" yaml:"modified"`
}

// eventDoc is the serialized form of an Event. Key is null when the store
// was cleared.
type eventDoc struct {
	Key      *string `json:"key" yaml:"key"`
	OldValue any     `json:"oldValue" yaml:"oldValue"`
	NewValue any     `json:"newValue" yaml:"newValue"`
	Cleared  bool    `json:"cleared" yaml:"cleared"`
	Created  bool    `json:"created" yaml:"created"`
	Deleted  bool    `json:"deleted" yaml:"deleted"`
	Modified bool    `json:"modified" yaml:"modified"`
}

func (e Event) doc() eventDoc {
	d := eventDoc{
		OldValue: e.OldValue,
		NewValue: e.NewValue,
		Cleared:  e.Cleared,
		Created:  e.Created,
		Deleted:  e.Deleted,
		Modified: e.Modified,
	}
	if !e.Cleared {
		key := e.Key
		d.Key = &key
	}
	return d
}

// MarshalJSON writes a null key for a cleared event.
func (e Event) MarshalJSON() ([]byte, error) {
	return json.Marshal(e.doc())
}

// MarshalYAML writes a null key for a cleared event.
func (e Event) MarshalYAML() (interface{}, error) {
	return e.doc(), nil
}

// Kind names the classification of the event.
func (e Event) Kind() string {
	switch {
	case e.Cleared:
		return "cleared"
	case e.Created:
		return "created"
	case e.Deleted:
		return "deleted"
	case e.Modified:
		return "modified"
	default:
		return "none"
	}
}

// Handler receives storage events.
type Handler func(Event)

// Classification holds the flags derived from a raw change.
type Classification struct {
	Cleared  bool
	Created  bool
	Deleted  bool
	Modified bool
}

// Any reports whether some flag is set.
func (c Classification) Any() bool {
	return c.Cleared || c.Created || c.Deleted || c.Modified
}

// Classify derives the flags for a raw change by comparing raw strings.
// Precedence is cleared, created, deleted, modified.
func Classify(c host.Change) Classification {
	var out Classification
	switch {
	case c.Key == nil:
		out.Cleared = true
	case c.OldValue == nil && c.NewValue != nil:
		out.Created = true
	case c.OldValue != nil && c.NewValue == nil:
		out.Deleted = true
	case c.OldValue != nil && c.NewValue != nil && *c.OldValue != *c.NewValue:
		out.Modified = true
	}
	return out
}

// rawValue passes a raw value through without decoding.
func rawValue(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func decoded(p *string) any {
	return codec.Decode(p).Value
}
