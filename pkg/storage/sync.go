package storage

import (
	"sort"
	"strings"

	"github.com/arthur-debert/kvsync/pkg/codec"
	"github.com/arthur-debert/kvsync/pkg/events"
	"github.com/arthur-debert/kvsync/pkg/host"
	"github.com/arthur-debert/kvsync/pkg/lifecycle"
	"github.com/arthur-debert/kvsync/pkg/logging"
)

var log = logging.GetLogger("storage")

// channelAll is the whole-storage channel of the events registry.
const channelAll = "storage"

// Option configures a Sync.
type Option func(*Sync)

// WithPrefix scopes the Sync to keys starting with prefix.
func WithPrefix(prefix string) Option {
	return func(s *Sync) {
		s.prefix = prefix
	}
}

// Sync is a prefix-scoped view of a host store that republishes the
// host's change notifications as Events.
type Sync struct {
	prefix  string
	enabled bool

	store    host.Store
	notifier host.Notifier
	listener *changeListener

	// events holds handlers for every change; itemEvents holds handlers
	// keyed by unprefixed item name.
	events     *events.Registry[Event]
	itemEvents *events.Registry[Event]

	guard *lifecycle.Guard
}

// changeListener is the one listener a Sync registers with its host.
type changeListener struct {
	sync *Sync
}

func (l *changeListener) HandleChange(c host.Change) {
	l.sync.handleChange(c)
}

// New creates a Sync over env. A Sync over an environment without both a
// store and a notifier is permanently disabled.
func New(env host.Environment, opts ...Option) *Sync {
	s := &Sync{
		events:     events.New[Event](),
		itemEvents: events.New[Event](),
		guard:      lifecycle.NewGuard("Sync"),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.enabled = env.Enabled()
	if !s.enabled {
		log.Debug().Str("prefix", s.prefix).Msg("Host lacks store or notifier, storage disabled")
		return s
	}

	s.store = env.Store
	s.notifier = env.Notifier
	s.listener = &changeListener{sync: s}
	s.notifier.AddListener(host.StorageChannel, s.listener)

	log.Debug().Str("prefix", s.prefix).Msg("Storage sync attached")
	return s
}

// Prefix returns the key prefix of this instance.
func (s *Sync) Prefix() string {
	if !s.guard.Alive("Prefix") {
		return ""
	}
	return s.prefix
}

// Enabled reports whether the host provided the required capabilities.
func (s *Sync) Enabled() bool {
	if !s.guard.Alive("Enabled") {
		return false
	}
	return s.enabled
}

// Get returns the decoded value of item, or nil when it is not stored.
func (s *Sync) Get(item string) any {
	if !s.guard.Alive("Get") || !s.enabled {
		return nil
	}
	raw, ok := s.store.GetItem(s.prefix + item)
	if !ok {
		return nil
	}
	return codec.DecodeString(raw).Value
}

// Set encodes value as JSON and stores it under item.
func (s *Sync) Set(item string, value any) error {
	if !s.guard.Alive("Set") || !s.enabled {
		return nil
	}
	encoded, err := codec.Encode(value)
	if err != nil {
		return err
	}
	return s.store.SetItem(s.prefix+item, encoded)
}

// Remove deletes item from the store.
func (s *Sync) Remove(item string) error {
	if !s.guard.Alive("Remove") || !s.enabled {
		return nil
	}
	return s.store.RemoveItem(s.prefix + item)
}

// GetPath returns the value at a gjson path inside the JSON document
// stored under item, or nil.
func (s *Sync) GetPath(item, path string) any {
	if !s.guard.Alive("GetPath") || !s.enabled {
		return nil
	}
	v, _ := s.lookupPath(item, path)
	return v
}

// LookupPath is GetPath that also reports whether item is stored and path
// exists in it, so a JSON null at path can be told apart from a miss.
func (s *Sync) LookupPath(item, path string) (any, bool) {
	if !s.guard.Alive("LookupPath") || !s.enabled {
		return nil, false
	}
	return s.lookupPath(item, path)
}

func (s *Sync) lookupPath(item, path string) (any, bool) {
	raw, ok := s.store.GetItem(s.prefix + item)
	if !ok {
		return nil, false
	}
	return codec.Path(raw, path)
}

// SetPath sets the value at an sjson path inside the JSON document stored
// under item, creating the document when needed.
func (s *Sync) SetPath(item, path string, value any) error {
	if !s.guard.Alive("SetPath") || !s.enabled {
		return nil
	}
	raw, _ := s.store.GetItem(s.prefix + item)
	updated, err := codec.SetPath(raw, path, value)
	if err != nil {
		return err
	}
	return s.store.SetItem(s.prefix+item, updated)
}

// Keys returns the sorted, unprefixed keys stored under this instance's
// prefix. It is empty when the host cannot list keys.
func (s *Sync) Keys() []string {
	if !s.guard.Alive("Keys") || !s.enabled {
		return nil
	}
	lister, ok := s.store.(host.Lister)
	if !ok {
		return nil
	}
	all, err := lister.Keys()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to list keys")
		return nil
	}

	keys := make([]string, 0, len(all))
	for _, k := range all {
		if strings.HasPrefix(k, s.prefix) {
			keys = append(keys, strings.TrimPrefix(k, s.prefix))
		}
	}
	sort.Strings(keys)
	return keys
}

// Register subscribes handler to every change visible to this instance,
// including a cleared store.
func (s *Sync) Register(handler Handler) events.Unregister {
	if !s.guard.Alive("Register") || !s.enabled {
		return events.Noop
	}
	return s.events.Register(channelAll, events.Handler[Event](handler))
}

// RegisterItem subscribes handler to changes of one item, named without
// the prefix.
func (s *Sync) RegisterItem(item string, handler Handler) events.Unregister {
	if !s.guard.Alive("RegisterItem") || !s.enabled {
		return events.Noop
	}
	return s.itemEvents.Register(item, events.Handler[Event](handler))
}

// Destroy detaches from the host and drops every handler. Stored data is
// left in place.
func (s *Sync) Destroy() {
	if !s.guard.Destroy() {
		return
	}
	if s.enabled {
		s.notifier.RemoveListener(host.StorageChannel, s.listener)
	}
	s.events.Destroy()
	s.itemEvents.Destroy()
}

func (s *Sync) handleChange(c host.Change) {
	if s.guard.Destroyed() {
		return
	}

	flags := Classify(c)
	if !flags.Any() {
		log.Trace().Str("key", rawKey(c)).Msg("Ignoring notification without a change")
		return
	}

	if flags.Cleared {
		s.events.Trigger(channelAll, Event{
			OldValue: rawValue(c.OldValue),
			NewValue: rawValue(c.NewValue),
			Cleared:  true,
		})
		return
	}

	key := *c.Key
	if s.prefix != "" && !strings.HasPrefix(key, s.prefix) {
		return
	}

	ev := Event{
		Key:      strings.TrimPrefix(key, s.prefix),
		OldValue: decoded(c.OldValue),
		NewValue: decoded(c.NewValue),
		Created:  flags.Created,
		Deleted:  flags.Deleted,
		Modified: flags.Modified,
	}
	s.events.Trigger(channelAll, ev)
	s.itemEvents.Trigger(ev.Key, ev)
}

func rawKey(c host.Change) string {
	if c.Key == nil {
		return ""
	}
	return *c.Key
}
