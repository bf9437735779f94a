package filestore

import (
	"context"
	"encoding/hex"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/arthur-debert/synthfs/pkg/synthfs"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/arthur-debert/kvsync/pkg/errors"
	"github.com/arthur-debert/kvsync/pkg/host"
	"github.com/arthur-debert/kvsync/pkg/logging"
)

var log = logging.GetLogger("filestore")

const (
	itemSuffix  = ".item"
	clearedName = ".cleared"
	tempPrefix  = ".tmp-"
	dirPerm     = 0755
	filePerm    = 0644
)

// Option configures a Store.
type Option func(*Store)

// WithFs sets the filesystem the store works on. The default is the OS
// filesystem.
func WithFs(fs afero.Fs) Option {
	return func(s *Store) {
		s.fs = fs
	}
}

// Store is a directory of item files. It implements host.Store,
// host.Lister and host.Clearer.
type Store struct {
	fs  afero.Fs
	dir string

	// mu serializes writes and guards known and generation, so a Watcher
	// comparing the disk with known never sees a half-applied own write.
	mu         sync.Mutex
	known      map[string]string
	generation string
}

// Open creates dir if needed and loads the current items.
func Open(dir string, opts ...Option) (*Store, error) {
	s := &Store{
		fs:    afero.NewOsFs(),
		dir:   dir,
		known: make(map[string]string),
	}
	for _, opt := range opts {
		opt(s)
	}

	if exists, _ := afero.DirExists(s.fs, dir); !exists {
		if err := s.fs.MkdirAll(dir, dirPerm); err != nil {
			return nil, errors.Wrapf(err, errors.ErrStoreOpen, "cannot create store directory %s", dir)
		}
	}

	keys, err := s.Keys()
	if err != nil {
		return nil, err
	}
	for _, key := range keys {
		if v, ok := s.read(key); ok {
			s.known[key] = v
		}
	}
	s.generation = s.readGeneration()

	log.Debug().Str("dir", dir).Int("items", len(s.known)).Msg("Opened file store")
	return s, nil
}

// Dir returns the store directory.
func (s *Store) Dir() string {
	return s.dir
}

// GetItem reads the value of key from disk.
func (s *Store) GetItem(key string) (string, bool) {
	return s.read(key)
}

// SetItem writes value under key. Writing the stored value is a no-op.
func (s *Store) SetItem(key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if current, ok := s.read(key); ok && current == value {
		return nil
	}
	if err := s.writeAtomic(itemPath(s.dir, key), value); err != nil {
		return errors.Wrapf(err, errors.ErrStoreWrite, "cannot write item %q", key)
	}
	s.known[key] = value

	log.Trace().Str("key", key).Msg("Item written")
	return nil
}

// RemoveItem deletes key. Removing a missing key is not an error.
func (s *Store) RemoveItem(key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := s.fs.Remove(itemPath(s.dir, key))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, errors.ErrStoreRemove, "cannot remove item %q", key)
	}
	delete(s.known, key)

	log.Trace().Str("key", key).Msg("Item removed")
	return nil
}

// Keys lists the stored keys in sorted order.
func (s *Store) Keys() ([]string, error) {
	entries, err := afero.ReadDir(s.fs, s.dir)
	if err != nil {
		return nil, errors.Wrapf(err, errors.ErrStoreRead, "cannot list %s", s.dir)
	}

	keys := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if key, ok := keyFromName(entry.Name()); ok {
			keys = append(keys, key)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

// Clear removes every item. The generation marker is written first so
// watchers of other stores report one cleared change instead of a series
// of deletions.
func (s *Store) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := uuid.NewString()
	if err := s.writeAtomic(filepath.Join(s.dir, clearedName), gen); err != nil {
		return errors.Wrap(err, errors.ErrStoreWrite, "cannot write clear marker")
	}
	s.generation = gen

	keys, err := s.Keys()
	if err != nil {
		return err
	}
	if err := s.removeAll(keys); err != nil {
		return err
	}
	s.known = make(map[string]string)

	log.Debug().Str("dir", s.dir).Int("items", len(keys)).Msg("Store cleared")
	return nil
}

// reconcile compares the disk with the last known value of key and returns
// the change, if any, recording the disk value as known.
func (s *Store) reconcile(key string) (host.Change, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	old, hadOld := s.known[key]
	cur, hasCur := s.read(key)
	if hadOld == hasCur && old == cur {
		return host.Change{}, false
	}

	change := host.Change{Key: host.String(key)}
	if hadOld {
		change.OldValue = host.String(old)
	}
	if hasCur {
		change.NewValue = host.String(cur)
		s.known[key] = cur
	} else {
		delete(s.known, key)
	}
	return change, true
}

// reconcileCleared reports whether the generation marker changed since this
// store last wrote or saw it. A new generation forgets every known value.
func (s *Store) reconcileCleared() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	gen := s.readGeneration()
	if gen == "" || gen == s.generation {
		return false
	}
	s.generation = gen
	s.known = make(map[string]string)
	return true
}

func (s *Store) read(key string) (string, bool) {
	data, err := afero.ReadFile(s.fs, itemPath(s.dir, key))
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("key", key).Msg("Failed to read item")
		}
		return "", false
	}
	return string(data), true
}

func (s *Store) readGeneration() string {
	data, err := afero.ReadFile(s.fs, filepath.Join(s.dir, clearedName))
	if err != nil {
		return ""
	}
	return string(data)
}

// removeAll deletes the item files of keys as one synthfs batch. Delete
// operations tolerate failures, so the directory is listed again afterwards
// and any survivor is an error.
func (s *Store) removeAll(keys []string) error {
	if len(keys) == 0 {
		return nil
	}

	sfs := synthfs.New()
	ops := make([]synthfs.Operation, 0, len(keys))
	for _, key := range keys {
		ops = append(ops, sfs.Delete(filepath.Base(itemPath(s.dir, key))))
	}
	if _, err := synthfs.Run(context.Background(), newRootedFs(s.fs, s.dir), ops...); err != nil {
		return errors.Wrap(err, errors.ErrStoreRemove, "cannot remove items")
	}

	left, err := s.Keys()
	if err != nil {
		return err
	}
	if len(left) > 0 {
		return errors.Newf(errors.ErrStoreRemove, "cannot remove item %q", left[0])
	}
	return nil
}

func (s *Store) writeAtomic(path, value string) error {
	tmp := filepath.Join(s.dir, tempPrefix+uuid.NewString())
	if err := afero.WriteFile(s.fs, tmp, []byte(value), filePerm); err != nil {
		return err
	}
	if err := s.fs.Rename(tmp, path); err != nil {
		_ = s.fs.Remove(tmp)
		return err
	}
	return nil
}

func itemPath(dir, key string) string {
	return filepath.Join(dir, hex.EncodeToString([]byte(key))+itemSuffix)
}

// keyFromName decodes an item file name. Other files yield false.
func keyFromName(name string) (string, bool) {
	if !strings.HasSuffix(name, itemSuffix) || strings.HasPrefix(name, tempPrefix) {
		return "", false
	}
	raw, err := hex.DecodeString(strings.TrimSuffix(name, itemSuffix))
	if err != nil {
		return "", false
	}
	return string(raw), true
}

// Environment bundles a store and its watcher. A nil watcher yields an
// environment without a notifier.
func Environment(store *Store, watcher *Watcher) host.Environment {
	env := host.Environment{}
	if store != nil {
		env.Store = store
	}
	if watcher != nil {
		env.Notifier = watcher
	}
	return env
}
