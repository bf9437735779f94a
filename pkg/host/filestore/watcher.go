package filestore

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/afero"

	"github.com/arthur-debert/kvsync/pkg/errors"
	"github.com/arthur-debert/kvsync/pkg/host"
)

// Watcher delivers changes made to a store directory by other writers. It
// implements host.Notifier. Listeners run on the watcher goroutine.
type Watcher struct {
	store *Store
	fsw   *fsnotify.Watcher

	mu        sync.Mutex
	listeners map[string][]host.Listener
	closed    bool

	closeCh  chan struct{}
	closedWg sync.WaitGroup
}

// NewWatcher starts watching the directory of store. The store must be on
// the OS filesystem.
func NewWatcher(store *Store) (*Watcher, error) {
	if _, ok := store.fs.(*afero.OsFs); !ok {
		return nil, errors.Newf(errors.ErrWatch, "cannot watch %s: not on the OS filesystem", store.dir)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrWatch, "cannot create filesystem watcher")
	}
	if err := fsw.Add(store.dir); err != nil {
		_ = fsw.Close()
		return nil, errors.Wrapf(err, errors.ErrWatch, "cannot watch %s", store.dir)
	}

	w := &Watcher{
		store:     store,
		fsw:       fsw,
		listeners: make(map[string][]host.Listener),
		closeCh:   make(chan struct{}),
	}

	w.closedWg.Add(1)
	go w.processLoop()

	log.Debug().Str("dir", store.dir).Msg("Watching store")
	return w, nil
}

// AddListener registers l on channel. A listener already registered on the
// channel is not added twice.
func (w *Watcher) AddListener(channel string, l host.Listener) {
	if l == nil {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	for _, existing := range w.listeners[channel] {
		if existing == l {
			return
		}
	}
	w.listeners[channel] = append(w.listeners[channel], l)
}

// RemoveListener unregisters l from channel.
func (w *Watcher) RemoveListener(channel string, l host.Listener) {
	w.mu.Lock()
	defer w.mu.Unlock()

	ls := w.listeners[channel]
	for i, existing := range ls {
		if existing == l {
			w.listeners[channel] = append(ls[:i], ls[i+1:]...)
			break
		}
	}
	if len(w.listeners[channel]) == 0 {
		delete(w.listeners, channel)
	}
}

// Close stops the watcher. Pending notifications are dropped.
func (w *Watcher) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	close(w.closeCh)
	w.mu.Unlock()

	w.closedWg.Wait()
	return w.fsw.Close()
}

func (w *Watcher) processLoop() {
	defer w.closedWg.Done()

	for {
		select {
		case <-w.closeCh:
			return

		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			w.handleFSEvent(ev)

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Str("dir", w.store.dir).Msg("Filesystem watcher error")
		}
	}
}

func (w *Watcher) handleFSEvent(ev fsnotify.Event) {
	if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
		!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
		return
	}

	name := filepath.Base(ev.Name)
	if name == clearedName {
		if w.store.reconcileCleared() {
			log.Debug().Str("dir", w.store.dir).Msg("Store cleared elsewhere")
			w.deliver(host.Change{})
		}
		return
	}

	key, ok := keyFromName(name)
	if !ok {
		return
	}
	if change, changed := w.store.reconcile(key); changed {
		log.Trace().Str("key", key).Str("op", ev.Op.String()).Msg("Item changed elsewhere")
		w.deliver(change)
	}
}

func (w *Watcher) deliver(change host.Change) {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	ls := make([]host.Listener, len(w.listeners[host.StorageChannel]))
	copy(ls, w.listeners[host.StorageChannel])
	w.mu.Unlock()

	for _, l := range ls {
		l.HandleChange(change)
	}
}
