package embeddings

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce coalesces the write+rename event pair produced by the
// atomic file replace into a single reload. Variable so tests can
// shorten it.
var reloadDebounce = 500 * time.Millisecond

// Reloader watches the embedding file and reloads the FileStore when the
// enrollment tooling rewrites it.
type Reloader struct {
	store   *FileStore
	watcher *fsnotify.Watcher
	logger  *log.Logger
}

// NewReloader creates a file watcher over the store's backing file.
func NewReloader(store *FileStore, logger *log.Logger) (*Reloader, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create embeddings watcher: %w", err)
	}
	if err := watcher.Add(store.Path()); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %q: %w", store.Path(), err)
	}
	return &Reloader{store: store, watcher: watcher, logger: logger}, nil
}

// Run blocks until ctx is cancelled, reloading the store after each
// debounced change to the backing file.
func (r *Reloader) Run(ctx context.Context) error {
	defer r.watcher.Close()

	var debounce *time.Timer

	for {
		select {
		case <-ctx.Done():
			if debounce != nil {
				debounce.Stop()
			}
			return nil

		case event, ok := <-r.watcher.Events:
			if !ok {
				return nil
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) || event.Has(fsnotify.Rename) {
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(reloadDebounce, func() {
					if err := r.store.Reload(); err != nil {
						r.logger.Printf("embeddings reload failed: %v", err)
						return
					}
					r.logger.Printf("embeddings reloaded from %s", r.store.Path())
					// The rename replaced the inode; re-arm the watch.
					_ = r.watcher.Add(r.store.Path())
				})
			}

		case err, ok := <-r.watcher.Errors:
			if !ok {
				return nil
			}
			r.logger.Printf("embeddings watcher error: %v", err)
		}
	}
}
