package permission

import (
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/promptline-ai/promptline/internal/event"
	"github.com/promptline-ai/promptline/internal/logging"
)

// WatchStore reloads the store whenever the backing file changes on disk,
// making hand edits authoritative for subsequent decisions in a running
// session. The returned function stops the watcher.
func WatchStore(store *Store) (func(), error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files by rename, which drops a
	// watch on the file itself.
	if err := watcher.Add(filepath.Dir(store.Path())); err != nil {
		watcher.Close()
		return nil, err
	}

	target := filepath.Base(store.Path())
	done := make(chan struct{})

	go func() {
		for {
			select {
			case <-done:
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Base(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if err := store.Reload(); err != nil {
					logging.Warn().Err(err).Msg("permission store changed on disk but failed to reload")
					continue
				}
				logging.Info().Int("records", store.Len()).Msg("permission store reloaded from disk")
				event.Publish(event.Event{
					Type: event.StoreReloaded,
					Data: event.StoreReloadedData{Records: store.Len()},
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Warn().Err(err).Msg("permission store watcher error")
			}
		}
	}()

	return func() {
		close(done)
		watcher.Close()
	}, nil
}
