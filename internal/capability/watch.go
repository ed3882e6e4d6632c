package capability

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/CloudNativeWorks/elchi-decompiler/pkg/helper"
	"github.com/CloudNativeWorks/elchi-decompiler/pkg/logger"
)

// Watch logs tool files appearing in or leaving dir until ctx is done. It
// keeps no state; availability is still computed per query. ready, when not
// nil, is closed once the watch is established.
func Watch(ctx context.Context, dir string, ready chan<- struct{}) error {
	log := logger.NewLogger("capability.watch")

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("failed to watch %s: %w", dir, err)
	}
	log.WithFields(logger.Fields{"dir": dir}).Info("Watching tools directory")
	if ready != nil {
		close(ready)
	}

	defer helper.RecoverPanic(log, "tools-watcher")
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			fields := logger.Fields{"file": filepath.Base(event.Name), "op": event.Op.String()}
			switch {
			case event.Has(fsnotify.Create):
				log.WithFields(fields).Info("Tool file added")
			case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
				log.WithFields(fields).Info("Tool file removed")
			case event.Has(fsnotify.Chmod):
				log.WithFields(fields).Debug("Tool file permissions changed")
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			log.WithError(err).Warn("Tools watcher error")
		}
	}
}
