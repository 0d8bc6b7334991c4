package heuristics

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"

	"threadlens/internal/logging"
)

// Watch reloads pattern packs from dir whenever a yaml file there is
// written or created, until the context is cancelled. Long report runs
// pick up pack fixes without a restart; in-flight Stage A calls keep the
// set they started with.
func (r *Registry) Watch(ctx context.Context, dir string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := watcher.Add(dir); err != nil {
		watcher.Close()
		return err
	}

	go func() {
		defer watcher.Close()
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if !strings.HasSuffix(event.Name, ".yaml") {
					continue
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				if err := r.loadFile(event.Name); err != nil {
					logging.Get(logging.CategoryHeuristics).Error("reload %s: %v", event.Name, err)
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				logging.Get(logging.CategoryHeuristics).Error("pack watcher: %v", err)
			}
		}
	}()
	return nil
}
