package gazetteer

import (
	"context"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// Watch reloads the snapshot whenever the gazetteer document or alias file
// changes on disk. It blocks until ctx is done.
func (g *Gazetteer) Watch(ctx context.Context) error {
	if g.path == "" {
		<-ctx.Done()
		return nil
	}
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{filepath.Clean(g.path): true}
	dirs := map[string]bool{filepath.Dir(g.path): true}
	if g.aliasesPath != "" {
		watched[filepath.Clean(g.aliasesPath)] = true
		dirs[filepath.Dir(g.aliasesPath)] = true
	}
	// Watch directories: editors and SaveDocument replace files by rename.
	for dir := range dirs {
		if err := watcher.Add(dir); err != nil {
			return err
		}
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case evt, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !watched[filepath.Clean(evt.Name)] {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := g.Reload(); err != nil {
				g.logger.Warn("gazetteer reload failed; keeping previous snapshot", zap.Error(err))
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			g.logger.Warn("gazetteer watcher error", zap.Error(err))
		}
	}
}
