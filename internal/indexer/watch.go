package indexer

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"pdfqa/internal/apperr"
	"pdfqa/internal/contextutil"
)

// DefaultDebounce is how long Watch waits after the last change before re-ingesting.
const DefaultDebounce = 2 * time.Second

// Watch re-runs Ingest(dir, resetFirst=true) after each burst of file changes under dir.
// Every run starts from scratch. It blocks until ctx is done.
func (p *Pipeline) Watch(ctx context.Context, dir string, debounce time.Duration) error {
	logger := contextutil.LoggerOr(ctx, p.logger).With("dir", dir)
	if debounce <= 0 {
		debounce = DefaultDebounce
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return apperr.Wrap(apperr.ErrLoad, err, "failed to create file watcher")
	}
	defer func() {
		_ = watcher.Close()
	}()

	if err := addTree(watcher, dir); err != nil {
		return apperr.Wrap(apperr.ErrLoad, err, "failed to watch "+dir)
	}
	logger.InfoContext(ctx, "watching directory", "debounce", debounce)

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			logger.InfoContext(ctx, "watcher stopped")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op == fsnotify.Chmod || hidden(filepath.Base(event.Name)) {
				continue
			}
			if event.Has(fsnotify.Create) {
				if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
					if err := addTree(watcher, event.Name); err != nil {
						logger.WarnContext(ctx, "failed to watch new directory", "path", event.Name, "error", err)
					}
				}
			}
			logger.DebugContext(ctx, "change detected", "path", event.Name, "op", event.Op.String())

			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.WarnContext(ctx, "watcher error", "error", err)

		case <-fire:
			fire = nil
			report, err := p.Ingest(ctx, dir, true)
			if p.runHook != nil {
				p.runHook(report, err)
			}
		}
	}
}

// addTree watches root and every non-hidden directory below it.
func addTree(w *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && hidden(d.Name()) {
			return filepath.SkipDir
		}
		return w.Add(path)
	})
}

func hidden(name string) bool {
	return strings.HasPrefix(name, ".") && name != "." && name != ".."
}
