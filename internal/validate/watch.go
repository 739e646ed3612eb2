package validate

import (
	"context"
	"fmt"
	"log"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const watchDebounce = 500 * time.Millisecond

// Watch re-runs onChange whenever one of the reference images is
// rewritten. Editors produce bursts of write events, so changes are
// debounced before triggering. Blocks until ctx is cancelled.
func Watch(ctx context.Context, paths []string, onChange func(changed string)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("start watcher: %w", err)
	}
	defer w.Close()

	// Watch parent directories: editors replace files by rename, which
	// drops a watch registered on the file itself.
	watched := map[string]bool{}
	dirs := map[string]bool{}
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return fmt.Errorf("watch %s: %w", p, err)
		}
		watched[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := w.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
	}
	log.Printf("[watch] watching %d reference image(s)", len(watched))

	var (
		timer   *time.Timer
		timerC  <-chan time.Time
		pending string
	)
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			abs, err := filepath.Abs(ev.Name)
			if err != nil || !watched[abs] {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			pending = abs
			if timer == nil {
				timer = time.NewTimer(watchDebounce)
				timerC = timer.C
			} else {
				timer.Reset(watchDebounce)
			}
		case <-timerC:
			timerC = nil
			timer = nil
			log.Printf("[watch] %s changed, re-validating", filepath.Base(pending))
			onChange(pending)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			log.Printf("[watch] watcher error: %v", err)
		}
	}
}
