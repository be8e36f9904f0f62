package catalog

import (
	"context"
	"hash/fnv"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/vhvplatform/go-notification-engine/internal/shared/logger"
)

const (
	defaultDebounce = 250 * time.Millisecond
	restartBackoff  = time.Second
)

// Watcher reapplies the catalog file whenever it changes on disk
type Watcher struct {
	path      string
	engine    Engine
	scheduler Scheduler
	debounce  time.Duration
	log       *logger.Logger

	mu       sync.Mutex
	lastHash uint64
}

// NewWatcher creates a watcher for path
func NewWatcher(path string, engine Engine, scheduler Scheduler, log *logger.Logger) *Watcher {
	return &Watcher{
		path:      path,
		engine:    engine,
		scheduler: scheduler,
		debounce:  defaultDebounce,
		log:       log.With("path", path),
	}
}

// Load applies the file once. Content identical to the last applied
// version is skipped and reports changed=false.
func (w *Watcher) Load(ctx context.Context) (sum Summary, changed bool, err error) {
	data, err := os.ReadFile(w.path)
	if err != nil {
		return Summary{}, false, err
	}
	h := fnv.New64a()
	h.Write(data)
	sumHash := h.Sum64()

	w.mu.Lock()
	defer w.mu.Unlock()
	if sumHash == w.lastHash {
		return Summary{}, false, nil
	}

	c, err := Parse(data)
	if err != nil {
		return Summary{}, false, err
	}
	sum, err = c.Apply(ctx, w.engine, w.scheduler)
	w.lastHash = sumHash
	return sum, true, err
}

// Watch reloads the catalog on file changes until ctx is done. The parent
// directory is watched so editors that replace the file are handled.
func (w *Watcher) Watch(ctx context.Context) error {
	dir := filepath.Dir(w.path)
	file := filepath.Base(w.path)

	var (
		timerMu sync.Mutex
		timer   *time.Timer
	)
	schedule := func() {
		timerMu.Lock()
		defer timerMu.Unlock()
		if timer != nil {
			timer.Stop()
		}
		timer = time.AfterFunc(w.debounce, func() { w.reload(ctx) })
	}
	defer func() {
		timerMu.Lock()
		if timer != nil {
			timer.Stop()
		}
		timerMu.Unlock()
	}()

	for {
		if ctx.Err() != nil {
			return nil
		}

		fw, err := fsnotify.NewWatcher()
		if err != nil {
			return err
		}
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return err
		}
		w.log.Info("Watching catalog for changes")

		broken := false
		for !broken {
			select {
			case <-ctx.Done():
				fw.Close()
				return nil
			case ev, ok := <-fw.Events:
				if !ok {
					broken = true
					break
				}
				if filepath.Base(ev.Name) == file && ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
					schedule()
				}
			case err, ok := <-fw.Errors:
				if !ok {
					broken = true
					break
				}
				w.log.Warn("Catalog watch error", "error", err)
				// Events may have been dropped
				schedule()
			}
		}

		fw.Close()
		w.log.Warn("Catalog watcher stopped, restarting", "backoff", restartBackoff.String())
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(restartBackoff):
		}
	}
}

func (w *Watcher) reload(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	sum, changed, err := w.Load(ctx)
	if !changed && err == nil {
		w.log.Debug("Catalog unchanged, skipping reload")
		return
	}
	if err != nil {
		w.log.Error("Catalog reload failed", "error", err)
		if !changed {
			return
		}
	}
	w.log.Info("Catalog reloaded",
		"channels", sum.Channels,
		"templates", sum.Templates,
		"recipients", sum.Recipients,
		"rules", sum.Rules,
		"schedules", sum.Schedules,
	)
}
