package workspace

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dhamidi/gce/complete"
	"github.com/fsnotify/fsnotify"
	"github.com/pkg/errors"
)

const defaultSettle = 200 * time.Millisecond

// BuildFunc builds a fresh engine, typically by reloading the project
// configuration and catalog.
type BuildFunc func() (*complete.Engine, error)

// Watcher rebuilds the engine when a watched file changes and swaps it
// into a Handle. Bursts of events within Settle trigger a single rebuild.
// A failed rebuild keeps the current engine.
type Watcher struct {
	handle *Handle
	build  BuildFunc
	fs     *fsnotify.Watcher

	// files are watched through their directory; dirs match any entry.
	files map[string]bool
	dirs  map[string]bool

	Settle   time.Duration
	OnReload func(*complete.Engine)
}

// NewWatcher watches paths. A path that is a directory covers its direct
// entries; any other path is watched through its parent directory, so a
// file that does not exist yet is picked up when it is created.
func NewWatcher(handle *Handle, build BuildFunc, paths ...string) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "create watcher")
	}
	w := &Watcher{
		handle: handle,
		build:  build,
		fs:     fsw,
		files:  make(map[string]bool),
		dirs:   make(map[string]bool),
		Settle: defaultSettle,
	}
	for _, path := range paths {
		if err := w.add(filepath.Clean(path)); err != nil {
			fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) add(path string) error {
	dir := path
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		w.dirs[path] = true
	} else {
		w.files[path] = true
		dir = filepath.Dir(path)
	}
	if err := w.fs.Add(dir); err != nil {
		return errors.Wrapf(err, "watch %s", dir)
	}
	log.Debugf("watching %s", path)
	return nil
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if ev.Op == fsnotify.Chmod {
		return false
	}
	name := filepath.Clean(ev.Name)
	if w.files[name] || w.dirs[name] || w.dirs[filepath.Dir(name)] {
		return !strings.HasPrefix(filepath.Base(name), ".")
	}
	return false
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if !w.relevant(ev) {
				continue
			}
			log.Debugf("change: %s", ev)
			if timer == nil {
				timer = time.NewTimer(w.Settle)
			} else {
				timer.Reset(w.Settle)
			}
			fire = timer.C
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			log.Errorf("watcher: %s", err)
		case <-fire:
			fire = nil
			_ = w.Reload()
		}
	}
}

// Reload rebuilds the engine now.
func (w *Watcher) Reload() error {
	e, err := w.build()
	if err != nil {
		log.Errorf("reload failed, keeping current catalog: %s", err)
		return err
	}
	w.handle.Swap(e)
	log.Infof("catalog reloaded")
	if w.OnReload != nil {
		w.OnReload(e)
	}
	return nil
}
