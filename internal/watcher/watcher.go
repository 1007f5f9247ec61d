package watcher

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce is the quiet period after the last event before the
// action runs.
const DefaultDebounce = 300 * time.Millisecond

// Watcher runs an action when any of its files is written, created,
// renamed or removed.
type Watcher struct {
	files    map[string]struct{}
	dirs     []string
	onChange func() error
	debounce time.Duration

	fsw      *fsnotify.Watcher
	stopCh   chan struct{}
	stopOnce sync.Once
	stopErr  error
	wg       sync.WaitGroup
	mu       sync.Mutex
	runs     int
}

// New creates a Watcher for paths. onChange is called once on Start and
// again after every batch of changes.
func New(paths []string, onChange func() error) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no paths to watch")
	}
	if onChange == nil {
		return nil, errors.New("onChange cannot be nil")
	}

	w := &Watcher{
		files:    make(map[string]struct{}, len(paths)),
		onChange: onChange,
		debounce: DefaultDebounce,
		stopCh:   make(chan struct{}),
	}

	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %s: %w", p, err)
		}
		w.files[abs] = struct{}{}
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// SetDebounce overrides the quiet period. It must be called before Start.
func (w *Watcher) SetDebounce(d time.Duration) {
	w.debounce = d
}

// Runs returns how many times the action has run.
func (w *Watcher) Runs() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs
}

// Start runs the action once and begins watching.
func (w *Watcher) Start() error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
	}
	w.fsw = fsw

	w.run()

	w.wg.Add(1)
	go w.loop()
	return nil
}

func (w *Watcher) loop() {
	defer w.wg.Done()

	timer := time.NewTimer(w.debounce)
	timer.Stop()
	pending := false

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !w.relevant(ev) {
				continue
			}
			log.Debug().Str("file", ev.Name).Str("op", ev.Op.String()).Msg("change detected")
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(w.debounce)
			pending = true
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher error")
		case <-timer.C:
			pending = false
			w.run()
		case <-w.stopCh:
			timer.Stop()
			return
		}
	}
}

func (w *Watcher) relevant(ev fsnotify.Event) bool {
	if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) && !ev.Has(fsnotify.Remove) {
		return false
	}
	_, ok := w.files[filepath.Clean(ev.Name)]
	return ok
}

func (w *Watcher) run() {
	w.mu.Lock()
	w.runs++
	w.mu.Unlock()

	if err := w.onChange(); err != nil {
		log.Error().Err(err).Msg("watch action failed")
	}
}

// Stop halts the watcher and waits for an in-flight action to finish.
// Calls after the first are no-ops.
func (w *Watcher) Stop() error {
	w.stopOnce.Do(func() {
		close(w.stopCh)
		w.wg.Wait()
		if w.fsw != nil {
			w.stopErr = w.fsw.Close()
		}
	})
	return w.stopErr
}

// RunUntilSignal starts the watcher and blocks until SIGINT or SIGTERM.
func (w *Watcher) RunUntilSignal() error {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(sigCh)

	if err := w.Start(); err != nil {
		return fmt.Errorf("failed to start watcher: %w", err)
	}

	sig := <-sigCh
	log.Info().Str("signal", sig.String()).Msg("shutting down")

	if err := w.Stop(); err != nil {
		return fmt.Errorf("failed to stop watcher: %w", err)
	}
	return nil
}
