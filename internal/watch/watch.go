// Package watch turns filesystem changes into reconciliation triggers.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/nholik/craft-sentinel/internal/engine"
	"github.com/rs/zerolog"
)

const defaultDebounce = 2 * time.Second

// Rule maps changes in a directory onto a trigger. When File is set only
// that file counts; otherwise every non-hidden file in Dir does.
type Rule struct {
	Dir     string
	File    string
	Trigger engine.Trigger
}

func (r Rule) matches(path string) bool {
	if filepath.Clean(filepath.Dir(path)) != filepath.Clean(r.Dir) {
		return false
	}
	base := filepath.Base(path)
	if r.File != "" {
		return base == r.File
	}
	return !strings.HasPrefix(base, ".") && !strings.HasSuffix(base, ".etag")
}

// Watcher debounces filesystem events and fires triggers.
type Watcher struct {
	logger   zerolog.Logger
	rules    []Rule
	fire     func(engine.Trigger) bool
	debounce time.Duration

	mu      sync.Mutex
	pending map[engine.Trigger]*time.Timer
}

// New builds a Watcher. Files are watched through their directory so that
// editors and atomic renames are seen.
func New(logger zerolog.Logger, fire func(engine.Trigger) bool, debounce time.Duration, rules ...Rule) *Watcher {
	if debounce <= 0 {
		debounce = defaultDebounce
	}
	return &Watcher{
		logger:   logger,
		rules:    rules,
		fire:     fire,
		debounce: debounce,
		pending:  make(map[engine.Trigger]*time.Timer),
	}
}

// OptionsFile returns the rule for the options file.
func OptionsFile(path string) Rule {
	return Rule{Dir: filepath.Dir(path), File: filepath.Base(path), Trigger: engine.TriggerConfigChanged}
}

// ResourceDir returns the rule for the resource directory. It fires a plain
// pass; the runner turns it into an upgrade when the fingerprint moved.
func ResourceDir(dir string) Rule {
	return Rule{Dir: dir, Trigger: engine.TriggerUpdateStatus}
}

// Run watches until ctx is canceled.
func (w *Watcher) Run(ctx context.Context) error {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create file watcher: %w", err)
	}
	defer fsWatcher.Close()

	added := map[string]bool{}
	for _, rule := range w.rules {
		dir := filepath.Clean(rule.Dir)
		if added[dir] {
			continue
		}
		if err := fsWatcher.Add(dir); err != nil {
			return fmt.Errorf("failed to watch %s: %w", dir, err)
		}
		added[dir] = true
		w.logger.Debug().Str("path", dir).Msg("watching directory")
	}

	defer w.stopPending()
	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-fsWatcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)
		case err, ok := <-fsWatcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn().Err(err).Msg("file watcher error")
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) && !event.Has(fsnotify.Remove) {
		return
	}
	for _, rule := range w.rules {
		if rule.matches(event.Name) {
			w.logger.Debug().Str("path", event.Name).Str("op", event.Op.String()).Str("trigger", string(rule.Trigger)).Msg("file changed")
			w.schedule(rule.Trigger)
		}
	}
}

func (w *Watcher) schedule(trigger engine.Trigger) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[trigger]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[trigger] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, trigger)
		w.mu.Unlock()

		w.logger.Info().Str("trigger", string(trigger)).Msg("file change triggers pass")
		w.fire(trigger)
	})
}

func (w *Watcher) stopPending() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for trigger, timer := range w.pending {
		timer.Stop()
		delete(w.pending, trigger)
	}
}
