package rules

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/metrics"
)

// Watcher reloads a rules file on change and publishes it to a Holder.
// A reload that fails validation keeps the rules already in force.
type Watcher struct {
	path    string
	holder  *Holder
	watcher *fsnotify.Watcher

	mu       sync.Mutex
	reloads  int
	failures int
	onReload func(RuleSet)
}

// NewWatcher watches the directory containing path so editors that replace
// the file by rename are still observed.
func NewWatcher(path string, holder *Holder) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create rules watcher: %w", err)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		fw.Close()
		return nil, fmt.Errorf("resolve rules path: %w", err)
	}
	if err := fw.Add(filepath.Dir(abs)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch rules dir: %w", err)
	}
	return &Watcher{path: abs, holder: holder, watcher: fw}, nil
}

// OnReload registers a callback invoked after each successful swap.
func (w *Watcher) OnReload(fn func(RuleSet)) {
	w.mu.Lock()
	w.onReload = fn
	w.mu.Unlock()
}

// Start runs the event loop until ctx is done or the watcher is closed.
func (w *Watcher) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != w.path {
				continue
			}
			if event.Has(fsnotify.Write) || event.Has(fsnotify.Create) {
				w.reload()
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Error().Err(err).Str("component", "rules").Msg("watcher error")
		}
	}
}

// Close stops the underlying watcher; Start returns once its channels close.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}

// Stats returns the number of successful and failed reloads.
func (w *Watcher) Stats() (reloads, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.reloads, w.failures
}

func (w *Watcher) reload() {
	rs, err := ReadFile(w.path)
	w.mu.Lock()
	defer w.mu.Unlock()
	if err != nil {
		w.failures++
		metrics.RuleReloads.WithLabelValues("rejected").Inc()
		log.Warn().Err(err).Str("component", "rules").Str("path", w.path).
			Msg("reload rejected, keeping current rules")
		return
	}
	prev := w.holder.Swap(rs)
	w.reloads++
	metrics.RuleReloads.WithLabelValues("applied").Inc()
	log.Info().Str("component", "rules").Str("from", prev.Version).Str("to", rs.Version).
		Msg("rules reloaded")
	if w.onReload != nil {
		w.onReload(rs)
	}
}
