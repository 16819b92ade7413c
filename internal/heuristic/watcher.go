package heuristic

import (
	"os"
	"path/filepath"

	"github.com/fsnotify/fsnotify"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
)

// RuleWatcher reloads an operator-supplied rule table whenever the file
// changes. An invalid file is logged and the current rules stay active.
type RuleWatcher struct {
	path      string
	extractor *Extractor
	log       *logger.Logger
	watcher   *fsnotify.Watcher
	done      chan struct{}
	onReload  func(*CompiledRules, error)
}

// NewRuleWatcher creates a watcher for the rule file at path.
func NewRuleWatcher(path string, extractor *Extractor, log *logger.Logger) *RuleWatcher {
	return &RuleWatcher{
		path:      filepath.Clean(path),
		extractor: extractor,
		log:       logger.OrNop(log).With("component", "rule_watcher"),
		done:      make(chan struct{}),
	}
}

// OnReload registers a callback invoked after every reload attempt.
// Must be called before Start.
func (rw *RuleWatcher) OnReload(fn func(*CompiledRules, error)) {
	rw.onReload = fn
}

// Start loads the file once, then watches its directory for changes.
// Editors often replace files by rename, so the directory is watched
// rather than the file itself. Call Stop to clean up.
func (rw *RuleWatcher) Start() error {
	if err := rw.reload(); err != nil && !os.IsNotExist(err) {
		rw.log.Warn("initial rule load failed, keeping embedded rules", "path", rw.path, "error", err)
	}

	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(rw.path)); err != nil {
		_ = w.Close()
		return err
	}
	rw.watcher = w

	go rw.loop()
	rw.log.Info("watching rule file", "path", rw.path)
	return nil
}

// Stop shuts down the watcher and waits for the loop to exit.
func (rw *RuleWatcher) Stop() {
	if rw.watcher == nil {
		return
	}
	_ = rw.watcher.Close()
	<-rw.done
}

func (rw *RuleWatcher) loop() {
	defer close(rw.done)
	for {
		select {
		case evt, ok := <-rw.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(evt.Name) != rw.path {
				continue
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if err := rw.reload(); err != nil {
				rw.log.Warn("rule reload failed, keeping previous rules", "path", rw.path, "error", err)
			}
		case err, ok := <-rw.watcher.Errors:
			if !ok {
				return
			}
			rw.log.Warn("watcher error", "error", err)
		}
	}
}

func (rw *RuleWatcher) reload() error {
	data, err := os.ReadFile(rw.path)
	if err != nil {
		if !os.IsNotExist(err) && rw.onReload != nil {
			rw.onReload(nil, err)
		}
		return err
	}
	rules, err := LoadRules(data)
	if err == nil {
		rw.extractor.SetRules(rules)
		rw.log.Info("rules reloaded", "version", rules.Version(), "rules", rules.Len())
	}
	if rw.onReload != nil {
		rw.onReload(rules, err)
	}
	return err
}
