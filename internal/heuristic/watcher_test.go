package heuristic

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ckcelina/safe-space-app-gsbdvu-sub001/internal/logger"
)

const overrideTemplate = `
version: %d
rules:
  - name: pet
    category: Family
    key: pet_{kind}
    value: 'Has a {kind}'
    importance: 2
    confidence: 3
    patterns:
      - '(?i)\bhas a (?P<kind>dog|cat)\b'
`

type reloadEvent struct {
	version int
	err     error
}

// writeAtomic replaces path via rename so the watcher never reads a partial file.
func writeAtomic(t *testing.T, path, content string) {
	t.Helper()
	tmp := path + ".tmp"
	require.NoError(t, os.WriteFile(tmp, []byte(content), 0o600))
	require.NoError(t, os.Rename(tmp, path))
}

func waitForReload(t *testing.T, ch <-chan reloadEvent, match func(reloadEvent) bool) reloadEvent {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		select {
		case ev := <-ch:
			if match(ev) {
				return ev
			}
		case <-deadline:
			t.Fatal("timed out waiting for rule reload")
		}
	}
}

func TestRuleWatcher_LoadsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rules.yaml")
	writeAtomic(t, path, fmt.Sprintf(overrideTemplate, 4))

	e := NewDefaultExtractor()
	events := make(chan reloadEvent, 16)
	rw := NewRuleWatcher(path, e, logger.Nop())
	rw.OnReload(func(rules *CompiledRules, err error) {
		ev := reloadEvent{err: err}
		if rules != nil {
			ev.version = rules.Version()
		}
		events <- ev
	})
	require.NoError(t, rw.Start())
	defer rw.Stop()

	// Initial load is synchronous.
	assert.Equal(t, 4, e.Rules().Version())

	// Give fsnotify a moment to register
	time.Sleep(50 * time.Millisecond)

	writeAtomic(t, path, fmt.Sprintf(overrideTemplate, 5))
	waitForReload(t, events, func(ev reloadEvent) bool { return ev.version == 5 })
	assert.Equal(t, 5, e.Rules().Version())

	writeAtomic(t, path, "version: [")
	ev := waitForReload(t, events, func(ev reloadEvent) bool { return ev.err != nil })
	assert.Error(t, ev.err)
	assert.Equal(t, 5, e.Rules().Version(), "invalid file must not replace active rules")
}

func TestRuleWatcher_MissingFileKeepsEmbeddedRules(t *testing.T) {
	dir := t.TempDir()
	e := NewDefaultExtractor()

	rw := NewRuleWatcher(filepath.Join(dir, "absent.yaml"), e, nil)
	require.NoError(t, rw.Start())
	defer rw.Stop()

	assert.Equal(t, DefaultRules().Version(), e.Rules().Version())
}

func TestRuleWatcher_StopWithoutStart(t *testing.T) {
	rw := NewRuleWatcher("rules.yaml", NewDefaultExtractor(), nil)
	assert.NotPanics(t, rw.Stop)
}
