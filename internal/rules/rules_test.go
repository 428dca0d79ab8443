package rules

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadJSON(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.json", `{
		"version": "2.1",
		"prohibited_concepts": ["manipulation"],
		"required_virtues": ["honesty"],
		"emotion_validation": {"warning_thresholds": {"anger": 0.7}}
	}`)

	rs := Load(path)

	assert.Equal(t, "2.1", rs.Version)
	assert.Equal(t, []string{"manipulation"}, rs.ProhibitedConcepts)
	assert.Equal(t, map[string]float64{"anger": 0.7}, rs.Thresholds())
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.yaml", `
version: "3"
prohibited_concepts: [fraud, theft]
required_virtues: [patience]
`)

	rs := Load(path)

	assert.Equal(t, "3", rs.Version)
	assert.Equal(t, []string{"fraud", "theft"}, rs.ProhibitedConcepts)
	assert.Nil(t, rs.Thresholds())
}

func TestLoadFallsBackToDefault(t *testing.T) {
	dir := t.TempDir()
	cases := map[string]string{
		"missing":   filepath.Join(dir, "absent.json"),
		"corrupt":   writeFile(t, dir, "corrupt.json", `{"version": `),
		"invalid":   writeFile(t, dir, "invalid.json", `{"prohibited_concepts": ["x"]}`),
		"threshold": writeFile(t, dir, "threshold.json", `{"version":"1","emotion_validation":{"warning_thresholds":{"anger":1.5}}}`),
		"format":    writeFile(t, dir, "rules.toml", `version = "1"`),
		"empty":     "",
	}
	for name, path := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, Default(), Load(path))
		})
	}
}

func TestReadFileRejectsEmptyProhibitedEntry(t *testing.T) {
	path := writeFile(t, t.TempDir(), "rules.json", `{"version":"1","prohibited_concepts":["ok",""]}`)
	_, err := ReadFile(path)
	require.Error(t, err)
}

func TestDefaultContents(t *testing.T) {
	rs := Default()
	assert.Equal(t, "1.0", rs.Version)
	assert.ElementsMatch(t, []string{"violence", "harm", "deception", "theft", "abuse"}, rs.ProhibitedConcepts)
	assert.ElementsMatch(t, []string{"temperance", "prudence", "justice", "fortitude"}, rs.RequiredVirtues)
	assert.InDelta(t, 0.9, rs.EthicalWeights["compassion"], 1e-9)
}

func TestHolderSwap(t *testing.T) {
	h := NewHolder(Default())
	next := Default()
	next.Version = "9"

	prev := h.Swap(next)

	assert.Equal(t, "1.0", prev.Version)
	assert.Equal(t, "9", h.Current().Version)
}

func TestWatcherReloadsOnWrite(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json", `{"version":"1","prohibited_concepts":["violence"]}`)
	h := NewHolder(Load(path))

	w, err := NewWatcher(path, h)
	require.NoError(t, err)
	reloaded := make(chan RuleSet, 4)
	w.OnReload(func(rs RuleSet) {
		select {
		case reloaded <- rs:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		w.Start(ctx)
		close(done)
	}()
	defer func() {
		cancel()
		<-done
		w.Close()
	}()

	require.NoError(t, os.WriteFile(path, []byte(`{"version":"2","prohibited_concepts":["fraud"]}`), 0o644))

	select {
	case rs := <-reloaded:
		assert.Equal(t, "2", rs.Version)
	case <-time.After(5 * time.Second):
		t.Fatal("rules were not reloaded")
	}
	assert.Equal(t, []string{"fraud"}, h.Current().ProhibitedConcepts)
}

func TestWatcherKeepsRulesOnCorruptReload(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "rules.json", `{"version":"1","prohibited_concepts":["violence"]}`)
	h := NewHolder(Load(path))
	w, err := NewWatcher(path, h)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, os.WriteFile(path, []byte(`not json`), 0o644))
	w.reload()

	reloads, failures := w.Stats()
	assert.Equal(t, 0, reloads)
	assert.Equal(t, 1, failures)
	assert.Equal(t, "1", h.Current().Version)
}
