package pipeline

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/config"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/fusion"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/gate"
	"github.com/danielpatrickdp/triad-fusion/go-controller/internal/logging"
)

// #region helpers
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.Default()
	cfg.DataDir = t.TempDir()
	cfg.VectorDir = ""
	cfg.Maintenance.Enabled = false
	return cfg
}

func newApp(t *testing.T, cfg *config.Config) *App {
	t.Helper()
	app, err := New(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { app.Close() })
	return app
}

func process(t *testing.T, app *App, user, session, text string) Outcome {
	t.Helper()
	out, err := app.Process(context.Background(), Request{Text: text, UserID: user, SessionID: session})
	require.NoError(t, err)
	return out
}

// #endregion helpers

func TestProcessAcceptsVirtuousText(t *testing.T) {
	app := newApp(t, testConfig(t))

	out := process(t, app, "alice", "s1", "I practice wisdom and virtue")

	require.True(t, out.Fused.Success)
	assert.True(t, out.Fused.Compliance.Compliant)
	assert.Greater(t, out.Fused.Coherence, 0.0)
	assert.LessOrEqual(t, out.Fused.Coherence, 1.0)
	assert.NotEmpty(t, out.DecisionID)
	assert.Equal(t, "s1", out.SessionID)
	assert.Equal(t, "1.0", out.RulesVersion)
	assert.NotEmpty(t, out.Fused.Response)

	require.NotNil(t, out.Soul)
	assert.Equal(t, 1, out.Soul.InteractionCount)
	assert.InDelta(t, 1.0, out.Soul.Vector.Norm(), 1e-9)
	require.NotNil(t, out.SoulMetrics)
	assert.False(t, out.SoulMetrics.Degenerate)

	assert.Equal(t, VectorID("alice", "I practice wisdom and virtue"), out.Fused.Summary.VectorID)
	assert.Equal(t, 1, out.Fused.Summary.InteractionCount)
}

func TestProcessRejectsProhibitedText(t *testing.T) {
	app := newApp(t, testConfig(t))

	out := process(t, app, "bob", "s1", "I will use violence and deception to get what I want")

	assert.False(t, out.Fused.Success)
	assert.Equal(t, fusion.RejectReason, out.Fused.Reason)
	assert.Equal(t, 0.0, out.Fused.Coherence)
	assert.False(t, out.Fused.Compliance.Compliant)
	require.NotNil(t, out.Fused.Details)
	require.NotEmpty(t, out.Fused.Details.Violations)

	found := false
	for _, v := range out.Fused.Details.Violations {
		if v.Type == gate.ViolationProhibitedLemma || v.Type == gate.ViolationHarmPattern {
			found = true
		}
	}
	assert.True(t, found, "expected a prohibited lemma or harm pattern violation")

	assert.Nil(t, out.Soul, "rejected interactions leave the soul untouched")
	rec, err := app.Souls().Snapshot("bob")
	require.NoError(t, err)
	assert.Equal(t, 0, rec.InteractionCount)
	assert.Equal(t, 0.5, rec.Alignment)
}

func TestProcessSequentialInteractions(t *testing.T) {
	app := newApp(t, testConfig(t))

	texts := []string{
		"I practice wisdom and virtue",
		"Thank you for the guidance",
		"Knowledge grows with patience",
		"Help me learn about justice",
		"Compassion is a quiet strength",
	}
	for i := 0; i < 10; i++ {
		out := process(t, app, "carol", "s1", texts[i%len(texts)])
		require.True(t, out.Fused.Success, "interaction %d rejected: %+v", i, out.Fused.Details)
		require.NotNil(t, out.Soul)
		assert.Equal(t, i+1, out.Soul.InteractionCount)
		assert.GreaterOrEqual(t, out.Soul.Alignment, 0.0)
		assert.LessOrEqual(t, out.Soul.Alignment, 1.0)
		assert.Equal(t, i+1, out.Fused.Summary.InteractionCount)
	}

	rec, err := app.Souls().Snapshot("carol")
	require.NoError(t, err)
	assert.Equal(t, 10, rec.InteractionCount)

	hist, err := app.SoulHistory(context.Background(), "carol", 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, 10, hist[0].InteractionCount)
}

func TestProcessConcurrentSameUser(t *testing.T) {
	app := newApp(t, testConfig(t))

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := app.Process(context.Background(), Request{
				Text:   fmt.Sprintf("Wisdom note number %d", i),
				UserID: "dana",
			})
			assert.NoError(t, err)
		}(i)
	}
	wg.Wait()

	rec, err := app.Souls().Snapshot("dana")
	require.NoError(t, err)
	assert.Equal(t, 20, rec.InteractionCount)
}

func TestProcessInvalidRequest(t *testing.T) {
	app := newApp(t, testConfig(t))

	for _, req := range []Request{
		{Text: "", UserID: "u"},
		{Text: "   ", UserID: "u"},
		{Text: "hello", UserID: ""},
	} {
		_, err := app.Process(context.Background(), req)
		assert.True(t, errors.Is(err, ErrInvalidRequest), "request %+v: %v", req, err)
	}
}

func TestProcessGeneratesSessionID(t *testing.T) {
	app := newApp(t, testConfig(t))

	out := process(t, app, "erin", "", "Knowledge grows with patience")
	assert.NotEmpty(t, out.SessionID)

	hist, err := app.SessionHistory(context.Background(), out.SessionID, 10)
	require.NoError(t, err)
	require.Len(t, hist, 1)
	assert.Equal(t, "erin", hist[0].UserID)
}

func TestProcessCancelledContext(t *testing.T) {
	app := newApp(t, testConfig(t))
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := app.Process(ctx, Request{Text: "Knowledge grows", UserID: "frank"})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestProcessRecordsProvenance(t *testing.T) {
	app := newApp(t, testConfig(t))

	accepted := process(t, app, "gina", "s1", "I practice wisdom and virtue")
	rejected := process(t, app, "gina", "s1", "I will use violence and deception to get what I want")

	entries, err := app.RecentDecisions(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	byID := map[string]logging.DecisionEntry{}
	for _, e := range entries {
		byID[e.DecisionID] = e
	}
	assert.Equal(t, "accept", byID[accepted.DecisionID].Decision)
	assert.Equal(t, "reject", byID[rejected.DecisionID].Decision)
	assert.Equal(t, fusion.RejectReason, byID[rejected.DecisionID].Reason)

	recs := logging.Records(entries)
	require.Len(t, recs, 2)
	for _, r := range recs {
		if r.DecisionID == rejected.DecisionID {
			assert.False(t, r.Compliant)
			assert.NotEmpty(t, r.ViolationTypes)
			assert.Contains(t, r.Input.Text, "violence")
		}
	}
}

func TestProcessSimilarMemoriesStayWithUser(t *testing.T) {
	app := newApp(t, testConfig(t))

	first := process(t, app, "hana", "s1", "Knowledge grows with patience")
	process(t, app, "ivan", "s2", "Knowledge grows with patience and care")

	second := process(t, app, "hana", "s1", "Patience builds knowledge")
	assert.Equal(t, 1, second.Fused.Summary.SimilarCount)

	// the same text again replaces its vector and never matches itself
	again := process(t, app, "hana", "s1", "Knowledge grows with patience")
	assert.Equal(t, first.Fused.Summary.VectorID, again.Fused.Summary.VectorID)
	assert.Equal(t, 1, again.Fused.Summary.SimilarCount)
	assert.Equal(t, 3, app.Health(context.Background()).Vectors)
}

func TestRulesHotReload(t *testing.T) {
	cfg := testConfig(t)
	app := newApp(t, cfg)

	out := process(t, app, "jack", "s1", "I practice wisdom and virtue")
	require.True(t, out.Fused.Success)

	body := `version: "2.0"
prohibited_concepts: [wisdom]
required_virtues: [prudence]
`
	require.NoError(t, os.WriteFile(filepath.Join(cfg.DataDir, cfg.RulesPath), []byte(body), 0644))
	require.Eventually(t, func() bool {
		return app.Rules().Version == "2.0"
	}, 5*time.Second, 20*time.Millisecond)

	out = process(t, app, "jack", "s1", "I practice wisdom and virtue")
	assert.False(t, out.Fused.Success)
	assert.Equal(t, "2.0", out.RulesVersion)
}

func TestReopenRestoresState(t *testing.T) {
	cfg := testConfig(t)
	cfg.VectorDir = "vectors"

	app, err := New(cfg)
	require.NoError(t, err)
	process(t, app, "kim", "s1", "I practice wisdom and virtue")
	process(t, app, "kim", "s1", "Thank you for the guidance")
	before, err := app.Souls().Snapshot("kim")
	require.NoError(t, err)
	require.NoError(t, app.Close())
	require.NoError(t, app.Close(), "second close is a no-op")

	reopened := newApp(t, cfg)
	after, err := reopened.Souls().Snapshot("kim")
	require.NoError(t, err)
	assert.Equal(t, before.InteractionCount, after.InteractionCount)
	assert.InDelta(t, before.Alignment, after.Alignment, 1e-12)
	for i := range before.Vector {
		assert.InDelta(t, before.Vector[i], after.Vector[i], 1e-12)
	}

	h := reopened.Health(context.Background())
	assert.Equal(t, 2, h.Vectors)
	assert.Equal(t, 1, h.Souls)
}

func TestHealthAndSleep(t *testing.T) {
	app := newApp(t, testConfig(t))
	process(t, app, "lena", "s1", "Wisdom and Justice matter to Plato")

	h := app.Health(context.Background())
	assert.Equal(t, "healthy", h.Status)
	assert.Equal(t, "basic", h.Mode)
	assert.Equal(t, 1, h.Vectors)
	assert.Equal(t, 1, h.Souls)
	assert.Greater(t, h.Concepts, 0)
	assert.Equal(t, "1.0", h.RulesVersion)
	assert.False(t, h.Maintenance.Running)

	r := app.Sleep(context.Background())
	assert.True(t, r.Success)
	assert.Equal(t, 1, r.Validation.Vectors.Count)
	assert.Equal(t, 1, r.SoulRefinement.UsersProcessed)
	assert.Empty(t, r.SoulRefinement.FailedUsers)
	assert.Equal(t, 1, app.MaintenanceStatus().RunCount)
}

func TestUpdateWeights(t *testing.T) {
	app := newApp(t, testConfig(t))

	w := app.UpdateWeights(map[string]float64{"emotion": 1, "linguistic": 0, "logging": 0})
	var sum float64
	for _, v := range w {
		sum += v
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
	assert.Greater(t, w["emotion"], w["logging"])
	assert.Equal(t, w, app.Weights())
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Signals.Mode = "telepathic"
	_, err := New(cfg)
	assert.Error(t, err)
}

func TestVectorID(t *testing.T) {
	a := VectorID("u1", "same text")
	assert.Equal(t, a, VectorID("u1", "same text"))
	assert.NotEqual(t, a, VectorID("u2", "same text"))
	assert.True(t, strings.HasPrefix(a, "chroma_u1_"))
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "abc", snippet("abc", 5))
	assert.Equal(t, "héll", snippet("héllo", 4))
}

func TestProcessCapturesStatedPreference(t *testing.T) {
	app := newApp(t, testConfig(t))

	out := process(t, app, "mona", "s1", "I prefer short answers about wisdom.")
	require.True(t, out.Fused.Success)
	assert.Equal(t, "I prefer short answers about wisdom", out.Soul.Preferences["stated_preference"])
	assert.Equal(t, "I prefer short answers about wisdom",
		app.Souls().GetPreference("mona", "stated_preference", nil))
}
