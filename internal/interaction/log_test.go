package interaction

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

func tempLog(t *testing.T) *Log {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	l, err := NewLog(db)
	require.NoError(t, err)
	return l
}

func TestAppendAndCount(t *testing.T) {
	l := tempLog(t)
	ctx := context.Background()

	e, err := l.Append(ctx, Entry{UserID: "u", SessionID: "s1", Text: "héllo"})
	require.NoError(t, err)
	assert.NotZero(t, e.ID)
	assert.Equal(t, 5, e.TextLength)
	assert.False(t, e.CreatedAt.IsZero())

	_, err = l.Append(ctx, Entry{UserID: "u", SessionID: "s1", Text: "again"})
	require.NoError(t, err)
	_, err = l.Append(ctx, Entry{UserID: "u", SessionID: "s2", Text: "other"})
	require.NoError(t, err)

	n, err := l.CountSession(ctx, "s1")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	n, err = l.CountSession(ctx, "missing")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestHistoryReturnsLastNOldestFirst(t *testing.T) {
	l := tempLog(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		_, err := l.Append(ctx, Entry{UserID: "u1", SessionID: "s", Text: fmt.Sprintf("msg %d", i)})
		require.NoError(t, err)
	}
	_, err := l.Append(ctx, Entry{UserID: "u2", SessionID: "s", Text: "someone else"})
	require.NoError(t, err)

	hist, err := l.UserHistory(ctx, "u1", 3)
	require.NoError(t, err)
	require.Len(t, hist, 3)
	assert.Equal(t, "msg 2", hist[0].Text)
	assert.Equal(t, "msg 4", hist[2].Text)

	sess, err := l.SessionHistory(ctx, "s", 0)
	require.NoError(t, err)
	assert.Len(t, sess, 6)
	assert.Equal(t, "someone else", sess[5].Text)
}

func TestEachVisitsInOrderAndStops(t *testing.T) {
	l := tempLog(t)
	ctx := context.Background()
	for _, txt := range []string{"one", "two", "three"} {
		_, err := l.Append(ctx, Entry{UserID: "u", SessionID: "s", Text: txt})
		require.NoError(t, err)
	}

	var seen []string
	require.NoError(t, l.Each(ctx, func(e Entry) error {
		seen = append(seen, e.Text)
		return nil
	}))
	assert.Equal(t, []string{"one", "two", "three"}, seen)

	stop := errors.New("stop")
	seen = nil
	err := l.Each(ctx, func(e Entry) error {
		seen = append(seen, e.Text)
		if len(seen) == 2 {
			return stop
		}
		return nil
	})
	assert.ErrorIs(t, err, stop)
	assert.Len(t, seen, 2)
}

func TestRespond(t *testing.T) {
	long := strings.Repeat("a", 80)
	tests := []struct {
		text string
		want string
	}{
		{"Can you help me?", "I'm here to help you. Processing: Can you help me?..."},
		{"I want to LEARN", "Seeking wisdom is virtuous. Reflecting on: I want to LEARN..."},
		{"thank you so much", "Gratitude is a noble virtue. I'm glad to assist you."},
		{"the sky is blue", "Acknowledged. Processing your input: the sky is blue..."},
		{long, "Acknowledged. Processing your input: " + strings.Repeat("a", 50) + "..."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Respond(tt.text), tt.text)
	}
}

func TestDetectPreference(t *testing.T) {
	tests := []struct {
		text string
		want string
		ok   bool
	}{
		{"I prefer short answers.", "I prefer short answers", true},
		{"Please always cite the source!", "Please always cite the source", true},
		{"  keep it simple  ", "keep it simple", true},
		{"I practice wisdom and virtue", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := DetectPreference(tt.text)
		assert.Equal(t, tt.ok, ok, tt.text)
		assert.Equal(t, tt.want, got, tt.text)
	}
}
