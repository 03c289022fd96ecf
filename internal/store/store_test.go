package store

import (
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuditAppendTrimsOldest(t *testing.T) {
	st := newTempStore(t)
	oldMax := auditMaxEntries
	auditMaxEntries = 2
	defer func() { auditMaxEntries = oldMax }()

	for i := 1; i <= 3; i++ {
		require.NoError(t, st.AppendAudit(AuditEntry{Identifier: "ping", Sender: "alice", Outcome: fmt.Sprintf("ok%d", i)}))
	}

	entries, err := st.Audit(10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "ok3", entries[0].Outcome, "newest first")
	assert.Equal(t, "ok2", entries[1].Outcome)
	assert.False(t, entries[0].Time.IsZero())

	entries, err = st.Audit(1)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestAlreadyProcessedAndRecentMessage(t *testing.T) {
	st := newTempStore(t)

	seen, err := st.AlreadyProcessed("e1")
	require.NoError(t, err)
	assert.False(t, seen)
	seen, err = st.AlreadyProcessed("e1")
	require.NoError(t, err)
	assert.True(t, seen)

	require.NoError(t, st.MarkProcessed("e2"))
	seen, _ = st.AlreadyProcessed("e2")
	assert.True(t, seen)

	_, err = st.AlreadyProcessed("")
	assert.ErrorIs(t, err, ErrEmptyID)
	assert.ErrorIs(t, st.MarkProcessed(""), ErrEmptyID)

	seen, err = st.RecentMessageSeen("alice", "!ping", time.Minute)
	require.NoError(t, err)
	assert.False(t, seen)
	seen, _ = st.RecentMessageSeen("Alice ", " !ping", time.Minute)
	assert.True(t, seen, "sender case and surrounding space are ignored")
	seen, _ = st.RecentMessageSeen("bob", "!ping", time.Minute)
	assert.False(t, seen)
}

func TestPruneMessages(t *testing.T) {
	st := newTempStore(t)
	_, err := st.RecentMessageSeen("alice", "hi", time.Minute)
	require.NoError(t, err)

	n, err := st.PruneMessages(time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	n, err = st.PruneMessages(-time.Second)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	seen, _ := st.RecentMessageSeen("alice", "hi", time.Minute)
	assert.False(t, seen)
}

func TestCursorRoundTrip(t *testing.T) {
	st := newTempStore(t)
	ts, err := st.LastCursor("nostr:pk")
	require.NoError(t, err)
	assert.True(t, ts.IsZero())

	now := time.Now().Truncate(time.Millisecond)
	require.NoError(t, st.SaveCursor("nostr:pk", now))
	ts, err = st.LastCursor("nostr:pk")
	require.NoError(t, err)
	assert.True(t, now.Equal(ts))
}

func TestCloseNil(t *testing.T) {
	var st *Store
	assert.NoError(t, st.Close())
}

func newTempStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(t.TempDir() + "/state.db")
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}
