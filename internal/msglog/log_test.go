package msglog

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replichat/internal/chatmsg"
)

func openLog(t *testing.T) (*Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "node.json")
	l, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l, path
}

func TestOpenMissingFileIsEmpty(t *testing.T) {
	l, _ := openLog(t)
	byID, err := l.Replay()
	require.NoError(t, err)
	assert.Empty(t, byID)
}

func TestAppendAndReplay(t *testing.T) {
	l, _ := openLog(t)
	m1 := chatmsg.Message{ID: "m1", Sender: "a", Recipient: "b", Content: "hi", Timestamp: 1, Status: chatmsg.Unread}
	m2 := chatmsg.Message{ID: "m2", Sender: "a", Recipient: "b", Content: "yo", Timestamp: 2, Status: chatmsg.Unread}
	require.NoError(t, l.AppendUpsert(m1))
	require.NoError(t, l.AppendUpsert(m2))
	require.NoError(t, l.AppendRead([]string{"m1"}))
	require.NoError(t, l.AppendDelete([]string{"m2"}))

	byID, err := l.Replay()
	require.NoError(t, err)
	require.Contains(t, byID, "m1")
	assert.Equal(t, chatmsg.Read, byID["m1"].Status)
	assert.NotContains(t, byID, "m2")
}

func TestSnapshotTruncatesAndRewrites(t *testing.T) {
	l, path := openLog(t)
	m1 := chatmsg.Message{ID: "m1", Sender: "a", Recipient: "b", Content: "hi", Timestamp: 1}
	require.NoError(t, l.AppendUpsert(m1))
	require.NoError(t, l.AppendDelete([]string{"m1"}))

	require.NoError(t, l.Snapshot([]chatmsg.Message{m1}))

	l2, err := Open(path)
	require.NoError(t, err)
	defer l2.Close()
	byID, err := l2.Replay()
	require.NoError(t, err)
	require.Contains(t, byID, "m1")
}

func TestReplayRejectsMalformedLine(t *testing.T) {
	l, path := openLog(t)
	_, err := l.file.WriteString("not json\n")
	require.NoError(t, err)

	_, err = l.Replay()
	assert.Error(t, err)
	_ = path
}

func TestReplayRejectsUnknownOperation(t *testing.T) {
	l, _ := openLog(t)
	require.NoError(t, l.appendLine(opRecord{Operation: "explode", IDs: []string{"m1"}}))

	_, err := l.Replay()
	assert.Error(t, err)
}
