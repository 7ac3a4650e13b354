package chatclient

import (
	"net"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"replichat/internal/accounts"
	"replichat/internal/peers"
	"replichat/internal/session"
	"replichat/internal/store"
	"replichat/internal/syncclient"
)

func startTestNode(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "node.json"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	acct, err := accounts.Open(filepath.Join(dir, "user_accounts.json"))
	require.NoError(t, err)

	sc := syncclient.New(peers.New(nil), time.Second, zerolog.Nop())
	deps := &session.Deps{
		Store:      st,
		Accounts:   acct,
		SyncClient: sc,
		Presence:   session.NewPresence(),
		Log:        zerolog.Nop(),
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { ln.Close() })

	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			go session.New(conn, deps).Run()
		}
	}()

	return ln.Addr().String()
}

func TestLoginSendListEndToEnd(t *testing.T) {
	addr := startTestNode(t)

	alice, err := Dial(addr)
	require.NoError(t, err)
	defer alice.Close()
	_, err = alice.Login("alice", "pw")
	require.NoError(t, err)

	require.NoError(t, alice.Send("bob", "hello"))
	require.NoError(t, alice.Ping("alice"))

	msgs, err := alice.ListMessages("bob")
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "hello", msgs[0].Content)
}

func TestLoginWrongPassword(t *testing.T) {
	addr := startTestNode(t)

	first, err := Dial(addr)
	require.NoError(t, err)
	_, err = first.Login("alice", "correct")
	require.NoError(t, err)
	first.Close()

	second, err := Dial(addr)
	require.NoError(t, err)
	defer second.Close()
	_, err = second.Login("alice", "wrong")
	assert.ErrorIs(t, err, ErrLoginFailed)
}

func TestListUsersUnreadCounts(t *testing.T) {
	addr := startTestNode(t)

	alice, err := Dial(addr)
	require.NoError(t, err)
	defer alice.Close()
	_, err = alice.Login("alice", "pw")
	require.NoError(t, err)

	require.NoError(t, alice.Send("bob", "hi"))
	require.NoError(t, alice.Send("bob", "hi again"))

	// A message to a recipient with a live session is stored as read, so bob
	// logs in only after both sends are applied. ListMessages waits for a
	// reply on alice's connection, which the server sends only after it has
	// processed the two earlier sends.
	_, err = alice.ListMessages("bob")
	require.NoError(t, err)

	bob, err := Dial(addr)
	require.NoError(t, err)
	defer bob.Close()
	_, err = bob.Login("bob", "pw")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		counts, err := bob.ListUsers()
		require.NoError(t, err)
		return counts["alice"] == 2
	}, time.Second, 10*time.Millisecond)
}
