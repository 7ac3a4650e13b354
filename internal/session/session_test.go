package session

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
	"replichat/internal/protocol"
	"replichat/internal/store"
	"replichat/internal/syncclient"
)

func newTestSession(t *testing.T) (client net.Conn, deps *Deps) {
	t.Helper()
	dir := t.TempDir()

	st, err := store.Open(filepath.Join(dir, "node.json"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	acct, err := accounts.Open(filepath.Join(dir, "user_accounts.json"))
	require.NoError(t, err)

	sc := syncclient.New(peers.New(nil), time.Second, zerolog.Nop())

	deps = &Deps{
		Store:      st,
		Accounts:   acct,
		SyncClient: sc,
		Presence:   NewPresence(),
		Log:        zerolog.Nop(),
	}

	serverConn, clientConn := net.Pipe()
	go New(serverConn, deps).Run()
	return clientConn, deps
}

func login(t *testing.T, conn net.Conn, username, password string) (code uint64, payload any) {
	t.Helper()
	require.NoError(t, protocol.WriteMessage(conn, protocol.ReqLogin1, username))
	_, _, err := protocol.ReadMessage(conn)
	require.NoError(t, err)

	require.NoError(t, protocol.WriteMessage(conn, protocol.ReqLogin2, password))
	code, payload, err = protocol.ReadMessage(conn)
	require.NoError(t, err)
	return code, payload
}

func TestNewUserLoginCreatesAccount(t *testing.T) {
	conn, deps := newTestSession(t)
	defer conn.Close()

	code, payload := login(t, conn, "alice", "s3cret")
	assert.Equal(t, protocol.RespLoginSuccess, code)
	assert.Contains(t, payload, "alice")
	assert.True(t, deps.Accounts.VerifyPassword("alice", "s3cret"))
}

func TestSecondLoginVerifiesPassword(t *testing.T) {
	conn, deps := newTestSession(t)
	defer conn.Close()
	login(t, conn, "alice", "s3cret")

	conn.Close()

	_, conn2 := pipeSession(deps)
	defer conn2.Close()
	code, _ := login(t, conn2, "alice", "s3cret")
	assert.Equal(t, protocol.RespLoginSuccess, code)
}

func TestWrongPasswordFails(t *testing.T) {
	deps := newDepsOnly(t)
	conn1, client1 := pipeSession(deps)
	defer conn1.Close()
	login(t, client1, "alice", "correct")
	client1.Close()

	conn2, client2 := pipeSession(deps)
	defer conn2.Close()
	code, _ := login(t, client2, "alice", "wrong")
	assert.Equal(t, protocol.RespLoginFailed, code)
}

func TestSendThenListMessages(t *testing.T) {
	deps := newDepsOnly(t)

	_, alice := pipeSession(deps)
	defer alice.Close()
	login(t, alice, "alice", "pw")

	// Both requests travel over the same connection, so the dispatcher's
	// sequential read loop guarantees the send has been fully applied
	// before the list request is even decoded — no cross-goroutine race.
	require.NoError(t, protocol.WriteMessage(alice, protocol.ReqSendMsg, []any{"bob", "hello"}))
	require.NoError(t, protocol.WriteMessage(alice, protocol.ReqListMessages, "bob"))

	code, payload, err := protocol.ReadMessage(alice)
	require.NoError(t, err)
	assert.Equal(t, protocol.RespListMessages, code)
	list, ok := payload.([]any)
	require.True(t, ok)
	require.Len(t, list, 1)
}

func TestUnauthenticatedRequestIsDropped(t *testing.T) {
	deps := newDepsOnly(t)
	_, conn := pipeSession(deps)
	defer conn.Close()

	require.NoError(t, protocol.WriteMessage(conn, protocol.ReqListUsers, nil))
	// No response should ever arrive; prove the connection is still usable
	// by completing login afterward on the same connection.
	code, _ := login(t, conn, "alice", "pw")
	assert.Equal(t, protocol.RespLoginSuccess, code)
}

// newDepsOnly builds shared Deps without wiring a connection yet, so
// multiple sessions in one test can share the same store/accounts.
func newDepsOnly(t *testing.T) *Deps {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "node.json"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	acct, err := accounts.Open(filepath.Join(dir, "user_accounts.json"))
	require.NoError(t, err)
	sc := syncclient.New(peers.New(nil), time.Second, zerolog.Nop())
	return &Deps{Store: st, Accounts: acct, SyncClient: sc, Presence: NewPresence(), Log: zerolog.Nop()}
}

func pipeSession(deps *Deps) (server net.Conn, client net.Conn) {
	server, client = net.Pipe()
	go New(server, deps).Run()
	return server, client
}
