// Package session implements the per-client request dispatcher (spec
// §4.G): one task per accepted TCP connection, decoding frames, advancing
// the UNAUTH -> AWAIT_PWD -> AUTH handshake, mutating the store under its
// lock, and fanning deltas out to peers once the lock is released.
//
// Grounded on other_examples' chat-server Server.handlePacket switch
// dispatch and on original_source/server/handler.py's handle_request
// match-statement, reworked onto the binary frame+objcodec wire format
// and the R01-R09 / E01-E06 numeric codes.
package session

import (
	"errors"
	"io"
	"net"
	"sync"

	"github.com/rs/zerolog"

	"replichat/internal/accounts"
	"replichat/internal/chatmsg"
	"replichat/internal/frame"
	"replichat/internal/objcodec"
	"replichat/internal/protocol"
	"replichat/internal/store"
	"replichat/internal/syncclient"
)

// authState is this session's position in the UNAUTH -> AWAIT_PWD -> AUTH
// handshake (spec §4.G).
type authState int

const (
	stateUnauth authState = iota
	stateAwaitPwd
	stateAuth
)

// Presence tracks which usernames currently have a live session bound to
// them, mirroring the original source's connected_clients address->username
// map used as the "is recipient online" check inside send_message. A count
// rather than a bool, since nothing rules out more than one connection
// binding to the same username.
type Presence struct {
	mu     sync.Mutex
	byUser map[string]int
}

// NewPresence creates an empty Presence tracker.
func NewPresence() *Presence {
	return &Presence{byUser: make(map[string]int)}
}

func (p *Presence) bind(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUser[username]++
}

func (p *Presence) unbind(username string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.byUser[username]--
	if p.byUser[username] <= 0 {
		delete(p.byUser, username)
	}
}

// Online reports whether username currently has at least one live session
// bound to it on this node (suitable as the Store.Send "online?" callback).
func (p *Presence) Online(username string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.byUser[username] > 0
}

// Deps bundles the collaborators every session needs. One Deps is shared
// across all sessions on a node.
type Deps struct {
	Store      *store.Store
	Accounts   *accounts.Registry
	SyncClient *syncclient.Client
	Presence   *Presence
	Log        zerolog.Logger
	NowFunc    func() float64
}

// Session is the per-connection dispatcher state (spec §4.G: "client
// address, currently-bound username (null until phase 1 succeeds)").
type Session struct {
	conn     net.Conn
	addr     string
	deps     *Deps
	state    authState
	username string
}

// New creates a Session for an accepted connection.
func New(conn net.Conn, deps *Deps) *Session {
	return &Session{
		conn: conn,
		addr: conn.RemoteAddr().String(),
		deps: deps,
	}
}

// Run reads frames until the connection closes or a fatal decode error
// occurs, dispatching each one and writing at most one response frame
// (spec §4.G). It never returns an error — it logs and the caller simply
// moves on once it returns.
func (s *Session) Run() {
	defer s.cleanup()
	for {
		f, err := frame.Read(s.conn)
		if err != nil {
			if !errors.Is(err, frame.ErrShortRead) {
				s.deps.Log.Warn().Err(err).Str("addr", s.addr).Msg("session: frame decode error")
			}
			return
		}
		payload, err := objcodec.Decode(f.Payload)
		if err != nil {
			s.deps.Log.Warn().Err(err).Str("addr", s.addr).Msg("session: malformed payload, closing")
			return
		}
		if err := s.dispatch(f.Type, payload); err != nil {
			if errors.Is(err, io.ErrClosedPipe) {
				return
			}
			s.deps.Log.Warn().Err(err).Str("addr", s.addr).Msg("session: write failed, closing")
			return
		}
	}
}

func (s *Session) cleanup() {
	if s.username != "" {
		s.deps.Presence.unbind(s.username)
	}
	s.conn.Close()
}

// dispatch routes one decoded request to its handler. Requests arriving in
// the wrong auth state are silently dropped (spec §4.G / §9 open question:
// "a stricter error-reply mode is named as a possible improvement but not
// required").
func (s *Session) dispatch(msgType uint64, payload any) error {
	switch msgType {
	case protocol.ReqLogin1:
		if s.state != stateUnauth {
			return nil
		}
		return s.handleLogin1(payload)

	case protocol.ReqLogin2:
		if s.state != stateAwaitPwd {
			return nil
		}
		return s.handleLogin2(payload)

	case protocol.ReqPing:
		// PING rebinds address->username regardless of auth state,
		// matching handle_request's REQ_PING case exactly — a liveness
		// refresh, not a chat operation (see SUPPLEMENTED FEATURES).
		return s.handlePing(payload)

	default:
		if s.state != stateAuth {
			return nil
		}
		return s.dispatchAuthenticated(msgType, payload)
	}
}

func (s *Session) dispatchAuthenticated(msgType uint64, payload any) error {
	switch msgType {
	case protocol.ReqListUsers:
		return s.handleListUsers()
	case protocol.ReqListMessages:
		return s.handleListMessages(payload)
	case protocol.ReqSendMsg:
		return s.handleSendMsg(payload)
	case protocol.ReqReadMsg:
		return s.handleReadMsg(payload)
	case protocol.ReqDeleteMessage:
		return s.handleDeleteMessage(payload)
	case protocol.ReqDeleteAccount:
		return s.handleDeleteAccount()
	default:
		return nil
	}
}

// ─── Handshake ──────────────────────────────────────────────────────────

func (s *Session) handleLogin1(payload any) error {
	username, ok := payload.(string)
	if !ok || username == "" {
		return nil
	}

	exists := s.deps.Accounts.Exists(username)
	if !exists {
		if err := s.deps.Accounts.Claim(username); err != nil {
			return err
		}
	}

	s.username = username
	s.deps.Presence.bind(username)
	s.state = stateAwaitPwd

	if exists {
		return protocol.WriteMessage(s.conn, protocol.RespUserExisting, nil)
	}
	return protocol.WriteMessage(s.conn, protocol.RespUserNotExisting, nil)
}

func (s *Session) handleLogin2(payload any) error {
	password, ok := payload.(string)
	if !ok {
		return nil
	}

	var success bool
	if s.deps.Accounts.IsUnbound(s.username) {
		if err := s.deps.Accounts.BindPassword(s.username, password); err != nil {
			return err
		}
		success = true
	} else {
		success = s.deps.Accounts.VerifyPassword(s.username, password)
	}

	if !success {
		return protocol.WriteMessage(s.conn, protocol.RespLoginFailed, nil)
	}
	s.state = stateAuth
	usernames := s.deps.Accounts.Usernames()
	return protocol.WriteMessage(s.conn, protocol.RespLoginSuccess, toAnyList(usernames))
}

func (s *Session) handlePing(payload any) error {
	username, ok := payload.(string)
	if !ok || username == "" {
		return nil
	}
	if s.username != "" && s.username != username {
		s.deps.Presence.unbind(s.username)
	}
	s.username = username
	s.deps.Presence.bind(username)
	return nil
}

// ─── Authenticated operations ───────────────────────────────────────────

func (s *Session) handleListUsers() error {
	counts := s.deps.Store.ListUnreadCounts(s.username, s.deps.Accounts.Usernames())
	m := make(map[string]any, len(counts))
	for user, n := range counts {
		m[user] = int64(n)
	}
	return protocol.WriteMessage(s.conn, protocol.RespListUsers, m)
}

func (s *Session) handleListMessages(payload any) error {
	friend, ok := payload.(string)
	if !ok {
		return nil
	}
	msgs := s.deps.Store.ListMessages(s.username, friend)
	list := make([]any, len(msgs))
	for i, m := range msgs {
		list[i] = m
	}
	return protocol.WriteMessage(s.conn, protocol.RespListMessages, list)
}

func (s *Session) handleSendMsg(payload any) error {
	args, ok := payload.([]any)
	if !ok || len(args) != 2 {
		return nil
	}
	recipient, ok1 := args[0].(string)
	content, ok2 := args[1].(string)
	if !ok1 || !ok2 {
		return nil
	}

	now := s.now()
	m, err := s.deps.Store.Send(s.username, recipient, content, now, s.deps.Presence.Online)
	if err != nil {
		return err
	}
	s.deps.SyncClient.FanoutIncremental(syncclient.MakePackage([]chatmsg.Message{m}, nil, nil))
	return nil
}

func (s *Session) handleReadMsg(payload any) error {
	sender, ok := payload.(string)
	if !ok {
		return nil
	}
	ids, err := s.deps.Store.Read(sender, s.username)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}
	s.deps.SyncClient.FanoutIncremental(syncclient.MakePackage(nil, nil, ids))
	return nil
}

func (s *Session) handleDeleteMessage(payload any) error {
	id, ok := payload.(string)
	if !ok {
		return nil
	}
	if err := s.deps.Store.DeleteMessage(id); err != nil {
		return err
	}
	s.deps.SyncClient.FanoutIncremental(syncclient.MakePackage(nil, []string{id}, nil))
	return nil
}

func (s *Session) handleDeleteAccount() error {
	// Not replicated — spec.md leaves cross-node account deletion as an
	// open question; this matches original_source exactly (no sync_client
	// call here).
	if err := s.deps.Store.DeleteAccount(s.username); err != nil {
		return err
	}
	return s.deps.Accounts.Delete(s.username)
}

func (s *Session) now() float64 {
	if s.deps.NowFunc != nil {
		return s.deps.NowFunc()
	}
	return chatmsg.Now()
}

func toAnyList(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
