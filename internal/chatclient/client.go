// Package chatclient is an SDK for talking to one replichat node over the
// binary TCP protocol (spec §6), in the same spirit as the teacher's
// internal/client package: it hides the frame/objcodec wire details
// behind a small set of Go method calls, and the CLI in cmd/client is the
// only caller.
package chatclient

import (
	"fmt"
	"net"
	"time"

	"replichat/internal/chatmsg"
	"replichat/internal/objcodec"
	"replichat/internal/protocol"
)

// Client holds one TCP connection to a single node. It does not retry or
// fail over to another node — that mirrors the teacher's own client,
// which "talks to a single node" and leaves cluster behavior to the
// server side.
type Client struct {
	conn net.Conn
}

// Dial connects to addr with a 5-second connect timeout, matching spec
// §5's "client sockets use a 5-second connect timeout on the client
// side".
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("chatclient: dial %s: %w", addr, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// ErrLoginFailed is returned by Login when the password does not match an
// existing account.
var ErrLoginFailed = fmt.Errorf("chatclient: login failed")

// Login runs the two-phase handshake (spec §4.G): LOGIN_1 claims or finds
// username, LOGIN_2 binds or verifies password. It returns the full
// username list the server replies with on success.
func (c *Client) Login(username, password string) ([]string, error) {
	if err := protocol.WriteMessage(c.conn, protocol.ReqLogin1, username); err != nil {
		return nil, err
	}
	if _, _, err := protocol.ReadMessage(c.conn); err != nil {
		return nil, err
	}

	if err := protocol.WriteMessage(c.conn, protocol.ReqLogin2, password); err != nil {
		return nil, err
	}
	code, payload, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return nil, err
	}
	if code == protocol.RespLoginFailed {
		return nil, ErrLoginFailed
	}
	return stringList(payload), nil
}

// Send sends content to recipient.
func (c *Client) Send(recipient, content string) error {
	return protocol.WriteMessage(c.conn, protocol.ReqSendMsg, []any{recipient, content})
}

// Read marks every unread message from sender as read.
func (c *Client) Read(sender string) error {
	return protocol.WriteMessage(c.conn, protocol.ReqReadMsg, sender)
}

// ListMessages requests the conversation with friend.
func (c *Client) ListMessages(friend string) ([]chatmsg.Message, error) {
	if err := protocol.WriteMessage(c.conn, protocol.ReqListMessages, friend); err != nil {
		return nil, err
	}
	_, payload, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return nil, err
	}
	list, ok := payload.([]any)
	if !ok {
		return nil, fmt.Errorf("chatclient: malformed list_messages response")
	}
	out := make([]chatmsg.Message, 0, len(list))
	for _, item := range list {
		m, err := objcodec.MessageFromMap(item)
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// ListUsers requests unread-message counts per known username.
func (c *Client) ListUsers() (map[string]int64, error) {
	if err := protocol.WriteMessage(c.conn, protocol.ReqListUsers, nil); err != nil {
		return nil, err
	}
	_, payload, err := protocol.ReadMessage(c.conn)
	if err != nil {
		return nil, err
	}
	m, ok := payload.(map[string]any)
	if !ok {
		return nil, fmt.Errorf("chatclient: malformed list_users response")
	}
	out := make(map[string]int64, len(m))
	for k, v := range m {
		n, _ := v.(int64)
		out[k] = n
	}
	return out, nil
}

// DeleteMessage deletes a message by id.
func (c *Client) DeleteMessage(id string) error {
	return protocol.WriteMessage(c.conn, protocol.ReqDeleteMessage, id)
}

// DeleteAccount deletes the logged-in account.
func (c *Client) DeleteAccount() error {
	return protocol.WriteMessage(c.conn, protocol.ReqDeleteAccount, nil)
}

// Ping rebinds this connection's identity on the server without mutating
// any chat state (spec: SUPPLEMENTED FEATURES, R09).
func (c *Client) Ping(username string) error {
	return protocol.WriteMessage(c.conn, protocol.ReqPing, username)
}

func stringList(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}
