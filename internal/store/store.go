// Package store implements the in-memory message index (spec §4.D): the
// by_id map and the two-level inbox, kept mutually consistent (invariants
// I1/I2) under a single mutex, with every mutation appended to the message
// log. Send, Read, DeleteMessage, DeleteAccount and ApplyRemoteUpsert write
// the log before changing the in-memory state; ApplyRemoteDelete,
// ApplyRemoteRead and ReplaceAll change the in-memory state first and then
// write the log.
//
// Grounded on the teacher's store/store.go: a single-mutex struct wrapping
// a map, with New/Put/Get/ApplyRemote method shapes and the same
// load-snapshot-then-replay-WAL startup sequence, generalized here from a
// flat map[string]Value to by_id + inbox.
package store

import (
	"fmt"
	"sort"
	"sync"

	"github.com/google/uuid"

	"replichat/internal/chatmsg"
	"replichat/internal/msglog"
)

// Store is the in-memory message index. It is safe for concurrent use.
//
// The source this spec was distilled from never closes the delete/upsert
// race: a late remote Upsert for an id that was already locally deleted
// will resurrect the message, because there are no tombstones or version
// vectors. That is preserved here deliberately — spec.md calls it out as
// an open question and directs implementations not to silently fix it.
type Store struct {
	mu    sync.Mutex
	byID  map[string]chatmsg.Message
	inbox map[string]map[string][]string // recipient -> sender -> ordered ids
	log   *msglog.Log
}

// Open creates or opens the on-disk log at path, replays it, and rebuilds
// the inbox. A missing log file is not an error — it yields an empty store.
func Open(path string) (*Store, error) {
	l, err := msglog.Open(path)
	if err != nil {
		return nil, err
	}

	byID, err := l.Replay()
	if err != nil {
		return nil, fmt.Errorf("store: replay: %w", err)
	}

	s := &Store{
		byID:  byID,
		inbox: make(map[string]map[string][]string),
		log:   l,
	}
	for _, m := range byID {
		s.addToInbox(m.ID, m.Recipient, m.Sender)
	}
	return s, nil
}

// Close closes the underlying log file.
func (s *Store) Close() error {
	return s.log.Close()
}

// ─── Public API ─────────────────────────────────────────────────────────

// Send creates a new Message from sender to recipient and inserts it into
// both structures. online reports whether recipient currently has a live
// session on this node; if so the message is born Read, otherwise Unread.
func (s *Store) Send(sender, recipient, content string, now float64, online func(string) bool) (chatmsg.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	status := chatmsg.Unread
	if online != nil && online(recipient) {
		status = chatmsg.Read
	}

	m := chatmsg.Message{
		ID:        uuid.NewString(),
		Sender:    sender,
		Recipient: recipient,
		Content:   content,
		Timestamp: now,
		Status:    status,
	}

	if err := s.log.AppendUpsert(m); err != nil {
		return chatmsg.Message{}, err
	}

	s.byID[m.ID] = m
	s.addToInbox(m.ID, recipient, sender)
	return m, nil
}

// Read marks every unread message from sender to recipient as read and
// returns the ids that were actually flipped (so the caller can build an
// accurate Read delta; spec: "only touched ids").
func (s *Store) Read(sender, recipient string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	bySender, ok := s.inbox[recipient]
	if !ok {
		return nil, nil
	}
	ids, ok := bySender[sender]
	if !ok {
		return nil, nil
	}

	var touched []string
	for _, id := range ids {
		m, ok := s.byID[id]
		if ok && m.Status == chatmsg.Unread {
			touched = append(touched, id)
		}
	}
	if len(touched) == 0 {
		return nil, nil
	}

	if err := s.log.AppendRead(touched); err != nil {
		return nil, err
	}
	for _, id := range touched {
		m := s.byID[id]
		m.Status = chatmsg.Read
		s.byID[id] = m
	}
	return touched, nil
}

// ListMessages returns every message between user and friend (in either
// direction), sorted ascending by timestamp (spec P7).
func (s *Store) ListMessages(user, friend string) []chatmsg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []chatmsg.Message
	for _, m := range s.byID {
		if (m.Sender == user && m.Recipient == friend) || (m.Sender == friend && m.Recipient == user) {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return out
}

// ListUnreadCounts returns, for each sender in known, the number of unread
// messages that sender has sent to user (spec P8).
func (s *Store) ListUnreadCounts(user string, known []string) map[string]int {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[string]int, len(known))
	bySender := s.inbox[user]
	for _, sender := range known {
		n := 0
		for _, id := range bySender[sender] {
			if m, ok := s.byID[id]; ok && m.Status == chatmsg.Unread {
				n++
			}
		}
		counts[sender] = n
	}
	return counts
}

// DeleteMessage removes id from both structures. It is a no-op if id is
// unknown (spec: SemanticNoOp).
func (s *Store) DeleteMessage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, ok := s.byID[id]
	if !ok {
		return nil
	}
	if err := s.log.AppendDelete([]string{id}); err != nil {
		return err
	}
	delete(s.byID, id)
	s.removeFromInbox(id, m.Recipient, m.Sender)
	return nil
}

// DeleteAccount removes every message where user is sender or recipient.
// Not replicated — spec.md leaves cross-node account deletion as an open
// question rather than guessing a design; see SPEC_FULL.md/DESIGN.md.
func (s *Store) DeleteAccount(user string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var doomed []string
	for id, m := range s.byID {
		if m.Sender == user || m.Recipient == user {
			doomed = append(doomed, id)
		}
	}
	if len(doomed) == 0 {
		return nil
	}
	if err := s.log.AppendDelete(doomed); err != nil {
		return err
	}
	for _, id := range doomed {
		m := s.byID[id]
		delete(s.byID, id)
		s.removeFromInbox(id, m.Recipient, m.Sender)
	}
	return nil
}

// ApplyRemoteUpsert applies a replicated message using the LWW tie-break:
// the larger timestamp wins; on equal timestamps the incoming value wins,
// which makes the operation idempotent for identical payloads (spec P4).
// A message already marked Read stays Read even if the incoming copy says
// Unread (invariant I3). Applying it is log-only — no further fanout (it already came from a
// peer).
func (s *Store) ApplyRemoteUpsert(m chatmsg.Message) (applied bool, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.byID[m.ID]; ok {
		if m.Timestamp < existing.Timestamp {
			return false, nil
		}
		if existing.Status == chatmsg.Read {
			m.Status = chatmsg.Read
		}
		if err := s.log.AppendUpsert(m); err != nil {
			return false, err
		}
		s.byID[m.ID] = m
		if existing.Recipient != m.Recipient || existing.Sender != m.Sender {
			s.removeFromInbox(m.ID, existing.Recipient, existing.Sender)
			s.addToInbox(m.ID, m.Recipient, m.Sender)
		}
		return true, nil
	}

	if err := s.log.AppendUpsert(m); err != nil {
		return false, err
	}
	s.byID[m.ID] = m
	s.addToInbox(m.ID, m.Recipient, m.Sender)
	return true, nil
}

// ApplyRemoteDelete removes each id, silently ignoring unknown ones.
func (s *Store) ApplyRemoteDelete(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var known []string
	for _, id := range ids {
		if m, ok := s.byID[id]; ok {
			known = append(known, id)
			delete(s.byID, id)
			s.removeFromInbox(id, m.Recipient, m.Sender)
		}
	}
	if len(known) == 0 {
		return nil
	}
	return s.log.AppendDelete(known)
}

// ApplyRemoteRead marks each known id as read, silently ignoring unknown
// ones.
func (s *Store) ApplyRemoteRead(ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var known []string
	for _, id := range ids {
		if m, ok := s.byID[id]; ok && m.Status == chatmsg.Unread {
			m.Status = chatmsg.Read
			s.byID[id] = m
			known = append(known, id)
		}
	}
	if len(known) == 0 {
		return nil
	}
	return s.log.AppendRead(known)
}

// Snapshot returns a consistent copy of every message currently stored.
func (s *Store) Snapshot() []chatmsg.Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]chatmsg.Message, 0, len(s.byID))
	for _, m := range s.byID {
		out = append(out, m)
	}
	return out
}

// ReplaceAll clears the store and repopulates it from messages, then
// rewrites the log as a snapshot. Used by FullSync and by the startup
// reconciliation's final rewrite step.
func (s *Store) ReplaceAll(messages []chatmsg.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.byID = make(map[string]chatmsg.Message, len(messages))
	s.inbox = make(map[string]map[string][]string)
	for _, m := range messages {
		s.byID[m.ID] = m
		s.addToInbox(m.ID, m.Recipient, m.Sender)
	}
	return s.log.Snapshot(messages)
}

// ─── internal helpers ───────────────────────────────────────────────────

// addToInbox appends id to inbox[recipient][sender] unless it is already
// present, preserving invariant I1 ("exactly once") across repeated calls
// from ApplyRemoteUpsert.
func (s *Store) addToInbox(id, recipient, sender string) {
	bySender, ok := s.inbox[recipient]
	if !ok {
		bySender = make(map[string][]string)
		s.inbox[recipient] = bySender
	}
	for _, existing := range bySender[sender] {
		if existing == id {
			return
		}
	}
	bySender[sender] = append(bySender[sender], id)
}

func (s *Store) removeFromInbox(id, recipient, sender string) {
	bySender, ok := s.inbox[recipient]
	if !ok {
		return
	}
	ids := bySender[sender]
	for i, existing := range ids {
		if existing == id {
			bySender[sender] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(bySender[sender]) == 0 {
		delete(bySender, sender)
	}
	if len(bySender) == 0 {
		delete(s.inbox, recipient)
	}
}
