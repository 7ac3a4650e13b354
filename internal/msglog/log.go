// Package msglog implements the append-only per-node message log (spec
// §4.C): a single file, one JSON object per line, of four record shapes —
// upsert, delete, read, and a truncate-then-upsert* snapshot. It is
// grounded on the teacher's store/wal.go (append-only NDJSON file, fsync on
// every append, truncate-on-snapshot) generalized from
// a single walEntry{Op,Key,Value} shape to the spec's four record kinds.
package msglog

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"

	"replichat/internal/chatmsg"
)

// opRecord is the shape of the two "operation" lines, delete and read.
// Upsert lines have no "operation" field at all — they are a bare Message.
type opRecord struct {
	Operation string   `json:"operation"`
	IDs       []string `json:"ids"`
}

// Log is a single append-only file of mutation records.
//
// Log has no lock of its own: every append and snapshot (write plus fsync)
// is made by a caller that already holds the store lock, which is what
// keeps writers to the file handle from overlapping.
type Log struct {
	file *os.File
	path string
}

// Open creates or opens the log file at path for appending. A missing file
// is created empty — that is not an error (spec: "a missing file yields an
// empty store").
func Open(path string) (*Log, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("msglog: open %s: %w", path, err)
	}
	return &Log{file: f, path: path}, nil
}

// AppendUpsert appends one upsert line carrying the full message body.
func (l *Log) AppendUpsert(m chatmsg.Message) error {
	return l.appendLine(m)
}

// AppendDelete appends one aggregate delete line. Callers should not call
// this with an empty ids slice (spec: "an empty sub-list of any kind is
// skipped").
func (l *Log) AppendDelete(ids []string) error {
	return l.appendLine(opRecord{Operation: "delete", IDs: ids})
}

// AppendRead appends one aggregate read line.
func (l *Log) AppendRead(ids []string) error {
	return l.appendLine(opRecord{Operation: "read", IDs: ids})
}

func (l *Log) appendLine(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("msglog: marshal: %w", err)
	}
	data = append(data, '\n')
	if _, err := l.file.Write(data); err != nil {
		return fmt.Errorf("msglog: write: %w", err)
	}
	return l.file.Sync()
}

// Snapshot truncates the file and writes one upsert line per message in
// messages. The inbox is never persisted — it is always reconstructible
// from by_id on replay.
func (l *Log) Snapshot(messages []chatmsg.Message) error {
	if err := l.file.Truncate(0); err != nil {
		return fmt.Errorf("msglog: truncate: %w", err)
	}
	if _, err := l.file.Seek(0, 0); err != nil {
		return fmt.Errorf("msglog: seek: %w", err)
	}
	for _, m := range messages {
		if err := l.appendLine(m); err != nil {
			return err
		}
	}
	return nil
}

// Replay scans the log from the beginning and returns the resulting by_id
// map. It does not rebuild the inbox — that is the store's job, walking
// by_id once after replay (spec §4.C).
//
// A malformed line is a StorageReplayError: the node must refuse to start
// with an inconsistent on-disk state, so this returns an error rather than
// skipping the line.
func (l *Log) Replay() (map[string]chatmsg.Message, error) {
	if _, err := l.file.Seek(0, 0); err != nil {
		return nil, fmt.Errorf("msglog: seek: %w", err)
	}

	byID := make(map[string]chatmsg.Message)
	scanner := bufio.NewScanner(l.file)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}

		var probe map[string]json.RawMessage
		if err := json.Unmarshal(line, &probe); err != nil {
			return nil, fmt.Errorf("msglog: malformed line: %w", err)
		}

		if _, isOp := probe["operation"]; isOp {
			var rec opRecord
			if err := json.Unmarshal(line, &rec); err != nil {
				return nil, fmt.Errorf("msglog: malformed operation line: %w", err)
			}
			switch rec.Operation {
			case "delete":
				for _, id := range rec.IDs {
					delete(byID, id)
				}
			case "read":
				for _, id := range rec.IDs {
					if m, ok := byID[id]; ok {
						m.Status = chatmsg.Read
						byID[id] = m
					}
				}
			default:
				return nil, fmt.Errorf("msglog: unknown operation %q", rec.Operation)
			}
			continue
		}

		var m chatmsg.Message
		if err := json.Unmarshal(line, &m); err != nil {
			return nil, fmt.Errorf("msglog: malformed upsert line: %w", err)
		}
		byID[m.ID] = m
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("msglog: scan: %w", err)
	}
	return byID, nil
}

// Close closes the underlying file.
func (l *Log) Close() error {
	return l.file.Close()
}
