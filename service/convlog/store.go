// Package convlog keeps the append-only per-conversation message log as one
// JSON array per conversation. Reads are forgiving: a missing file or
// malformed trailing bytes count as empty history, never as an error.
package convlog

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"sync"

	"github.com/bytedance/sonic"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/internal/idgen"
)

// Direction of a logged message.
const (
	DirectionIn  = "in"
	DirectionOut = "out"
)

// Record is one logged message.
type Record struct {
	ID        string      `json:"id"`
	Direction string      `json:"direction"`
	// Kind is the content kind (text, image, interactive, ...)
	Kind      string      `json:"kind,omitempty"`
	Payload   interface{} `json:"payload,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewRecord builds a log record with generated id and current timestamp.
func NewRecord(direction, kind string, payload interface{}) *Record {
	return &Record{
		ID:        idgen.New(),
		Direction: direction,
		Kind:      kind,
		Payload:   payload,
		Timestamp: clock.Now().UnixMilli(),
	}
}

// Store reads and appends conversation logs under a base URL (file, mem or
// any afs-supported scheme).
type Store struct {
	fs      afs.Service
	baseURL string
	mux     sync.Mutex
}

// New creates a conversation log store.
func New(baseURL string) *Store {
	return &Store{fs: afs.New(), baseURL: baseURL}
}

// Append adds a record to the conversation's log.
func (s *Store) Append(ctx context.Context, conversationID string, record *Record) error {
	if conversationID == "" {
		return fmt.Errorf("conversation id is required")
	}
	if record == nil {
		return nil
	}
	s.mux.Lock()
	defer s.mux.Unlock()

	records := s.read(ctx, conversationID)
	records = append(records, record)
	data, err := sonic.Marshal(records)
	if err != nil {
		return fmt.Errorf("failed to encode conversation log %s: %w", conversationID, err)
	}
	location := s.logPath(conversationID)
	if err := s.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to write conversation log %s: %w", location, err)
	}
	return nil
}

// History returns the conversation's records, optionally trimmed to the last
// N entries. Read failures degrade to empty history.
func (s *Store) History(ctx context.Context, conversationID string, lastN int) []*Record {
	s.mux.Lock()
	records := s.read(ctx, conversationID)
	s.mux.Unlock()
	if lastN > 0 && len(records) > lastN {
		records = records[len(records)-lastN:]
	}
	return records
}

func (s *Store) read(ctx context.Context, conversationID string) []*Record {
	location := s.logPath(conversationID)
	ok, err := s.fs.Exists(ctx, location)
	if err != nil || !ok {
		return nil
	}
	data, err := s.fs.DownloadWithURL(ctx, location)
	if err != nil {
		return nil
	}
	var records []*Record
	if err := sonic.Unmarshal(data, &records); err != nil {
		// Malformed log - treat as empty rather than fail the turn.
		return nil
	}
	return records
}

func (s *Store) logPath(conversationID string) string {
	return path.Join(s.baseURL, conversationID+".json")
}
