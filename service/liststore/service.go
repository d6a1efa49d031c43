// Package liststore persists per-flow suppression windows, AI-assignment
// overrides and human-agent assignments as append-only SQL rows keyed by
// (tenant, flow). Row-level inserts replace the read-whole-array,
// append, write-whole-array cycle that raced under concurrent senders;
// expiry is still evaluated at read time, never by a cleanup job.
package liststore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	// database/sql drivers selectable via Config.Driver
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/internal/idgen"
)

// Suppression blocks a sender until the expiry instant passes. Entries only
// append; a sender is blocked while any of their entries is still live.
type Suppression struct {
	Mobile string `json:"mobile"`
	// ExpiresAt is epoch milliseconds
	ExpiresAt int64  `json:"timestamp"`
	Timezone  string `json:"timezone,omitempty"`
}

// Assignment pins a sender's turns to AI handling via the recorded node.
type Assignment struct {
	Sender     string `json:"senderNumber"`
	SenderName string `json:"senderName,omitempty"`
	NodeID     string `json:"node"`
}

var (
	errSuppressionMobile = errors.New("suppression entry requires a mobile")
	errAssignmentSender  = errors.New("assignment requires a sender")
)

// Service is the SQL-backed list store.
type Service struct {
	db     *sql.DB
	driver string
}

// Open connects using the given driver ("sqlite" or "postgres") and DSN.
func Open(driver, dsn string) (*Service, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open list store: %w", err)
	}
	return &Service{db: db, driver: driver}, nil
}

// NewWithDB wraps an existing handle (tests use this with sqlmock).
func NewWithDB(db *sql.DB, driver string) *Service {
	return &Service{db: db, driver: driver}
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS flow_suppression (
		id TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		flow_id TEXT NOT NULL,
		mobile TEXT NOT NULL,
		expires_at BIGINT NOT NULL,
		timezone TEXT,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_flow_suppression ON flow_suppression (tenant, flow_id, mobile)`,
	`CREATE TABLE IF NOT EXISTS flow_ai_assignment (
		id TEXT PRIMARY KEY,
		tenant TEXT NOT NULL,
		flow_id TEXT NOT NULL,
		sender TEXT NOT NULL,
		sender_name TEXT,
		node_id TEXT NOT NULL,
		created_at BIGINT NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS ix_flow_ai_assignment ON flow_ai_assignment (tenant, flow_id, sender)`,
	`CREATE TABLE IF NOT EXISTS agent_assignment (
		tenant TEXT NOT NULL,
		agent_email TEXT NOT NULL,
		conversation_id TEXT NOT NULL,
		created_at BIGINT NOT NULL,
		PRIMARY KEY (tenant, agent_email, conversation_id)
	)`,
}

// EnsureSchema creates the tables when absent.
func (s *Service) EnsureSchema(ctx context.Context) error {
	for _, ddl := range schema {
		if _, err := s.db.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to ensure list store schema: %w", err)
		}
	}
	return nil
}

// Suppress appends a suppression row. Existing rows are never updated.
func (s *Service) Suppress(ctx context.Context, tenant, flowID string, entry *Suppression) error {
	if entry == nil || entry.Mobile == "" {
		return errSuppressionMobile
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO flow_suppression (id, tenant, flow_id, mobile, expires_at, timezone, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		idgen.New(), tenant, flowID, entry.Mobile, entry.ExpiresAt, entry.Timezone, clock.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append suppression for %s: %w", entry.Mobile, err)
	}
	return nil
}

// Suppressed reports whether any of the sender's entries is still live at the
// given instant.
func (s *Service) Suppressed(ctx context.Context, tenant, flowID, mobile string, at time.Time) (bool, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT COUNT(1) FROM flow_suppression WHERE tenant = ? AND flow_id = ? AND mobile = ? AND expires_at > ?`),
		tenant, flowID, mobile, at.UnixMilli())
	var count int
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("failed to query suppression for %s: %w", mobile, err)
	}
	return count > 0, nil
}

// Assign appends an AI-assignment row for the sender.
func (s *Service) Assign(ctx context.Context, tenant, flowID string, assignment *Assignment) error {
	if assignment == nil || assignment.Sender == "" {
		return errAssignmentSender
	}
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO flow_ai_assignment (id, tenant, flow_id, sender, sender_name, node_id, created_at) VALUES (?, ?, ?, ?, ?, ?, ?)`),
		idgen.New(), tenant, flowID, assignment.Sender, assignment.SenderName, assignment.NodeID, clock.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to append assignment for %s: %w", assignment.Sender, err)
	}
	return nil
}

// AssignmentFor returns the sender's most recent AI assignment, or nil when
// the sender is not tracked.
func (s *Service) AssignmentFor(ctx context.Context, tenant, flowID, sender string) (*Assignment, error) {
	row := s.db.QueryRowContext(ctx,
		s.rebind(`SELECT sender, sender_name, node_id FROM flow_ai_assignment WHERE tenant = ? AND flow_id = ? AND sender = ? ORDER BY created_at DESC LIMIT 1`),
		tenant, flowID, sender)
	assignment := &Assignment{}
	var name sql.NullString
	if err := row.Scan(&assignment.Sender, &name, &assignment.NodeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to query assignment for %s: %w", sender, err)
	}
	assignment.SenderName = name.String
	return assignment, nil
}

// Unassign removes a sender's AI assignment (used when a flow explicitly
// hands the conversation back).
func (s *Service) Unassign(ctx context.Context, tenant, flowID, sender string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`DELETE FROM flow_ai_assignment WHERE tenant = ? AND flow_id = ? AND sender = ?`),
		tenant, flowID, sender)
	if err != nil {
		return fmt.Errorf("failed to unassign %s: %w", sender, err)
	}
	return nil
}

// AssignAgent upserts a human-agent assignment; inserting an identical row
// again is a no-op.
func (s *Service) AssignAgent(ctx context.Context, tenant, agentEmail, conversationID string) error {
	_, err := s.db.ExecContext(ctx,
		s.rebind(`INSERT INTO agent_assignment (tenant, agent_email, conversation_id, created_at) VALUES (?, ?, ?, ?) ON CONFLICT (tenant, agent_email, conversation_id) DO NOTHING`),
		tenant, agentEmail, conversationID, clock.Now().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to assign agent %s: %w", agentEmail, err)
	}
	return nil
}

// Close releases the database handle.
func (s *Service) Close() error {
	return s.db.Close()
}

// rebind translates ? placeholders into the $n form postgres expects.
func (s *Service) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteByte(query[i])
	}
	return b.String()
}
