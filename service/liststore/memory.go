package liststore

import (
	"context"
	"sync"
	"time"
)

// Memory is an in-memory list store with the same append-only, read-time
// expiry semantics as the SQL service. Used by tests and the examples.
type Memory struct {
	mu           sync.Mutex
	suppressions map[string][]*Suppression
	assignments  map[string][]*Assignment
	agents       map[string]bool
}

// NewMemory creates an empty in-memory list store.
func NewMemory() *Memory {
	return &Memory{
		suppressions: map[string][]*Suppression{},
		assignments:  map[string][]*Assignment{},
		agents:       map[string]bool{},
	}
}

func listKey(tenant, flowID string) string {
	return tenant + "/" + flowID
}

// Suppress appends a suppression entry.
func (m *Memory) Suppress(ctx context.Context, tenant, flowID string, entry *Suppression) error {
	if entry == nil || entry.Mobile == "" {
		return errSuppressionMobile
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listKey(tenant, flowID)
	m.suppressions[key] = append(m.suppressions[key], entry)
	return nil
}

// Suppressed reports whether the sender has a live entry at the instant.
func (m *Memory) Suppressed(ctx context.Context, tenant, flowID, mobile string, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, entry := range m.suppressions[listKey(tenant, flowID)] {
		if entry.Mobile == mobile && entry.ExpiresAt > at.UnixMilli() {
			return true, nil
		}
	}
	return false, nil
}

// Assign appends an AI assignment.
func (m *Memory) Assign(ctx context.Context, tenant, flowID string, assignment *Assignment) error {
	if assignment == nil || assignment.Sender == "" {
		return errAssignmentSender
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listKey(tenant, flowID)
	m.assignments[key] = append(m.assignments[key], assignment)
	return nil
}

// AssignmentFor returns the sender's latest assignment or nil.
func (m *Memory) AssignmentFor(ctx context.Context, tenant, flowID, sender string) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	entries := m.assignments[listKey(tenant, flowID)]
	for i := len(entries) - 1; i >= 0; i-- {
		if entries[i].Sender == sender {
			copied := *entries[i]
			return &copied, nil
		}
	}
	return nil, nil
}

// Unassign removes the sender's assignments.
func (m *Memory) Unassign(ctx context.Context, tenant, flowID, sender string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := listKey(tenant, flowID)
	var kept []*Assignment
	for _, entry := range m.assignments[key] {
		if entry.Sender != sender {
			kept = append(kept, entry)
		}
	}
	m.assignments[key] = kept
	return nil
}

// AssignAgent records a human-agent assignment idempotently.
func (m *Memory) AssignAgent(ctx context.Context, tenant, agentEmail, conversationID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.agents[tenant+"/"+agentEmail+"/"+conversationID] = true
	return nil
}

// AgentAssigned reports whether the agent holds the conversation.
func (m *Memory) AgentAssigned(tenant, agentEmail, conversationID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.agents[tenant+"/"+agentEmail+"/"+conversationID]
}
