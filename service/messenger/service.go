// Package messenger defines the outbound delivery contract. The engine only
// constructs content objects and log records; channel adapters (cloud API,
// QR session) implement Service and own the transport.
package messenger

import (
	"context"
	"sync"

	"github.com/chatflow/chatflow/service/convlog"
)

// Result is the soft outcome of a delivery attempt. Failures are values, not
// errors - the engine logs them and moves on.
type Result struct {
	Success bool   `json:"success"`
	Msg     string `json:"msg,omitempty"`
}

// Service delivers one rendered content object to a recipient and records it
// in the conversation log.
type Service interface {
	Send(ctx context.Context, tenant string, content map[string]interface{}, recipient string, record *convlog.Record, conversationID string) Result
}

// Sent captures one delivery observed by the Recorder fake.
type Sent struct {
	Tenant         string
	Recipient      string
	ConversationID string
	Content        map[string]interface{}
}

// Recorder is an in-memory Service used by tests and examples. When a log
// store is attached it mirrors what a real adapter does: append the outbound
// record to the conversation log.
type Recorder struct {
	Log  *convlog.Store
	mu   sync.Mutex
	sent []Sent
}

var _ Service = (*Recorder)(nil)

// Send records the delivery and reports success.
func (r *Recorder) Send(ctx context.Context, tenant string, content map[string]interface{}, recipient string, record *convlog.Record, conversationID string) Result {
	r.mu.Lock()
	r.sent = append(r.sent, Sent{
		Tenant:         tenant,
		Recipient:      recipient,
		ConversationID: conversationID,
		Content:        content,
	})
	r.mu.Unlock()
	if r.Log != nil && record != nil {
		if err := r.Log.Append(ctx, conversationID, record); err != nil {
			return Result{Success: false, Msg: err.Error()}
		}
	}
	return Result{Success: true}
}

// Sent returns a copy of the recorded deliveries.
func (r *Recorder) Sent() []Sent {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Sent(nil), r.sent...)
}
