// Package handler defines the execution contract shared by the three node
// handler families and the dispatcher that drives them.
package handler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/ai"
	"github.com/chatflow/chatflow/service/convlog"
	"github.com/chatflow/chatflow/service/dao"
	"github.com/chatflow/chatflow/service/fetch"
	"github.com/chatflow/chatflow/service/liststore"
	"github.com/chatflow/chatflow/service/messenger"
	"github.com/chatflow/chatflow/service/sheets"
)

// Variable bag keys populated by the dispatcher on every execution.
const (
	VarPreviousMsg  = "previousMsg"
	VarSenderName   = "senderName"
	VarSenderMobile = "senderMobile"
)

// Exec carries everything one handler invocation needs. Node is a clone;
// handlers may mutate its content freely without touching the shared graph.
type Exec struct {
	Flow           *model.Flow
	Node           *model.Node
	Tenant         string
	FlowID         string
	UniqueID       string
	ConversationID string
	SenderName     string
	SenderMobile   string

	// Incoming is the payload of the message that triggered this turn.
	Incoming interface{}

	// Variables is the per-dispatch bag: accumulated inputs, carried
	// variables from the calling handler and the reserved keys above.
	Variables map[string]interface{}
}

// FollowUp asks the dispatcher to execute a downstream node, carrying the
// given variables forward. Once marks a single-pass continuation that must
// not be re-steered back to a pinned AI node.
type FollowUp struct {
	Node      *model.Node
	Variables map[string]interface{}
	Once      bool
}

// Handler executes one node and returns the continuations it fired.
type Handler interface {
	Handle(ctx context.Context, exec *Exec) ([]*FollowUp, error)
}

// Lists is the slice of the list store the handlers and dispatcher consume;
// liststore.Service satisfies it, tests swap in fakes.
type Lists interface {
	Suppress(ctx context.Context, tenant, flowID string, entry *liststore.Suppression) error
	Suppressed(ctx context.Context, tenant, flowID, mobile string, at time.Time) (bool, error)
	Assign(ctx context.Context, tenant, flowID string, assignment *liststore.Assignment) error
	AssignmentFor(ctx context.Context, tenant, flowID, sender string) (*liststore.Assignment, error)
	Unassign(ctx context.Context, tenant, flowID, sender string) error
	AssignAgent(ctx context.Context, tenant, agentEmail, conversationID string) error
}

// SheetsFactory builds a spreadsheet client for a node's auth configuration.
type SheetsFactory func(authURL, authLabel string) sheets.Service

// Deps bundles the collaborators handlers may use.
type Deps struct {
	Messenger messenger.Service
	AI        ai.Service
	Fetch     *fetch.Service
	Sheets    SheetsFactory
	Lists     Lists
	States    dao.Service[string, model.ExecutionState]
	Log       *convlog.Store
	Logger    *zap.Logger
}

// Init fills in safe defaults so handlers can call collaborators without
// nil checks.
func (d *Deps) Init() {
	if d.Logger == nil {
		d.Logger = zap.NewNop()
	}
	if d.Fetch == nil {
		d.Fetch = fetch.New()
	}
	if d.Sheets == nil {
		d.Sheets = func(authURL, authLabel string) sheets.Service {
			return sheets.NewClient(authURL, authLabel)
		}
	}
}

// Registry routes node categories to their handler.
type Registry struct {
	handlers map[model.Category]Handler
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{handlers: map[model.Category]Handler{}}
}

// Register binds a category to a handler, replacing any previous binding.
func (r *Registry) Register(category model.Category, h Handler) {
	r.handlers[category] = h
}

// Lookup returns the handler for the category, or nil when unhandled.
func (r *Registry) Lookup(category model.Category) Handler {
	return r.handlers[category]
}
