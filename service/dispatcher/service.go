// Package dispatcher drives one inbound message through the flow graph: it
// resolves the entry nodes, replays pending input capture, applies
// suppression and AI-steering, and executes nodes from an explicit work
// list until no further edge fires.
package dispatcher

import (
	"context"
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/chatflow/chatflow/internal/clock"
	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/dao"
	"github.com/chatflow/chatflow/service/entry"
	"github.com/chatflow/chatflow/service/handler"
	"github.com/chatflow/chatflow/service/liststore"
	"github.com/chatflow/chatflow/service/tracing"
)

// defaultMaxDepth bounds a single turn's continuation chain. Flows deeper
// than this are almost certainly cyclic.
const defaultMaxDepth = 100

var errDispatchArgs = errors.New("flow and inbound are required")

// Service is the dispatcher.
type Service struct {
	deps     *handler.Deps
	registry *handler.Registry
	maxDepth int

	mux   sync.Mutex
	locks map[string]*sync.Mutex
}

// Option customizes the dispatcher.
type Option func(*Service)

// WithMaxDepth overrides the continuation-chain bound.
func WithMaxDepth(depth int) Option {
	return func(s *Service) {
		if depth > 0 {
			s.maxDepth = depth
		}
	}
}

// New creates a dispatcher over the given handler registry.
func New(deps *handler.Deps, registry *handler.Registry, opts ...Option) *Service {
	ret := &Service{
		deps:     deps,
		registry: registry,
		maxDepth: defaultMaxDepth,
		locks:    map[string]*sync.Mutex{},
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// workItem is one queued node execution.
type workItem struct {
	node      *model.Node
	variables map[string]interface{}
	once      bool
	depth     int
}

// Dispatch runs one inbound message to completion. Turns for the same
// conversation are serialized by a per-uniqueId mutex; independent
// conversations proceed concurrently.
func (s *Service) Dispatch(ctx context.Context, flow *model.Flow, inbound *model.Inbound) error {
	if flow == nil || inbound == nil {
		return errDispatchArgs
	}
	uniqueID := inbound.UniqueID()
	lock := s.lockFor(uniqueID)
	lock.Lock()
	defer lock.Unlock()

	ctx, span := tracing.StartSpan(ctx, "dispatcher.Dispatch", flow.ID)
	defer tracing.EndSpan(span, nil)

	state := s.loadState(ctx, uniqueID)
	entries := entry.Resolve(flow, inbound.Text, state)
	if len(entries) == 0 {
		s.deps.Logger.Debug("no entry node matched",
			zap.String("flow", flow.ID),
			zap.String("uniqueId", uniqueID))
		return nil
	}

	queue := make([]*workItem, 0, len(entries))
	for _, node := range entries {
		queue = append(queue, &workItem{node: node})
	}
	for len(queue) > 0 {
		item := queue[0]
		queue = queue[1:]
		if item.depth >= s.maxDepth {
			s.deps.Logger.Warn("continuation chain exceeds depth bound",
				zap.String("flow", flow.ID),
				zap.String("node", item.node.ID),
				zap.Int("depth", item.depth))
			continue
		}
		followUps := s.execute(ctx, flow, inbound, item)
		for _, followUp := range followUps {
			if followUp == nil || followUp.Node == nil {
				continue
			}
			queue = append(queue, &workItem{
				node:      followUp.Node,
				variables: followUp.Variables,
				once:      followUp.Once,
				depth:     item.depth + 1,
			})
		}
	}
	return nil
}

// execute runs one work item through variable resolution, suppression, AI
// steering and its category handler. Handler failures are logged and
// isolated so sibling branches still run.
func (s *Service) execute(ctx context.Context, flow *model.Flow, inbound *model.Inbound, item *workItem) []*handler.FollowUp {
	ctx, span := tracing.StartSpan(ctx, "dispatcher.execute", flow.ID)
	span.WithAttributes(map[string]string{
		"node.id":   item.node.ID,
		"node.type": string(item.node.Type),
	})
	defer tracing.EndSpan(span, nil)

	uniqueID := inbound.UniqueID()
	variables, node := s.resolveVariables(ctx, flow, uniqueID, item.node, inbound.Value(), item.variables)
	if node == nil {
		return nil
	}
	variables[handler.VarSenderName] = inbound.SenderName
	variables[handler.VarSenderMobile] = inbound.SenderMobile

	suppressed, err := s.deps.Lists.Suppressed(ctx, inbound.Tenant, flow.ID, inbound.SenderMobile, clock.Now())
	if err != nil {
		s.deps.Logger.Error("suppression lookup failed",
			zap.String("flow", flow.ID),
			zap.Error(err))
	}
	if suppressed {
		return nil
	}

	node, proceed := s.applyAISteering(ctx, flow, inbound, node, item.once)
	if !proceed || node == nil {
		return nil
	}

	h := s.registry.Lookup(node.Category())
	if h == nil {
		s.deps.Logger.Debug("no handler for node",
			zap.String("node", node.ID),
			zap.String("type", string(node.Type)))
		return nil
	}
	exec := &handler.Exec{
		Flow:           flow,
		Node:           node.Clone(),
		Tenant:         inbound.Tenant,
		FlowID:         flow.ID,
		UniqueID:       uniqueID,
		ConversationID: inbound.ChatID,
		SenderName:     inbound.SenderName,
		SenderMobile:   inbound.SenderMobile,
		Incoming:       inbound.Value(),
		Variables:      variables,
	}
	followUps, err := h.Handle(ctx, exec)
	if err != nil {
		s.deps.Logger.Error("node execution failed",
			zap.String("flow", flow.ID),
			zap.String("node", node.ID),
			zap.String("type", string(node.Type)),
			zap.Error(err))
		return nil
	}
	return followUps
}

// resolveVariables loads the conversation state and builds the per-dispatch
// variable bag. A pending take-input node consumes the incoming value: the
// capture is persisted and pending cleared in one update, and the effective
// node becomes the target of the pending node's outgoing edge.
func (s *Service) resolveVariables(ctx context.Context, flow *model.Flow, uniqueID string, candidate *model.Node, incoming interface{}, carried map[string]interface{}) (map[string]interface{}, *model.Node) {
	variables := map[string]interface{}{}
	effective := candidate

	state := s.loadState(ctx, uniqueID)
	if state != nil {
		if pending := state.Pending; pending != nil {
			state.SetInput(pending.Data.VariableName, incoming)
			state.Pending = nil
			state.UpdatedAt = clock.Now()
			if err := s.deps.States.Save(ctx, state); err != nil {
				s.deps.Logger.Error("failed to consume pending input",
					zap.String("uniqueId", uniqueID),
					zap.Error(err))
			}
			effective = nil
			for _, edge := range flow.AllEdgesFrom(pending.ID) {
				if target := flow.Node(edge.Target); target != nil {
					effective = target
					break
				}
			}
		}
		for k, v := range state.Inputs {
			variables[k] = v
		}
	}
	for k, v := range carried {
		variables[k] = v
	}
	variables[handler.VarPreviousMsg] = incoming
	return variables, effective
}

// applyAISteering registers a first-time AI handoff (ending the turn) or
// substitutes the pinned AI node for senders already handed off. Once-pass
// continuations skip substitution so function dispatch does not bounce back
// into the addon node.
func (s *Service) applyAISteering(ctx context.Context, flow *model.Flow, inbound *model.Inbound, node *model.Node, once bool) (*model.Node, bool) {
	assignment, err := s.deps.Lists.AssignmentFor(ctx, inbound.Tenant, flow.ID, inbound.SenderMobile)
	if err != nil {
		s.deps.Logger.Error("assignment lookup failed",
			zap.String("flow", flow.ID),
			zap.Error(err))
		return node, true
	}
	if node.Data.AssignAI && assignment == nil {
		err := s.deps.Lists.Assign(ctx, inbound.Tenant, flow.ID, &liststore.Assignment{
			Sender:     inbound.SenderMobile,
			SenderName: inbound.SenderName,
			NodeID:     node.ID,
		})
		if err != nil {
			s.deps.Logger.Error("failed to register AI handoff",
				zap.String("flow", flow.ID),
				zap.Error(err))
		}
		return nil, false
	}
	if assignment != nil && !node.Data.AssignAI && !once {
		if pinned := flow.Node(assignment.NodeID); pinned != nil {
			return pinned, true
		}
	}
	return node, true
}

func (s *Service) loadState(ctx context.Context, uniqueID string) *model.ExecutionState {
	state, err := s.deps.States.Load(ctx, uniqueID)
	if err != nil {
		if !errors.Is(err, dao.ErrNotFound) {
			s.deps.Logger.Error("failed to load state",
				zap.String("uniqueId", uniqueID),
				zap.Error(err))
		}
		return nil
	}
	return state
}

// lockFor returns the conversation's mutex, creating it on first use.
// Entries are never evicted; the map grows with distinct conversations.
func (s *Service) lockFor(uniqueID string) *sync.Mutex {
	s.mux.Lock()
	defer s.mux.Unlock()
	lock, ok := s.locks[uniqueID]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[uniqueID] = lock
	}
	return lock
}
