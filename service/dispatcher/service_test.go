package dispatcher

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/ai"
	"github.com/chatflow/chatflow/service/convlog"
	"github.com/chatflow/chatflow/service/dao/state/memory"
	"github.com/chatflow/chatflow/service/handler"
	"github.com/chatflow/chatflow/service/handler/addon"
	"github.com/chatflow/chatflow/service/handler/message"
	"github.com/chatflow/chatflow/service/handler/tool"
	"github.com/chatflow/chatflow/service/liststore"
	"github.com/chatflow/chatflow/service/messenger"
	"github.com/chatflow/chatflow/service/sheets"
)

type fixture struct {
	dispatcher *Service
	deps       *handler.Deps
	recorder   *messenger.Recorder
	lists      *liststore.Memory
}

func newFixture(t *testing.T, aiFake *ai.Fake) *fixture {
	t.Helper()
	recorder := &messenger.Recorder{}
	lists := liststore.NewMemory()
	deps := &handler.Deps{
		Messenger: recorder,
		AI:        aiFake,
		Lists:     lists,
		States:    memory.New(),
		Log:       convlog.New(fmt.Sprintf("mem://localhost/dispatch/%d", time.Now().UnixNano())),
		Sheets: func(authURL, authLabel string) sheets.Service {
			return sheets.NewMemory()
		},
	}
	deps.Init()

	registry := handler.NewRegistry()
	registry.Register(model.CategoryMessage, message.New(deps))
	registry.Register(model.CategoryTool, tool.New(deps))
	registry.Register(model.CategoryAddon, addon.New(deps, addon.WithHistoryDelay(0)))

	return &fixture{
		dispatcher: New(deps, registry),
		deps:       deps,
		recorder:   recorder,
		lists:      lists,
	}
}

func inbound(text string) *model.Inbound {
	return &model.Inbound{
		Tenant:       "acme",
		FlowID:       "flow-1",
		ChatID:       "conv-1",
		SenderName:   "Ann",
		SenderMobile: "555",
		Text:         text,
	}
}

func textNode(id, body string) *model.Node {
	return &model.Node{ID: id, Type: model.NodeTypeText, Data: model.NodeData{
		MsgContent: map[string]interface{}{
			"text": map[string]interface{}{"body": body},
		},
	}}
}

func TestTakeInputRoundTrip(t *testing.T) {
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "start"},
		{ID: "ask", Type: model.NodeTypeTakeInput, Data: model.NodeData{VariableName: "name"}},
		textNode("greet", "Hello {{{name}}}!"),
	}, Edges: []*model.Edge{
		{Source: "start", Target: "ask", SourceHandle: "hi"},
		{Source: "ask", Target: "greet"},
	}}

	f := newFixture(t, nil)
	ctx := context.Background()

	assert.NoError(t, f.dispatcher.Dispatch(ctx, flow, inbound("hi")))
	assert.Empty(t, f.recorder.Sent())

	state, err := f.deps.States.Load(ctx, "acme_555_conv-1")
	assert.NoError(t, err)
	assert.NotNil(t, state.Pending)

	// The next message is captured, pending cleared, and the node behind
	// the take-input edge runs - never take-input again.
	assert.NoError(t, f.dispatcher.Dispatch(ctx, flow, inbound("Bob")))
	sent := f.recorder.Sent()
	if assert.Len(t, sent, 1) {
		body := sent[0].Content["text"].(map[string]interface{})["body"]
		assert.Equal(t, "Hello Bob!", body)
	}
	state, err = f.deps.States.Load(ctx, "acme_555_conv-1")
	assert.NoError(t, err)
	assert.Nil(t, state.Pending)
	assert.Equal(t, "Bob", state.Inputs["name"])
}

func TestSuppressionBlocksDispatch(t *testing.T) {
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "start"},
		textNode("greet", "hello"),
	}, Edges: []*model.Edge{
		{Source: "start", Target: "greet", SourceHandle: "hi"},
	}}

	f := newFixture(t, nil)
	ctx := context.Background()
	assert.NoError(t, f.lists.Suppress(ctx, "acme", "flow-1", &liststore.Suppression{
		Mobile:    "555",
		ExpiresAt: time.Now().Add(time.Hour).UnixMilli(),
	}))

	assert.NoError(t, f.dispatcher.Dispatch(ctx, flow, inbound("hi")))
	assert.Empty(t, f.recorder.Sent())

	// An expired entry no longer blocks.
	f2 := newFixture(t, nil)
	assert.NoError(t, f2.lists.Suppress(ctx, "acme", "flow-1", &liststore.Suppression{
		Mobile:    "555",
		ExpiresAt: time.Now().Add(-time.Minute).UnixMilli(),
	}))
	assert.NoError(t, f2.dispatcher.Dispatch(ctx, flow, inbound("hi")))
	assert.Len(t, f2.recorder.Sent(), 1)
}

type failingMessenger struct {
	recorder messenger.Recorder
	failFor  string
}

func (m *failingMessenger) Send(ctx context.Context, tenant string, content map[string]interface{}, recipient string, record *convlog.Record, conversationID string) messenger.Result {
	if body, ok := content["text"].(map[string]interface{}); ok && body["body"] == m.failFor {
		return messenger.Result{Success: false, Msg: "boom"}
	}
	return m.recorder.Send(ctx, tenant, content, recipient, record, conversationID)
}

func TestFanOutIndependence(t *testing.T) {
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "start"},
		{ID: "save", Type: model.NodeTypeSaveAsVar, Data: model.NodeData{KeyToSave: "v", StringValue: "previousMsg"}},
		textNode("left", "broken"),
		textNode("right", "still here"),
	}, Edges: []*model.Edge{
		{Source: "start", Target: "save", SourceHandle: "go"},
		{Source: "save", Target: "left"},
		{Source: "save", Target: "right"},
	}}

	f := newFixture(t, nil)
	failing := &failingMessenger{failFor: "broken"}
	f.deps.Messenger = failing

	assert.NoError(t, f.dispatcher.Dispatch(context.Background(), flow, inbound("go")))
	sent := failing.recorder.Sent()
	if assert.Len(t, sent, 1) {
		body := sent[0].Content["text"].(map[string]interface{})["body"]
		assert.Equal(t, "still here", body)
	}
}

func TestAISteeringRegistersThenPins(t *testing.T) {
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "start"},
		{ID: "ai", Type: model.NodeTypeAI, Data: model.NodeData{AssignAI: true, Model: "m"}},
		textNode("greet", "hello"),
	}, Edges: []*model.Edge{
		{Source: "start", Target: "greet", SourceHandle: "hi"},
	}}

	aiFake := &ai.Fake{Completions: []ai.Completion{{Success: true, Text: "AI here"}}}
	f := newFixture(t, aiFake)
	ctx := context.Background()

	// First turn registers the handoff; no message is sent.
	assert.NoError(t, f.dispatcher.Dispatch(ctx, flow, inbound("anything")))
	assert.Empty(t, f.recorder.Sent())
	assignment, err := f.lists.AssignmentFor(ctx, "acme", "flow-1", "555")
	assert.NoError(t, err)
	if assert.NotNil(t, assignment) {
		assert.Equal(t, "ai", assignment.NodeID)
	}

	// A later keyword turn is pinned back to the AI node.
	assert.NoError(t, f.dispatcher.Dispatch(ctx, flow, inbound("hi")))
	sent := f.recorder.Sent()
	if assert.Len(t, sent, 1) {
		body := sent[0].Content["text"].(map[string]interface{})["body"]
		assert.Equal(t, "AI here", body)
	}
}

func TestDepthBound(t *testing.T) {
	// a <-> b loop via plain edges.
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "start"},
		textNode("a", "ping"),
		textNode("b", "pong"),
	}, Edges: []*model.Edge{
		{Source: "start", Target: "a", SourceHandle: "go"},
		{Source: "a", Target: "b"},
		{Source: "b", Target: "a"},
	}}

	f := newFixture(t, nil)
	done := make(chan error, 1)
	go func() {
		done <- f.dispatcher.Dispatch(context.Background(), flow, inbound("go"))
	}()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("dispatch did not terminate on cyclic flow")
	}
	assert.LessOrEqual(t, len(f.recorder.Sent()), defaultMaxDepth)
}

func TestDispatchRequiresFlowAndInbound(t *testing.T) {
	f := newFixture(t, nil)
	assert.Error(t, f.dispatcher.Dispatch(context.Background(), nil, inbound("x")))
	assert.Error(t, f.dispatcher.Dispatch(context.Background(), &model.Flow{}, nil))
	assert.True(t, errors.Is(f.dispatcher.Dispatch(context.Background(), nil, nil), errDispatchArgs))
}
