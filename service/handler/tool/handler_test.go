package tool

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/convlog"
	"github.com/chatflow/chatflow/service/dao/state/memory"
	"github.com/chatflow/chatflow/service/handler"
	"github.com/chatflow/chatflow/service/liststore"
	"github.com/chatflow/chatflow/service/messenger"
	"github.com/chatflow/chatflow/service/sheets"
)

type fixture struct {
	handler *Handler
	deps    *handler.Deps
	lists   *liststore.Memory
	sheets  *sheets.Memory
	log     *convlog.Store
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	lists := liststore.NewMemory()
	sheet := sheets.NewMemory()
	log := convlog.New(fmt.Sprintf("mem://localhost/tool/%d", time.Now().UnixNano()))
	deps := &handler.Deps{
		Messenger: &messenger.Recorder{},
		Lists:     lists,
		States:    memory.New(),
		Log:       log,
		Sheets: func(authURL, authLabel string) sheets.Service {
			return sheet
		},
	}
	deps.Init()
	return &fixture{handler: New(deps), deps: deps, lists: lists, sheets: sheet, log: log}
}

func newExec(flow *model.Flow, node *model.Node, incoming interface{}) *handler.Exec {
	return &handler.Exec{
		Flow:           flow,
		Node:           node.Clone(),
		Tenant:         "acme",
		FlowID:         flow.ID,
		UniqueID:       "acme_555_chat",
		ConversationID: "conv-1",
		SenderName:     "Ann",
		SenderMobile:   "555",
		Incoming:       incoming,
		Variables:      map[string]interface{}{},
	}
}

func TestTakeInputPersistsPending(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "ask", Type: model.NodeTypeTakeInput, Data: model.NodeData{VariableName: "name"}},
	}}
	followUps, err := f.handler.Handle(context.Background(), newExec(flow, flow.Node("ask"), "hi"))
	assert.NoError(t, err)
	assert.Empty(t, followUps)

	state, err := f.deps.States.Load(context.Background(), "acme_555_chat")
	assert.NoError(t, err)
	if assert.NotNil(t, state.Pending) {
		assert.Equal(t, "ask", state.Pending.ID)
	}
}

func TestSaveVariableMergesObjects(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "save", Type: model.NodeTypeSaveAsVar, Data: model.NodeData{KeyToSave: "foo", StringValue: "previousMsg.part"}},
		{ID: "next", Type: model.NodeTypeText},
	}, Edges: []*model.Edge{{Source: "save", Target: "next"}}}
	node := flow.Node("save")
	ctx := context.Background()

	followUps, err := f.handler.Handle(ctx, newExec(flow, node, map[string]interface{}{
		"part": map[string]interface{}{"a": 1},
	}))
	assert.NoError(t, err)
	assert.Len(t, followUps, 1)

	_, err = f.handler.Handle(ctx, newExec(flow, node, map[string]interface{}{
		"part": map[string]interface{}{"b": 2},
	}))
	assert.NoError(t, err)

	state, err := f.deps.States.Load(ctx, "acme_555_chat")
	assert.NoError(t, err)
	assert.Equal(t, map[string]interface{}{"a": 1, "b": 2}, state.Inputs["foo"])
}

func TestSaveVariableMissingPathStoresSentinel(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "save", Type: model.NodeTypeSaveAsVar, Data: model.NodeData{KeyToSave: "foo", StringValue: "previousMsg.no.such"}},
	}}
	_, err := f.handler.Handle(context.Background(), newExec(flow, flow.Node("save"), "plain text"))
	assert.NoError(t, err)
	state, err := f.deps.States.Load(context.Background(), "acme_555_chat")
	assert.NoError(t, err)
	assert.Equal(t, "NA", state.Inputs["foo"])
}

func TestSaveVariableWholeMessage(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "save", Type: model.NodeTypeSaveAsVar, Data: model.NodeData{KeyToSave: "raw", StringValue: "previousMsg"}},
	}}
	_, err := f.handler.Handle(context.Background(), newExec(flow, flow.Node("save"), map[string]interface{}{"x": 1}))
	assert.NoError(t, err)
	state, err := f.deps.States.Load(context.Background(), "acme_555_chat")
	assert.NoError(t, err)
	assert.Equal(t, `{"x":1}`, state.Inputs["raw"])
}

func TestDisableChat(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "mute", Type: model.NodeTypeDisableChat, Data: model.NodeData{Hours: 1, Timezone: "UTC"}},
	}}
	followUps, err := f.handler.Handle(context.Background(), newExec(flow, flow.Node("mute"), "stop"))
	assert.NoError(t, err)
	assert.Empty(t, followUps)

	blocked, err := f.lists.Suppressed(context.Background(), "acme", "flow-1", "555", time.Now())
	assert.NoError(t, err)
	assert.True(t, blocked)
	blocked, err = f.lists.Suppressed(context.Background(), "acme", "flow-1", "555", time.Now().Add(2*time.Hour))
	assert.NoError(t, err)
	assert.False(t, blocked)
}

func TestAssignAgent(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "handoff", Type: model.NodeTypeAssignAgent, Data: model.NodeData{AgentEmail: "agent@acme.io"}},
	}}
	ctx := context.Background()
	exec := newExec(flow, flow.Node("handoff"), "help")
	for i := 0; i < 2; i++ {
		followUps, err := f.handler.Handle(ctx, exec)
		assert.NoError(t, err)
		assert.Empty(t, followUps)
	}
	assert.True(t, f.lists.AgentAssigned("acme", "agent@acme.io", "conv-1"))
}

func TestSpreadsheet(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "push", Type: model.NodeTypeSpreadsheet, Data: model.NodeData{
			AuthURL:   "mem://localhost/secret/token",
			AuthLabel: "sheets",
			SheetID:   "sheet-1",
			SheetName: "Leads",
			JSONData: []interface{}{
				[]interface{}{"{{{senderName}}}", "{{{senderMobile}}}"},
			},
		}},
		{ID: "next", Type: model.NodeTypeText},
	}, Edges: []*model.Edge{{Source: "push", Target: "next"}}}

	exec := newExec(flow, flow.Node("push"), "lead")
	exec.Variables["senderName"] = "Ann"
	exec.Variables["senderMobile"] = "555"
	followUps, err := f.handler.Handle(context.Background(), exec)
	assert.NoError(t, err)
	assert.Len(t, followUps, 1)
	rows := f.sheets.Rows("sheet-1", "Leads")
	if assert.Len(t, rows, 1) {
		assert.Equal(t, []interface{}{"Ann", "555"}, rows[0])
	}
}

func TestSpreadsheetSkipsWhenIncomplete(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "push", Type: model.NodeTypeSpreadsheet, Data: model.NodeData{SheetID: "sheet-1"}},
		{ID: "next", Type: model.NodeTypeText},
	}, Edges: []*model.Edge{{Source: "push", Target: "next"}}}
	followUps, err := f.handler.Handle(context.Background(), newExec(flow, flow.Node("push"), "lead"))
	assert.NoError(t, err)
	assert.Empty(t, followUps)
	assert.Empty(t, f.sheets.Rows("sheet-1", "Leads"))
}

func TestConditionBranches(t *testing.T) {
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "cond_1", Type: model.NodeTypeCondition, Data: model.NodeData{StringValue: "world"}},
		{ID: "yes", Type: model.NodeTypeText},
		{ID: "no", Type: model.NodeTypeText},
	}, Edges: []*model.Edge{
		{Source: "cond_1", Target: "yes", SourceHandle: "cond_equal"},
		{Source: "cond_1", Target: "no", SourceHandle: "cond_notEqual"},
	}}

	testCases := []struct {
		name          string
		incoming      string
		caseSensitive bool
		expected      string
	}{
		{name: "containment ignores case", incoming: "Hello World", expected: "yes"},
		{name: "case sensitive mismatch", incoming: "Hello World", caseSensitive: true, expected: "no"},
		{name: "no containment", incoming: "Hello", expected: "no"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture(t)
			node := flow.Node("cond_1").Clone()
			node.Data.CaseSensitive = tc.caseSensitive
			followUps, err := f.handler.Handle(context.Background(), newExec(flow, node, tc.incoming))
			assert.NoError(t, err)
			if assert.Len(t, followUps, 1) {
				assert.Equal(t, tc.expected, followUps[0].Node.ID)
			}
		})
	}
}

func TestBranchPrefix(t *testing.T) {
	assert.Equal(t, "cond", branchPrefix("cond_1"))
	assert.Equal(t, "cond", branchPrefix("cond_1_2 extra"))
	assert.Equal(t, "check", branchPrefix("check price"))
}

func TestMakeRequest(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(`{"order": {"status": "shipped"}}`))
		case "/fail":
			w.WriteHeader(http.StatusBadGateway)
		}
	}))
	defer server.Close()

	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "call", Type: model.NodeTypeMakeRequest, Data: model.NodeData{Method: "GET", URL: server.URL + "/ok"}},
		{ID: "reply", Type: model.NodeTypeText, Data: model.NodeData{MsgContent: map[string]interface{}{
			"text": map[string]interface{}{"body": "Status: {{{order.status}}}"},
		}}},
	}, Edges: []*model.Edge{{Source: "call", Target: "reply"}}}

	f := newFixture(t)
	followUps, err := f.handler.Handle(context.Background(), newExec(flow, flow.Node("call"), "track"))
	assert.NoError(t, err)
	if assert.Len(t, followUps, 1) {
		body := followUps[0].Node.Data.MsgContent["text"].(map[string]interface{})["body"]
		assert.Equal(t, "Status: shipped", body)
		assert.Equal(t, map[string]interface{}{"status": "shipped"}, followUps[0].Variables["order"])
	}

	// Failure yields no continuation and no error.
	failing := flow.Node("call").Clone()
	failing.Data.URL = server.URL + "/fail"
	followUps, err = f.handler.Handle(context.Background(), newExec(flow, failing, "track"))
	assert.NoError(t, err)
	assert.Empty(t, followUps)
}

func TestMakeRequestHistoryAugment(t *testing.T) {
	var received string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		received = string(data)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	f := newFixture(t)
	ctx := context.Background()
	assert.NoError(t, f.log.Append(ctx, "conv-1", convlog.NewRecord(convlog.DirectionIn, "text", "hello")))

	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{
		{ID: "call", Type: model.NodeTypeMakeRequest, Data: model.NodeData{
			Method:    "POST",
			URL:       server.URL,
			Body:      map[string]interface{}{"q": "{{{senderName}}}"},
			MsgLength: 5,
		}},
	}}
	exec := newExec(flow, flow.Node("call"), "track")
	exec.Variables["senderName"] = "Ann"
	_, err := f.handler.Handle(ctx, exec)
	assert.NoError(t, err)
	assert.Contains(t, received, `"q":"Ann"`)
	assert.Contains(t, received, `"messages"`)
	assert.Contains(t, received, `"hello"`)
}

func TestUnsupportedToolType(t *testing.T) {
	f := newFixture(t)
	flow := &model.Flow{ID: "flow-1", Nodes: []*model.Node{{ID: "x", Type: model.NodeTypeText}}}
	_, err := f.handler.Handle(context.Background(), newExec(flow, flow.Node("x"), "hi"))
	assert.Error(t, err)
}
