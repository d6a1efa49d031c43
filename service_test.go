package chatflow

import (
	"bytes"
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/chatflow/chatflow/model"
	"github.com/chatflow/chatflow/service/ai"
	"github.com/chatflow/chatflow/service/messenger"
)

var orderFlow = []byte(`
id: order
nodes:
  - id: start
  - id: ask-name
    type: TAKE_INPUT
    data:
      variableName: name
  - id: greet
    type: TEXT
    data:
      msgContent:
        text:
          body: "Hi {{{name}}}, what can we do for you?"
  - id: fallback
    type: TEXT
    data:
      msgContent:
        text:
          body: "Say 'order' to get started."
edges:
  - source: start
    target: ask-name
    sourceHandle: order
  - source: start
    target: fallback
    sourceHandle: "{{OTHER_MSG}}"
  - source: ask-name
    target: greet
`)

func newEngine(t *testing.T, options ...Option) (*Service, *messenger.Recorder) {
	t.Helper()
	baseURL := fmt.Sprintf("mem://localhost/flows/%d", time.Now().UnixNano())
	fs := afs.New()
	err := fs.Upload(context.Background(), baseURL+"/order.yaml", file.DefaultFileOsMode, bytes.NewReader(orderFlow))
	assert.NoError(t, err)

	recorder := &messenger.Recorder{}
	options = append([]Option{
		WithConfig(&Config{FlowBaseURL: baseURL, HistoryDelay: time.Nanosecond}),
		WithMessenger(recorder),
	}, options...)
	service, err := New(options...)
	assert.NoError(t, err)
	return service, recorder
}

func inboundText(text string) *model.Inbound {
	return &model.Inbound{
		Tenant:       "acme",
		FlowID:       "order",
		ChatID:       "conv-1",
		SenderName:   "Ann",
		SenderMobile: "555",
		Text:         text,
	}
}

func TestHandleInboundEndToEnd(t *testing.T) {
	service, recorder := newEngine(t)
	ctx := context.Background()

	// Wildcard turn.
	assert.NoError(t, service.HandleInbound(ctx, inboundText("hello")))
	sent := recorder.Sent()
	if assert.Len(t, sent, 1) {
		body := sent[0].Content["text"].(map[string]interface{})["body"]
		assert.Equal(t, "Say 'order' to get started.", body)
	}

	// Keyword starts the capture; the following turn is consumed by it.
	assert.NoError(t, service.HandleInbound(ctx, inboundText("order")))
	assert.NoError(t, service.HandleInbound(ctx, inboundText("Bob")))
	sent = recorder.Sent()
	if assert.Len(t, sent, 2) {
		body := sent[1].Content["text"].(map[string]interface{})["body"]
		assert.Equal(t, "Hi Bob, what can we do for you?", body)
	}
}

func TestHandleInboundUnknownFlow(t *testing.T) {
	service, _ := newEngine(t)
	event := inboundText("hello")
	event.FlowID = "missing"
	assert.Error(t, service.HandleInbound(context.Background(), event))
}

func TestRuntimePublishAndConsume(t *testing.T) {
	service, recorder := newEngine(t)
	runtime := service.Runtime()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	assert.NoError(t, runtime.Start(ctx))
	assert.Error(t, runtime.Start(ctx))

	assert.NoError(t, runtime.Publish(ctx, inboundText("hello")))
	assert.Eventually(t, func() bool {
		return len(recorder.Sent()) == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	runtime.Wait()
}

func TestNewWithAI(t *testing.T) {
	fake := &ai.Fake{Completions: []ai.Completion{{Success: true, Text: "ok"}}}
	service, _ := newEngine(t, WithAI(fake))
	assert.NotNil(t, service.Dispatcher())
	assert.NotNil(t, service.Flows())
	assert.Equal(t, 4, service.Config().Workers)
}

func TestConfigValidate(t *testing.T) {
	config := &Config{Workers: -1}
	assert.Error(t, config.Validate())
	config = DefaultConfig()
	assert.NoError(t, config.Validate())
}
