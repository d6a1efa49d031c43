package flow

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/viant/afs"
	"github.com/viant/afs/file"

	"github.com/chatflow/chatflow/model"
)

var flowYAML = `
name: Greeter
nodes:
  - id: start
  - id: greet
    type: TEXT
    data:
      msgContent:
        text:
          body: "Hello!"
edges:
  - source: start
    target: greet
    sourceHandle: hi
`

func TestService_Load(t *testing.T) {
	ctx := context.Background()
	fs := afs.New()
	URL := "mem://localhost/flowdao/greeter.yaml"
	assert.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader(flowYAML)))

	service := New()
	flow, err := service.Load(ctx, "mem://localhost/flowdao/greeter")
	assert.NoError(t, err)
	assert.Equal(t, "greeter", flow.ID)
	assert.Equal(t, "Greeter", flow.Name)
	assert.Equal(t, model.NodeTypeText, flow.Node("greet").Type)
	assert.Equal(t, URL, flow.Source.URL)

	// Cached: the stored document can change without affecting loads until
	// Refresh discards the entry.
	assert.NoError(t, fs.Upload(ctx, URL, file.DefaultFileOsMode, strings.NewReader("nodes: [{id: other}]")))
	cached, err := service.Load(ctx, URL)
	assert.NoError(t, err)
	assert.Same(t, flow, cached)

	service.Refresh(URL)
	reloaded, err := service.Load(ctx, URL)
	assert.NoError(t, err)
	assert.NotNil(t, reloaded.Node("other"))
}

func TestService_LoadErrors(t *testing.T) {
	ctx := context.Background()
	service := New()

	_, err := service.Load(ctx, "mem://localhost/flowdao/absent.yaml")
	assert.Error(t, err)

	_, err = service.Decode([]byte("nodes: [{id: dup}, {id: dup}]"))
	assert.Error(t, err)
}

func TestService_Upsert(t *testing.T) {
	ctx := context.Background()
	service := New()
	flow := &model.Flow{ID: "inline", Nodes: []*model.Node{{ID: "start"}}}
	service.Upsert("mem://localhost/flowdao/inline.yaml", flow)

	loaded, err := service.Load(ctx, "mem://localhost/flowdao/inline")
	assert.NoError(t, err)
	assert.Same(t, flow, loaded)
}
