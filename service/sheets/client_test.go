package sheets

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClientAppendRows(t *testing.T) {
	var gotPath, gotAuth, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		data, _ := io.ReadAll(r.Body)
		gotBody = string(data)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	client := NewClient("", "", WithBaseURL(server.URL), WithToken("t0k"))
	err := client.AppendRows(context.Background(), "sheet-1", "Leads", [][]interface{}{{"Ann", "555"}})
	assert.NoError(t, err)
	assert.Equal(t, "/sheet-1/values/Leads:append", gotPath)
	assert.Equal(t, "Bearer t0k", gotAuth)
	assert.Contains(t, gotBody, `"Ann"`)
}

func TestClientEnsureSheetAlreadyExists(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"error": {"message": "a sheet with the name \"Leads\" already exists"}}`))
	}))
	defer server.Close()

	client := NewClient("", "", WithBaseURL(server.URL), WithToken("t0k"))
	assert.NoError(t, client.EnsureSheet(context.Background(), "sheet-1", "Leads"))
}

func TestMemory(t *testing.T) {
	memory := NewMemory()
	ctx := context.Background()
	assert.NoError(t, memory.EnsureSheet(ctx, "s", "Tab"))
	assert.NoError(t, memory.AppendRows(ctx, "s", "Tab", [][]interface{}{{"a"}, {"b"}}))
	assert.Len(t, memory.Rows("s", "Tab"), 2)
}
