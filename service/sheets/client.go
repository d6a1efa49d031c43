package sheets

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/viant/scy"
)

const defaultBaseURL = "https://sheets.googleapis.com/v4/spreadsheets"

// Client implements Service against the Sheets v4 REST API. The access
// token comes from a scy secret resource (plain or encrypted), loaded once
// and cached.
type Client struct {
	scyService *scy.Service
	client     *http.Client
	baseURL    string
	secretURL  string
	secretKey  string

	mux   sync.Mutex
	token string
}

// ClientOption customizes the client.
type ClientOption func(*Client)

// WithHTTPClient overrides the HTTP client.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *Client) {
		c.client = client
	}
}

// WithBaseURL overrides the API endpoint (tests point it at httptest).
func WithBaseURL(baseURL string) ClientOption {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithToken supplies a static token, bypassing secret loading.
func WithToken(token string) ClientOption {
	return func(c *Client) {
		c.token = token
	}
}

// NewClient creates a Sheets client. secretURL locates the token secret;
// secretKey is the optional decryption key (e.g. "blowfish://default").
func NewClient(secretURL, secretKey string, opts ...ClientOption) *Client {
	ret := &Client{
		scyService: scy.New(),
		client:     &http.Client{Timeout: 30 * time.Second},
		baseURL:    defaultBaseURL,
		secretURL:  secretURL,
		secretKey:  secretKey,
	}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

var _ Service = (*Client)(nil)

// EnsureSheet adds the named tab when absent. An "already exists" rejection
// from the API counts as success.
func (c *Client) EnsureSheet(ctx context.Context, spreadsheetID, sheetName string) error {
	if spreadsheetID == "" || sheetName == "" {
		return fmt.Errorf("spreadsheet id and sheet name are required")
	}
	body := map[string]interface{}{
		"requests": []interface{}{
			map[string]interface{}{
				"addSheet": map[string]interface{}{
					"properties": map[string]interface{}{"title": sheetName},
				},
			},
		},
	}
	location := fmt.Sprintf("%s/%s:batchUpdate", c.baseURL, url.PathEscape(spreadsheetID))
	status, data, err := c.post(ctx, location, body)
	if err != nil {
		return err
	}
	if status >= 200 && status <= 299 {
		return nil
	}
	if strings.Contains(string(data), "already exists") {
		return nil
	}
	return fmt.Errorf("failed to ensure sheet %s: status %d: %s", sheetName, status, data)
}

// AppendRows appends rows below the tab's existing data.
func (c *Client) AppendRows(ctx context.Context, spreadsheetID, sheetName string, rows [][]interface{}) error {
	if len(rows) == 0 {
		return nil
	}
	body := map[string]interface{}{"values": rows}
	location := fmt.Sprintf("%s/%s/values/%s:append?valueInputOption=USER_ENTERED",
		c.baseURL, url.PathEscape(spreadsheetID), url.PathEscape(sheetName))
	status, data, err := c.post(ctx, location, body)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("failed to append to sheet %s: status %d: %s", sheetName, status, data)
	}
	return nil
}

func (c *Client) post(ctx context.Context, location string, body interface{}) (int, []byte, error) {
	token, err := c.accessToken(ctx)
	if err != nil {
		return 0, nil, err
	}
	payload, err := sonic.Marshal(body)
	if err != nil {
		return 0, nil, err
	}
	request, err := http.NewRequestWithContext(ctx, http.MethodPost, location, bytes.NewReader(payload))
	if err != nil {
		return 0, nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+token)
	response, err := c.client.Do(request)
	if err != nil {
		return 0, nil, err
	}
	defer response.Body.Close()
	data, err := io.ReadAll(response.Body)
	if err != nil {
		return response.StatusCode, nil, err
	}
	return response.StatusCode, data, nil
}

func (c *Client) accessToken(ctx context.Context) (string, error) {
	c.mux.Lock()
	defer c.mux.Unlock()
	if c.token != "" {
		return c.token, nil
	}
	if c.secretURL == "" {
		return "", fmt.Errorf("sheets auth secret is not configured")
	}
	resource := scy.NewResource(nil, c.secretURL, c.secretKey)
	secret, err := c.scyService.Load(ctx, resource)
	if err != nil {
		return "", fmt.Errorf("failed to load sheets token from %s: %w", c.secretURL, err)
	}
	c.token = strings.TrimSpace(secret.String())
	if c.token == "" {
		return "", fmt.Errorf("sheets token secret %s is empty", c.secretURL)
	}
	return c.token, nil
}
