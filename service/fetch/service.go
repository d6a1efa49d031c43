// Package fetch performs the outbound HTTP calls issued by flow nodes. A
// failed call is a value, not an error: the turn keeps going and the flow
// sees Success=false.
package fetch

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bytedance/sonic"
)

// DefaultTimeout caps a single request unless the caller's context is
// tighter.
const DefaultTimeout = 20 * time.Second

// Request describes one outbound call. Header values and the body are
// already rendered by the caller.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	Body    string            `json:"body,omitempty"`
}

// Response is the soft outcome. Body is populated only when the upstream
// returned a JSON object.
type Response struct {
	Success bool                   `json:"success"`
	Status  int                    `json:"status,omitempty"`
	Body    map[string]interface{} `json:"body,omitempty"`
	Msg     string                 `json:"msg,omitempty"`
}

// Service issues HTTP requests with a bounded per-call timeout.
type Service struct {
	client  *http.Client
	timeout time.Duration
}

// Option customizes the service.
type Option func(*Service)

// WithClient overrides the HTTP client.
func WithClient(client *http.Client) Option {
	return func(s *Service) {
		s.client = client
	}
}

// WithTimeout overrides the per-call timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) {
		if timeout > 0 {
			s.timeout = timeout
		}
	}
}

// New creates a fetch service.
func New(opts ...Option) *Service {
	ret := &Service{client: http.DefaultClient, timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(ret)
	}
	return ret
}

// Do issues the request. Transport errors, non-2xx statuses and non-object
// response bodies all come back as Success=false.
func (s *Service) Do(ctx context.Context, request *Request) Response {
	if request == nil || request.URL == "" {
		return Response{Success: false, Msg: "request url is required"}
	}
	method := strings.ToUpper(strings.TrimSpace(request.Method))
	if method == "" {
		method = http.MethodGet
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	var body io.Reader
	if request.Body != "" {
		body = bytes.NewReader([]byte(request.Body))
	}
	httpRequest, err := http.NewRequestWithContext(ctx, method, request.URL, body)
	if err != nil {
		return Response{Success: false, Msg: err.Error()}
	}
	for name, value := range request.Headers {
		httpRequest.Header.Set(name, value)
	}
	if request.Body != "" && httpRequest.Header.Get("Content-Type") == "" {
		httpRequest.Header.Set("Content-Type", "application/json")
	}

	httpResponse, err := s.client.Do(httpRequest)
	if err != nil {
		return Response{Success: false, Msg: err.Error()}
	}
	defer httpResponse.Body.Close()

	data, err := io.ReadAll(httpResponse.Body)
	if err != nil {
		return Response{Success: false, Status: httpResponse.StatusCode, Msg: err.Error()}
	}
	if httpResponse.StatusCode < 200 || httpResponse.StatusCode > 299 {
		return Response{Success: false, Status: httpResponse.StatusCode, Msg: string(data)}
	}
	parsed := map[string]interface{}{}
	if err := sonic.Unmarshal(data, &parsed); err != nil {
		return Response{Success: false, Status: httpResponse.StatusCode, Msg: "response is not a JSON object"}
	}
	return Response{Success: true, Status: httpResponse.StatusCode, Body: parsed}
}
