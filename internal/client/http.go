package client

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/alfredjeanlab/confengine/internal/model"
)

const apiPrefix = "/api/v1"

var _ ConfigClient = (*HTTPClient)(nil)

// HTTPClient implements ConfigClient using the HTTP/JSON REST API.
type HTTPClient struct {
	baseURL    string
	token      string
	actor      string
	httpClient *http.Client
}

// NewHTTPClient creates a new HTTP client targeting the given base URL
// (e.g. "http://localhost:8000"). When token is non-empty, an Authorization
// header is set on every request.
func NewHTTPClient(baseURL, token string) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{},
	}
}

// WithActor returns a copy of c that sends actor as X-Actor, which the
// server records on events.
func (c *HTTPClient) WithActor(actor string) *HTTPClient {
	cp := *c
	cp.actor = actor
	return &cp
}

// Close is a no-op for the HTTP client.
func (c *HTTPClient) Close() error { return nil }

// --- Configuration CRUD ---

func (c *HTTPClient) ListConfigurations(ctx context.Context, lq ListQuery) (*ListResponse, error) {
	q := url.Values{}
	if lq.Limit > 0 {
		q.Set("limit", strconv.Itoa(lq.Limit))
	}
	if lq.Offset > 0 {
		q.Set("offset", strconv.Itoa(lq.Offset))
	}
	if lq.Search != "" {
		q.Set("search", lq.Search)
	}
	if lq.Active != nil {
		q.Set("active", strconv.FormatBool(*lq.Active))
	}
	path := apiPrefix + "/configurations"
	if len(q) > 0 {
		path += "?" + q.Encode()
	}

	var resp ListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ListAllConfigurations pages through every configuration matching q.
// q.Limit and q.Offset are ignored.
func (c *HTTPClient) ListAllConfigurations(ctx context.Context, q ListQuery) ([]*model.Configuration, error) {
	var all []*model.Configuration
	for offset := 0; ; {
		q.Limit, q.Offset = model.MaxPageLimit, offset
		page, err := c.ListConfigurations(ctx, q)
		if err != nil {
			return nil, err
		}
		all = append(all, page.Items...)
		offset += len(page.Items)
		if len(page.Items) == 0 || offset >= page.Total {
			return all, nil
		}
	}
}

func (c *HTTPClient) GetConfiguration(ctx context.Context, id string) (*model.Configuration, error) {
	var cfg model.Configuration
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/configurations/"+url.PathEscape(id), nil, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ResolveConfiguration looks a record up by id, or by key when idOrKey is
// not a record id.
func (c *HTTPClient) ResolveConfiguration(ctx context.Context, idOrKey string) (*model.Configuration, error) {
	cfg, err := c.GetConfiguration(ctx, idOrKey)
	if IsNotFound(err) {
		return nil, &APIError{StatusCode: http.StatusNotFound, Code: "not_found", Message: fmt.Sprintf("no configuration with id or key %q", idOrKey)}
	}
	return cfg, err
}

func (c *HTTPClient) CreateConfiguration(ctx context.Context, req *CreateRequest) (*model.Configuration, error) {
	var cfg model.Configuration
	if err := c.doJSON(ctx, http.MethodPost, apiPrefix+"/configurations", req, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) UpdateConfiguration(ctx context.Context, id string, req *UpdateRequest) (*model.Configuration, error) {
	var cfg model.Configuration
	if err := c.doJSON(ctx, http.MethodPut, apiPrefix+"/configurations/"+url.PathEscape(id), req, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *HTTPClient) DeleteConfiguration(ctx context.Context, id string) error {
	return c.doJSON(ctx, http.MethodDelete, apiPrefix+"/configurations/"+url.PathEscape(id), nil, nil)
}

func (c *HTTPClient) ParentOptions(ctx context.Context, id string) ([]*model.Configuration, error) {
	path := apiPrefix + "/configurations/parent-options"
	if id != "" {
		path += "/by/" + url.PathEscape(id)
	}
	var resp ListResponse
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// --- Events ---

func (c *HTTPClient) GetEvents(ctx context.Context, id string) ([]*model.Event, error) {
	var resp struct {
		Events []*model.Event `json:"events"`
	}
	if err := c.doJSON(ctx, http.MethodGet, apiPrefix+"/configurations/"+url.PathEscape(id)+"/events", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Events, nil
}

// ErrStopStream may be returned by a StreamEvents callback to end the stream
// without an error.
var ErrStopStream = errors.New("stop stream")

// StreamEvents connects to the SSE endpoint and calls fn for every event
// until ctx is done, the server closes the stream, or fn returns an error.
func (c *HTTPClient) StreamEvents(ctx context.Context, sr StreamRequest, fn func(StreamEvent) error) error {
	path := apiPrefix + "/events/stream"
	if len(sr.Topics) > 0 {
		path += "?" + url.Values{"topics": {strings.Join(sr.Topics, ",")}}.Encode()
	}
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "text/event-stream")
	req.Header.Set("Cache-Control", "no-cache")
	if sr.LastEventID != "" {
		req.Header.Set("Last-Event-ID", sr.LastEventID)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil
		}
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return apiError(resp.StatusCode, body)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	var evt StreamEvent
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.HasPrefix(line, ":"):
			// comment / keepalive
		case strings.HasPrefix(line, "id:"):
			evt.ID = strings.TrimSpace(strings.TrimPrefix(line, "id:"))
		case strings.HasPrefix(line, "event:"):
			evt.Topic = strings.TrimSpace(strings.TrimPrefix(line, "event:"))
		case strings.HasPrefix(line, "data:"):
			if len(evt.Data) > 0 {
				evt.Data = append(evt.Data, '\n')
			}
			evt.Data = append(evt.Data, strings.TrimPrefix(line, "data:")...)
		case line == "" && len(evt.Data) > 0:
			if err := fn(evt); err != nil {
				if errors.Is(err, ErrStopStream) {
					return nil
				}
				return err
			}
			evt = StreamEvent{}
		}
	}
	if ctx.Err() != nil {
		return nil
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading event stream: %w", err)
	}
	return nil
}

// --- Health ---

func (c *HTTPClient) Health(ctx context.Context) (string, error) {
	var resp struct {
		Status string `json:"status"`
	}
	if err := c.doJSON(ctx, http.MethodGet, "/health", nil, &resp); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusServiceUnavailable {
			return "unhealthy", nil
		}
		return "", err
	}
	return resp.Status, nil
}

// --- internal helpers ---

// APIError represents an error response from the server.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the server.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

func apiError(status int, body []byte) *APIError {
	var errResp struct {
		Error     string `json:"error"`
		ErrorCode string `json:"error_code"`
	}
	if json.Unmarshal(body, &errResp) == nil && errResp.Error != "" {
		return &APIError{StatusCode: status, Code: errResp.ErrorCode, Message: errResp.Error}
	}
	return &APIError{StatusCode: status, Message: strings.TrimSpace(string(body))}
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if c.actor != "" {
		req.Header.Set("X-Actor", c.actor)
	}
	return req, nil
}

// doJSON performs an HTTP request with optional JSON body and decodes the JSON response.
// If result is nil, the response body is discarded (for DELETE/204 responses).
func (c *HTTPClient) doJSON(ctx context.Context, method, path string, body any, result any) error {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshaling request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := c.newRequest(ctx, method, path, bodyReader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("performing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return apiError(resp.StatusCode, respBody)
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
	}
	return nil
}
