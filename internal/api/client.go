// Package api is the data access layer for the Mini Feeds HTTP API.
//
// Every endpoint answers with the envelope {code, data, msg}. code == 0 is
// success; anything else is a logical failure whose msg is the reason. The
// client turns both transport and logical failures into errors and never
// retries: callers decide what a failure means for their state.
package api

import (
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
	"time"

	"golang.org/x/time/rate"
)

// DefaultBaseURL matches the development backend of the web client.
const DefaultBaseURL = "http://localhost:8000/api/v1"

// DefaultFeedCount is the page size used when FeedParams.Count is unset.
const DefaultFeedCount = 5

// maxBodyBytes caps how much of a response body is read.
const maxBodyBytes = 10 << 20

// TransportError is a failure to get a usable envelope: network errors,
// non-2xx responses with unparsable bodies, malformed JSON.
type TransportError struct {
	Op     string
	Status int // HTTP status, 0 if no response
	Err    error
}

func (e *TransportError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: HTTP %d: %v", e.Op, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// APIError is a logical failure: the server answered with code != 0.
type APIError struct {
	Op   string
	Code int
	Msg  string
}

func (e *APIError) Error() string {
	msg := e.Msg
	if msg == "" {
		msg = "request failed"
	}
	return fmt.Sprintf("%s: code %d: %s", e.Op, e.Code, msg)
}

// IsLogical reports whether err carries an APIError.
func IsLogical(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr)
}

// envelope is the uniform response wrapper.
type envelope struct {
	Code int             `json:"code"`
	Data json.RawMessage `json:"data"`
	Msg  string          `json:"msg"`
}

// Client talks to the Mini Feeds API. Safe for concurrent use.
type Client struct {
	baseURL   string
	client    *http.Client
	limiter   *rate.Limiter
	userAgent string
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithTimeout sets the per-request timeout of the default HTTP client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.client.Timeout = d }
}

// WithRateLimit throttles outgoing requests. rate.Inf disables throttling.
func WithRateLimit(r rate.Limit, burst int) Option {
	return func(c *Client) { c.limiter = rate.NewLimiter(r, burst) }
}

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// NewClient creates a Client for the API rooted at baseURL
// (e.g. "http://localhost:8000/api/v1").
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL:   strings.TrimRight(baseURL, "/"),
		client:    &http.Client{Timeout: 15 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(20), 10),
		userAgent: "minifeed/0.3",
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// BaseURL returns the API root this client talks to.
func (c *Client) BaseURL() string { return c.baseURL }

// FeedParams are the query parameters of GET /posts. Only set fields are
// sent, except Count which is always sent.
type FeedParams struct {
	Count  int
	Cursor string
	Scene  string
	Slot   string
	Device string
	Geo    string
	AB     string
	Debug  bool
}

func (p FeedParams) values() url.Values {
	v := url.Values{}
	count := p.Count
	if count <= 0 {
		count = DefaultFeedCount
	}
	v.Set("count", strconv.Itoa(count))
	set := func(k, val string) {
		if val != "" {
			v.Set(k, val)
		}
	}
	set("cursor", p.Cursor)
	set("scene", p.Scene)
	set("slot", p.Slot)
	set("device", p.Device)
	set("geo", p.Geo)
	set("ab", p.AB)
	if p.Debug {
		v.Set("debug", "true")
	}
	return v
}

// GetFeed fetches one feed page. Pass the previous page's cursor verbatim to
// continue; an empty cursor starts from the top.
func (c *Client) GetFeed(ctx context.Context, p FeedParams) (*FeedPage, error) {
	var page FeedPage
	if err := c.do(ctx, http.MethodGet, "/posts", p.values(), nil, nil, &page); err != nil {
		return nil, err
	}
	return &page, nil
}

// GetItem fetches one raw item.
func (c *Client) GetItem(ctx context.Context, id int64) (*Item, error) {
	var it Item
	if err := c.do(ctx, http.MethodGet, "/items/"+strconv.FormatInt(id, 10), nil, nil, nil, &it); err != nil {
		return nil, err
	}
	return &it, nil
}

// GetItems fetches several raw items in one request.
func (c *Client) GetItems(ctx context.Context, ids []int64) ([]Item, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	q := url.Values{}
	q.Set("ids", strings.Join(parts, ","))
	var out []Item
	err := c.do(ctx, http.MethodGet, "/items", q, nil, nil, &out)
	return out, err
}

// ReportEvent posts one analytics event.
func (c *Client) ReportEvent(ctx context.Context, ev EventRequest) error {
	return c.do(ctx, http.MethodPost, "/events", nil, ev, nil, nil)
}

// IdempotencyKey builds the Idempotency-Key header value for a relation
// upsert: {entityType}-{entityId}-{relationType}-{unixMillis}.
func IdempotencyKey(entityType string, entityID int64, rel RelationType, at time.Time) string {
	return fmt.Sprintf("%s-%d-%s-%d", entityType, entityID, rel, at.UnixMilli())
}

// UpsertRelation creates or updates a user-entity relation. idempotencyKey
// must be unique per logical attempt.
func (c *Client) UpsertRelation(ctx context.Context, r RelationRequest, idempotencyKey string) error {
	h := http.Header{}
	if idempotencyKey != "" {
		h.Set("Idempotency-Key", idempotencyKey)
	}
	return c.do(ctx, http.MethodPost, "/relations/upsert", nil, r, h, nil)
}

// SearchParams are the query parameters of GET /search.
type SearchParams struct {
	Query    string
	Page     int
	PageSize int
}

// Search runs a full-text search over items.
func (c *Client) Search(ctx context.Context, p SearchParams) (*SearchResult, error) {
	q := url.Values{}
	q.Set("q", p.Query)
	if p.Page > 0 {
		q.Set("page", strconv.Itoa(p.Page))
	}
	if p.PageSize > 0 {
		q.Set("page_size", strconv.Itoa(p.PageSize))
	}
	var res SearchResult
	if err := c.do(ctx, http.MethodGet, "/search", q, nil, nil, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

// do performs one request and decodes the envelope's data into out (which
// may be nil). op names the request in errors.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any, header http.Header, out any) error {
	op := method + " " + path

	if err := c.limiter.Wait(ctx); err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("rate limiter wait: %w", err)}
	}

	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("marshal request: %w", err)}
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return &TransportError{Op: op, Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	for k, vs := range header {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	resp, err := c.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return &TransportError{Op: op, Err: fmt.Errorf("request cancelled: %w", ctx.Err())}
		}
		return &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(truncateBody(raw))}
		}
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode envelope: %w", err)}
	}
	if env.Code != 0 {
		return &APIError{Op: op, Code: env.Code, Msg: env.Msg}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: errors.New(truncateBody(raw))}
	}

	if out == nil || len(env.Data) == 0 || bytes.Equal(env.Data, []byte("null")) {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("decode data: %w", err)}
	}
	return nil
}

// truncateBody shortens a response body for error messages.
func truncateBody(b []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(b))
	if len(s) > limit {
		return s[:limit] + "..."
	}
	return s
}
