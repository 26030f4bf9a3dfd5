// Package mockapi is an in-memory stand-in for the Mini Feeds API. It speaks
// the same envelope and routes as the real backend so the client, the TUI
// and feedctl can run against it in tests and local development.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/logging"
)

// Prefix is the path prefix all routes live under.
const Prefix = "/api/v1"

// Failure scripts the response of a route.
type Failure struct {
	Status int    // HTTP status, 200 when zero
	Code   int    // envelope code, ignored when Raw is set
	Msg    string // envelope msg
	Raw    string // when set, written verbatim instead of an envelope
	Times  int    // how many requests fail; 0 means until cleared
}

// Request is one recorded request.
type Request struct {
	Method         string
	Path           string
	Query          string
	IdempotencyKey string
	Body           []byte
}

// Route is the "METHOD /path" key of a request, e.g. "GET /posts".
func (r Request) Route() string { return r.Method + " " + r.Path }

type relKey struct {
	entityType string
	entityID   int64
	rel        api.RelationType
}

// Server is the fake backend. Safe for concurrent use.
type Server struct {
	mu        sync.Mutex
	feed      []api.FeedItem
	raw       map[int64]api.Item
	failures  map[string]*Failure
	requests  []Request
	events    []api.EventRequest
	relations map[relKey]api.RelationStatus
	seenKeys  map[string]bool
	upserts   int
	hook      func(*http.Request)
	now       func() time.Time
	metrics   Metrics

	mux *http.ServeMux
}

// Metrics is the canned data the /metrics routes serve.
type Metrics struct {
	Overview       api.MetricsOverview
	CTR            []api.ContentTypeCTR
	DAU            []api.DailyActiveUsers
	AdRevenue      []api.AdRevenue
	ProductRevenue []api.ProductRevenue
	Retention      []api.UserRetention
	ActiveUsers    []api.ActiveUsers
	Staytime       []api.UserStaytime
	Interaction    []api.UserInteractionRate
	Distribution   []api.ContentDistribution
}

// Option configures a Server.
type Option func(*Server)

// WithFeed replaces the generated feed.
func WithFeed(items []api.FeedItem) Option {
	return func(s *Server) { s.feed = items }
}

// WithClock sets the time reported as server_time.
func WithClock(now func() time.Time) Option {
	return func(s *Server) { s.now = now }
}

// WithMetrics replaces the canned metrics.
func WithMetrics(m Metrics) Option {
	return func(s *Server) { s.metrics = m }
}

// New creates a Server. Without WithFeed it serves SampleFeed(20).
func New(opts ...Option) *Server {
	s := &Server{
		failures:  make(map[string]*Failure),
		relations: make(map[relKey]api.RelationStatus),
		seenKeys:  make(map[string]bool),
		now:       time.Now,
		metrics:   SampleMetrics(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.feed == nil {
		s.feed = SampleFeed(20)
	}
	s.raw = make(map[int64]api.Item, len(s.feed))
	for _, it := range s.feed {
		s.raw[it.ID] = rawItem(it)
	}

	s.mux = http.NewServeMux()
	s.route("GET /posts", s.handleFeed)
	s.route("GET /items/{id}", s.handleItem)
	s.route("GET /items", s.handleItems)
	s.route("POST /events", s.handleEvent)
	s.route("POST /relations/upsert", s.handleUpsert)
	s.route("GET /search", s.handleSearch)
	s.route("GET /metrics/overview", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.Overview }))
	s.route("GET /metrics/ctr", s.handleMetric(filterCTR))
	s.route("GET /metrics/dau", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.DAU }))
	s.route("GET /metrics/ad-revenue", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.AdRevenue }))
	s.route("GET /metrics/product-revenue", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.ProductRevenue }))
	s.route("GET /metrics/retention", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.Retention }))
	s.route("GET /metrics/active-users", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.ActiveUsers }))
	s.route("GET /metrics/staytime", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.Staytime }))
	s.route("GET /metrics/interaction", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.Interaction }))
	s.route("GET /metrics/distribution", s.handleMetric(func(m Metrics, _ *http.Request) any { return m.Distribution }))
	s.route("POST /metrics/refresh", s.handleMetric(func(Metrics, *http.Request) any { return map[string]bool{"success": true} }))
	s.mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, http.StatusNotFound, 404, "not found", nil)
	})
	return s
}

// route registers h under Prefix. key is "METHOD /path" and also names the
// route for failure injection.
func (s *Server) route(key string, h http.HandlerFunc) {
	method, path, _ := strings.Cut(key, " ")
	failKey := method + " " + path
	if i := strings.Index(path, "/{"); i >= 0 {
		failKey = method + " " + path[:i] + "/"
	}
	s.mux.HandleFunc(method+" "+Prefix+path, func(w http.ResponseWriter, r *http.Request) {
		s.record(r)
		if hook := s.hookFn(); hook != nil {
			hook(r)
		}
		if f, ok := s.takeFailure(failKey); ok {
			writeFailure(w, f)
			return
		}
		h(w, r)
	})
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.mux.ServeHTTP(w, r)
}

// Fail scripts failures for route ("GET /posts", "POST /relations/upsert",
// "GET /items/" for single items).
func (s *Server) Fail(route string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[route] = &f
}

// ClearFailures removes every scripted failure.
func (s *Server) ClearFailures() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = make(map[string]*Failure)
}

// SetHook installs fn to run before every request is handled, outside the
// server lock. Tests use it to hold requests in flight.
func (s *Server) SetHook(fn func(*http.Request)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.hook = fn
}

func (s *Server) hookFn() func(*http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hook
}

func (s *Server) takeFailure(route string) (Failure, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	f, ok := s.failures[route]
	if !ok {
		return Failure{}, false
	}
	if f.Times > 0 {
		f.Times--
		if f.Times == 0 {
			delete(s.failures, route)
		}
	}
	return *f, true
}

func (s *Server) record(r *http.Request) {
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(io.LimitReader(r.Body, 1<<20))
		r.Body = io.NopCloser(strings.NewReader(string(body)))
	}
	req := Request{
		Method:         r.Method,
		Path:           strings.TrimPrefix(r.URL.Path, Prefix),
		Query:          r.URL.RawQuery,
		IdempotencyKey: r.Header.Get("Idempotency-Key"),
		Body:           body,
	}
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()
	logging.Debug("mockapi: request", "route", req.Route(), "query", req.Query)
}

// Requests returns a copy of every recorded request.
func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

// Count returns how many recorded requests hit route.
func (s *Server) Count(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, r := range s.requests {
		if r.Route() == route {
			n++
		}
	}
	return n
}

// Events returns the analytics events accepted so far.
func (s *Server) Events() []api.EventRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]api.EventRequest(nil), s.events...)
}

// Relation returns the stored status of a relation, "" if never set.
func (s *Server) Relation(entityType string, entityID int64, rel api.RelationType) api.RelationStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.relations[relKey{entityType, entityID, rel}]
}

// Upserts returns how many relation upserts were applied. Replayed
// idempotency keys are not counted.
func (s *Server) Upserts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upserts
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	count := api.DefaultFeedCount
	if v := q.Get("count"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 50 {
			writeEnvelope(w, http.StatusUnprocessableEntity, 422, "invalid count", nil)
			return
		}
		count = n
	}
	offset := 0
	if c := q.Get("cursor"); c != "" {
		n, err := parseCursor(c)
		if err != nil {
			writeEnvelope(w, http.StatusBadRequest, 400, err.Error(), nil)
			return
		}
		offset = n
	}

	s.mu.Lock()
	total := len(s.feed)
	start := min(offset, total)
	end := min(start+count, total)
	items := make([]api.FeedItem, 0, end-start)
	for i, it := range s.feed[start:end] {
		it.Position = start + i
		items = append(items, it)
	}
	now := s.now()
	s.mu.Unlock()

	var cursor *string
	if end < total {
		c := formatCursor(end)
		cursor = &c
	}
	writeEnvelope(w, http.StatusOK, 0, "success", struct {
		ServerTime string         `json:"server_time"`
		Cursor     *string        `json:"cursor"`
		Items      []api.FeedItem `json:"items"`
	}{now.UTC().Format(time.RFC3339), cursor, items})
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeEnvelope(w, http.StatusBadRequest, 400, "invalid item id", nil)
		return
	}
	s.mu.Lock()
	it, ok := s.raw[id]
	s.mu.Unlock()
	if !ok {
		writeEnvelope(w, http.StatusNotFound, 404, "item not found", nil)
		return
	}
	writeEnvelope(w, http.StatusOK, 0, "success", it)
}

func (s *Server) handleItems(w http.ResponseWriter, r *http.Request) {
	var out []api.Item
	s.mu.Lock()
	for _, part := range strings.Split(r.URL.Query().Get("ids"), ",") {
		id, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			continue
		}
		if it, ok := s.raw[id]; ok {
			out = append(out, it)
		}
	}
	s.mu.Unlock()
	if out == nil {
		out = []api.Item{}
	}
	writeEnvelope(w, http.StatusOK, 0, "success", out)
}

func (s *Server) handleEvent(w http.ResponseWriter, r *http.Request) {
	var ev api.EventRequest
	if err := json.NewDecoder(r.Body).Decode(&ev); err != nil {
		writeEnvelope(w, http.StatusBadRequest, 400, "invalid body", nil)
		return
	}
	switch ev.EventType {
	case api.EventImpression, api.EventClick, api.EventStay, api.EventGMV, api.EventAdImpression, api.EventAdClick:
	default:
		writeEnvelope(w, http.StatusUnprocessableEntity, 422, "unknown event_type", nil)
		return
	}
	s.mu.Lock()
	s.events = append(s.events, ev)
	s.mu.Unlock()
	writeEnvelope(w, http.StatusOK, 0, "success", nil)
}

func (s *Server) handleUpsert(w http.ResponseWriter, r *http.Request) {
	var req api.RelationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeEnvelope(w, http.StatusBadRequest, 400, "invalid body", nil)
		return
	}
	if req.Status != api.StatusActive && req.Status != api.StatusInactive {
		writeEnvelope(w, http.StatusUnprocessableEntity, 422, "invalid status", nil)
		return
	}
	key := r.Header.Get("Idempotency-Key")

	s.mu.Lock()
	defer s.mu.Unlock()
	if key != "" && s.seenKeys[key] {
		writeEnvelope(w, http.StatusOK, 0, "success", nil)
		return
	}
	if key != "" {
		s.seenKeys[key] = true
	}
	s.relations[relKey{req.EntityType, req.EntityID, req.RelationType}] = req.Status
	s.upserts++
	writeEnvelope(w, http.StatusOK, 0, "success", nil)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	needle := strings.ToLower(strings.TrimSpace(q.Get("q")))
	if needle == "" {
		writeEnvelope(w, http.StatusUnprocessableEntity, 422, "q is required", nil)
		return
	}
	page := atoiDefault(q.Get("page"), 1)
	size := atoiDefault(q.Get("page_size"), 20)

	s.mu.Lock()
	var hits []api.FeedItem
	for _, it := range s.feed {
		if strings.Contains(strings.ToLower(it.Title()), needle) {
			hits = append(hits, it)
		}
	}
	s.mu.Unlock()

	start := min((page-1)*size, len(hits))
	end := min(start+size, len(hits))
	items := hits[start:end]
	if items == nil {
		items = []api.FeedItem{}
	}
	writeEnvelope(w, http.StatusOK, 0, "success", api.SearchResult{
		Items: items, Total: len(hits), Page: page, PageSize: size,
	})
}

func (s *Server) handleMetric(pick func(Metrics, *http.Request) any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		m := s.metrics
		s.mu.Unlock()
		writeEnvelope(w, http.StatusOK, 0, "success", pick(m, r))
	}
}

func filterCTR(m Metrics, r *http.Request) any {
	kind := r.URL.Query().Get("kind")
	if kind == "" {
		return m.CTR
	}
	out := []api.ContentTypeCTR{}
	for _, row := range m.CTR {
		if row.Kind == kind {
			out = append(out, row)
		}
	}
	return out
}

// ListenAndServe serves s on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 5 * time.Second,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("mockapi: listening", "addr", addr, "prefix", Prefix)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("mockapi: serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func parseCursor(c string) (int, error) {
	if !strings.HasPrefix(c, "c") {
		return 0, fmt.Errorf("invalid cursor %q", c)
	}
	n, err := strconv.Atoi(c[1:])
	if err != nil || n < 0 {
		return 0, fmt.Errorf("invalid cursor %q", c)
	}
	return n, nil
}

func formatCursor(offset int) string {
	return "c" + strconv.Itoa(offset)
}

func atoiDefault(s string, def int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func writeEnvelope(w http.ResponseWriter, status, code int, msg string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(struct {
		Code int    `json:"code"`
		Data any    `json:"data"`
		Msg  string `json:"msg"`
	}{code, data, msg})
}

func writeFailure(w http.ResponseWriter, f Failure) {
	status := f.Status
	if status == 0 {
		status = http.StatusOK
	}
	if f.Raw != "" {
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(status)
		io.WriteString(w, f.Raw)
		return
	}
	writeEnvelope(w, status, f.Code, f.Msg, nil)
}
