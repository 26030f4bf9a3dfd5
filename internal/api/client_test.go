package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"golang.org/x/time/rate"
)

func newTestClient(t *testing.T, h http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(srv.URL, WithRateLimit(rate.Inf, 1))
}

func writeEnvelope(w http.ResponseWriter, code int, data any, msg string) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{"code": code, "data": data, "msg": msg})
}

func TestGetFeedEncodesParams(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != "/posts" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		q := r.URL.Query()
		if q.Get("count") != "8" {
			t.Errorf("count = %q, want 8", q.Get("count"))
		}
		if q.Get("cursor") != "c1" {
			t.Errorf("cursor = %q, want c1", q.Get("cursor"))
		}
		if q.Get("scene") != "home" {
			t.Errorf("scene = %q, want home", q.Get("scene"))
		}
		if q.Has("slot") || q.Has("geo") || q.Has("debug") {
			t.Errorf("unset params should be omitted: %v", q)
		}
		writeEnvelope(w, 0, map[string]any{
			"server_time": "2024-05-01T00:00:00Z",
			"cursor":      "c2",
			"items": []map[string]any{
				{"type": "content", "id": 1, "score": 0.9, "position": 0,
					"tracking": map[string]string{"event_token": "e1", "trace_id": "t1"},
					"content":  map[string]any{"title": "Hello", "created_at": "2024-05-01T10:00:00Z"}},
			},
		}, "")
	})

	page, err := c.GetFeed(context.Background(), FeedParams{Count: 8, Cursor: "c1", Scene: "home"})
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if page.Cursor != "c2" {
		t.Errorf("cursor = %q, want c2", page.Cursor)
	}
	if len(page.Items) != 1 || page.Items[0].Title() != "Hello" {
		t.Fatalf("unexpected items: %+v", page.Items)
	}
	if page.Items[0].Tracking.EventToken != "e1" {
		t.Errorf("event token = %q, want e1", page.Items[0].Tracking.EventToken)
	}
}

func TestGetFeedDefaultsCount(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("count"); got != "5" {
			t.Errorf("count = %q, want 5", got)
		}
		writeEnvelope(w, 0, map[string]any{"cursor": nil, "items": nil}, "")
	})

	page, err := c.GetFeed(context.Background(), FeedParams{})
	if err != nil {
		t.Fatalf("GetFeed() error = %v", err)
	}
	if page.Cursor != "" || len(page.Items) != 0 {
		t.Errorf("null cursor and items should decode empty, got %+v", page)
	}
}

func TestLogicalFailureIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 4001, nil, "invalid cursor")
	})

	_, err := c.GetFeed(context.Background(), FeedParams{Cursor: "bogus"})
	if err == nil {
		t.Fatal("expected error")
	}
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %T", err)
	}
	if apiErr.Code != 4001 || apiErr.Msg != "invalid cursor" {
		t.Errorf("unexpected APIError: %+v", apiErr)
	}
	if !IsLogical(err) {
		t.Error("IsLogical should be true")
	}
}

func TestNon2xxUnparsableIsTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad gateway", http.StatusBadGateway)
	})

	err := c.ReportEvent(context.Background(), EventRequest{ItemID: 1, EventType: EventClick})
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TransportError, got %T (%v)", err, err)
	}
	if tErr.Status != http.StatusBadGateway {
		t.Errorf("status = %d, want 502", tErr.Status)
	}
	if IsLogical(err) {
		t.Error("transport failure should not be logical")
	}
}

func TestNon2xxWithEnvelopeIsAPIError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		writeEnvelope(w, 404, nil, "item not found")
	})

	_, err := c.GetItem(context.Background(), 9)
	if !IsLogical(err) {
		t.Fatalf("expected logical error, got %v", err)
	}
	if !strings.Contains(err.Error(), "item not found") {
		t.Errorf("error should carry msg, got %v", err)
	}
}

func TestUpsertRelationSendsIdempotencyKey(t *testing.T) {
	var gotKey string
	var gotBody RelationRequest
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/relations/upsert" {
			t.Errorf("path = %s", r.URL.Path)
		}
		gotKey = r.Header.Get("Idempotency-Key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		writeEnvelope(w, 0, map[string]bool{"success": true}, "")
	})

	at := time.UnixMilli(1700000000123)
	key := IdempotencyKey("item", 42, RelationLike, at)
	err := c.UpsertRelation(context.Background(), RelationRequest{
		EntityType: "item", EntityID: 42, RelationType: RelationLike, Status: StatusOf(true),
	}, key)
	if err != nil {
		t.Fatalf("UpsertRelation() error = %v", err)
	}
	if gotKey != "item-42-like-1700000000123" {
		t.Errorf("Idempotency-Key = %q", gotKey)
	}
	if gotBody.Status != StatusActive || gotBody.EntityID != 42 {
		t.Errorf("unexpected body: %+v", gotBody)
	}
}

func TestReportEventBody(t *testing.T) {
	var raw map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		writeEnvelope(w, 0, nil, "")
	})

	err := c.ReportEvent(context.Background(), EventRequest{
		ItemID: 3, EventType: EventStay, StaytimeMs: 800, Source: "feed",
		EventToken: "tok", TraceID: "tr",
	})
	if err != nil {
		t.Fatalf("ReportEvent() error = %v", err)
	}
	if raw["event_type"] != "stay" || raw["staytime_ms"] != float64(800) {
		t.Errorf("unexpected body: %v", raw)
	}
	if _, ok := raw["gmv_amount"]; ok {
		t.Error("zero gmv_amount should be omitted")
	}
}

func TestGetItemsJoinsIDs(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("ids"); got != "1,2,3" {
			t.Errorf("ids = %q", got)
		}
		writeEnvelope(w, 0, []map[string]any{{"id": 1, "kind": "content", "title": "a"}}, "")
	})

	items, err := c.GetItems(context.Background(), []int64{1, 2, 3})
	if err != nil {
		t.Fatalf("GetItems() error = %v", err)
	}
	if len(items) != 1 || items[0].Title != "a" {
		t.Errorf("unexpected items: %+v", items)
	}
}

func TestSearch(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("q") != "go" || q.Get("page") != "2" || q.Get("page_size") != "10" {
			t.Errorf("unexpected query: %v", q)
		}
		writeEnvelope(w, 0, map[string]any{"items": []any{}, "total": 12, "page": 2, "page_size": 10}, "")
	})

	res, err := c.Search(context.Background(), SearchParams{Query: "go", Page: 2, PageSize: 10})
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if res.Total != 12 || res.Page != 2 {
		t.Errorf("unexpected result: %+v", res)
	}
}

func TestCancelledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeEnvelope(w, 0, nil, "")
	})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := c.ReportEvent(ctx, EventRequest{ItemID: 1, EventType: EventClick})
	var tErr *TransportError
	if !errors.As(err, &tErr) {
		t.Fatalf("expected *TransportError, got %v", err)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error should wrap context.Canceled, got %v", err)
	}
}

func TestMetricsQueries(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		switch r.URL.Path {
		case "/metrics/ctr":
			if q.Get("start_date") != "2024-01-01" || q.Get("kind") != "ad" {
				t.Errorf("ctr query: %v", q)
			}
			writeEnvelope(w, 0, []map[string]any{{"day": "2024-01-01", "kind": "ad", "impressions": 10, "clicks": 1, "ctr": 0.1}}, "")
		case "/metrics/retention":
			if q.Get("days_since") != "1" || q.Get("limit") != "30" {
				t.Errorf("retention query: %v", q)
			}
			writeEnvelope(w, 0, []any{}, "")
		case "/metrics/active-users":
			if q.Get("period") != "day" {
				t.Errorf("active-users query: %v", q)
			}
			writeEnvelope(w, 0, []any{}, "")
		default:
			t.Errorf("unexpected path %s", r.URL.Path)
		}
	})
	ctx := context.Background()

	rows, err := c.MetricsCTR(ctx, DateRange{Start: "2024-01-01"}, "ad")
	if err != nil || len(rows) != 1 || rows[0].CTR != 0.1 {
		t.Errorf("MetricsCTR() = %+v, %v", rows, err)
	}
	if _, err := c.MetricsRetention(ctx, 0, 0); err != nil {
		t.Errorf("MetricsRetention() error = %v", err)
	}
	if _, err := c.MetricsActiveUsers(ctx, "", DateRange{}); err != nil {
		t.Errorf("MetricsActiveUsers() error = %v", err)
	}
}
