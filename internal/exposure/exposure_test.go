package exposure

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/abelbrown/minifeed/internal/api"
)

type fakeClock struct{ t time.Time }

func (c *fakeClock) now() time.Time { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

type recorder struct{ events []api.EventRequest }

func (r *recorder) Emit(ev api.EventRequest) { r.events = append(r.events, ev) }

func (r *recorder) types() []api.EventType {
	out := make([]api.EventType, len(r.events))
	for i, ev := range r.events {
		out[i] = ev.EventType
	}
	return out
}

func item(id int64, typ api.ItemType) api.FeedItem {
	return api.FeedItem{
		Type: typ,
		ID:   id,
		Tracking: api.Tracking{
			EventToken: "tok-" + string(rune('a'+id)),
			TraceID:    "trace-" + string(rune('a'+id)),
		},
	}
}

func newTracker() (*Tracker, *recorder, *fakeClock) {
	clk := &fakeClock{t: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	return New(rec, WithClock(clk.now)), rec, clk
}

func TestSessionClose(t *testing.T) {
	start := time.Unix(100, 0)
	s := Open(item(1, api.TypeContent), start)
	if got := s.Close(start.Add(1500 * time.Millisecond)); got != 1500*time.Millisecond {
		t.Errorf("Close() = %v", got)
	}
	if got := s.Close(start.Add(-time.Second)); got != 0 {
		t.Errorf("Close() before start = %v, want 0", got)
	}
}

func TestImpressionOnActivate(t *testing.T) {
	tr, rec, _ := newTracker()
	it := item(1, api.TypeContent)
	tr.Activate(it)

	want := []api.EventRequest{{
		ItemID:     1,
		EventType:  api.EventImpression,
		Source:     "feed",
		EventToken: it.Tracking.EventToken,
		TraceID:    it.Tracking.TraceID,
	}}
	if diff := cmp.Diff(want, rec.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestAdImpression(t *testing.T) {
	tr, rec, _ := newTracker()
	tr.Activate(item(2, api.TypeAd))
	if diff := cmp.Diff([]api.EventType{api.EventAdImpression}, rec.types()); diff != "" {
		t.Errorf("types mismatch:\n%s", diff)
	}
}

func TestThreshold(t *testing.T) {
	tests := []struct {
		name  string
		dwell time.Duration
		stays int
	}{
		{"799ms is noise", 799 * time.Millisecond, 0},
		{"800ms is a stay", 800 * time.Millisecond, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr, rec, clk := newTracker()
			tr.Activate(item(1, api.TypeContent))
			clk.advance(tt.dwell)
			tr.Deactivate()

			var stays []api.EventRequest
			for _, ev := range rec.events {
				if ev.EventType == api.EventStay {
					stays = append(stays, ev)
				}
			}
			if len(stays) != tt.stays {
				t.Fatalf("stay events = %d, want %d", len(stays), tt.stays)
			}
			if tt.stays == 1 && stays[0].StaytimeMs != 800 {
				t.Errorf("staytime_ms = %d, want 800", stays[0].StaytimeMs)
			}
		})
	}
}

func TestCloseBeforeOpen(t *testing.T) {
	tr, rec, clk := newTracker()
	a, b := item(1, api.TypeContent), item(2, api.TypeProduct)

	tr.Activate(a)
	clk.advance(2 * time.Second)
	tr.Activate(b)

	want := []api.EventType{api.EventImpression, api.EventStay, api.EventImpression}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Fatalf("order mismatch:\n%s", diff)
	}
	if rec.events[1].ItemID != 1 || rec.events[1].StaytimeMs != 2000 {
		t.Errorf("stay event = %+v", rec.events[1])
	}
	if rec.events[1].EventToken != a.Tracking.EventToken {
		t.Error("stay should carry the outgoing item's tracking")
	}
	if cur, ok := tr.Active(); !ok || cur.ID != 2 {
		t.Errorf("active = %v %v, want item 2", cur.ID, ok)
	}
}

func TestReactivateSameItemIsNoop(t *testing.T) {
	tr, rec, clk := newTracker()
	it := item(1, api.TypeContent)

	tr.Activate(it)
	clk.advance(500 * time.Millisecond)
	tr.Activate(it)
	clk.advance(500 * time.Millisecond)
	tr.Deactivate()

	want := []api.EventType{api.EventImpression, api.EventStay}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Fatalf("types mismatch:\n%s", diff)
	}
	if rec.events[1].StaytimeMs != 1000 {
		t.Errorf("session restarted: staytime_ms = %d", rec.events[1].StaytimeMs)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	tr, rec, clk := newTracker()
	tr.Activate(item(1, api.TypeContent))
	clk.advance(time.Second)

	tr.Stop()
	tr.Stop()
	tr.Activate(item(2, api.TypeContent))

	want := []api.EventType{api.EventImpression, api.EventStay}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Errorf("types mismatch:\n%s", diff)
	}
	if _, ok := tr.Active(); ok {
		t.Error("no session should be open after Stop")
	}
}

func TestDeactivateWithoutSession(t *testing.T) {
	tr, rec, _ := newTracker()
	tr.Deactivate()
	if len(rec.events) != 0 {
		t.Errorf("unexpected events: %+v", rec.events)
	}
}

func TestStayRecorder(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	rec := &recorder{}
	var got []time.Duration
	tr := New(rec, WithClock(clk.now), WithStayRecorder(func(_ api.FeedItem, d time.Duration) {
		got = append(got, d)
	}))

	tr.Activate(item(1, api.TypeContent))
	clk.advance(300 * time.Millisecond)
	tr.Activate(item(2, api.TypeContent))
	clk.advance(1200 * time.Millisecond)
	tr.Deactivate()

	if diff := cmp.Diff([]time.Duration{1200 * time.Millisecond}, got); diff != "" {
		t.Errorf("recorded stays mismatch:\n%s", diff)
	}
}

func TestClick(t *testing.T) {
	tr, rec, _ := newTracker()
	tr.Click(item(1, api.TypeContent))
	tr.Click(item(2, api.TypeAd))

	want := []api.EventType{api.EventClick, api.EventAdClick}
	if diff := cmp.Diff(want, rec.types()); diff != "" {
		t.Errorf("types mismatch:\n%s", diff)
	}
}

func TestCustomThreshold(t *testing.T) {
	clk := &fakeClock{t: time.Unix(0, 0)}
	rec := &recorder{}
	tr := New(rec, WithClock(clk.now), WithThreshold(2*time.Second))

	tr.Activate(item(1, api.TypeContent))
	clk.advance(1500 * time.Millisecond)
	tr.Deactivate()

	if diff := cmp.Diff([]api.EventType{api.EventImpression}, rec.types()); diff != "" {
		t.Errorf("types mismatch:\n%s", diff)
	}
}
