package track

import (
	"context"
	"errors"
	"sync"
	"testing"

	"go.uber.org/goleak"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/otel"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSender struct {
	mu      sync.Mutex
	got     []api.EventRequest
	err     error
	gate    chan struct{} // when set, ReportEvent waits for it
	entered chan struct{}
	once    sync.Once
}

func (f *fakeSender) ReportEvent(ctx context.Context, ev api.EventRequest) error {
	if f.gate != nil {
		f.once.Do(func() { close(f.entered) })
		<-f.gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.got = append(f.got, ev)
	return f.err
}

func (f *fakeSender) events() []api.EventRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]api.EventRequest(nil), f.got...)
}

func ev(id int64) api.EventRequest {
	return api.EventRequest{ItemID: id, EventType: api.EventImpression, Source: "feed"}
}

func TestBeaconDeliversInOrderOnClose(t *testing.T) {
	s := &fakeSender{}
	tr := New(s)
	for i := int64(1); i <= 5; i++ {
		tr.Emit(ev(i))
	}
	tr.Close()

	got := s.events()
	if len(got) != 5 {
		t.Fatalf("delivered = %d, want 5", len(got))
	}
	for i, e := range got {
		if e.ItemID != int64(i+1) {
			t.Errorf("event %d has item %d", i, e.ItemID)
		}
	}
	st := tr.Stats()
	if st.Queued != 5 || st.Sent != 5 || st.Fallback != 0 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFallbackWhenQueueFull(t *testing.T) {
	s := &fakeSender{gate: make(chan struct{}), entered: make(chan struct{})}
	tr := New(s, WithQueueSize(1))

	tr.Emit(ev(1)) // picked up by drain, blocks in ReportEvent
	<-s.entered
	tr.Emit(ev(2)) // fills the queue

	done := make(chan struct{})
	go func() {
		tr.Emit(ev(3)) // queue full: direct request
		close(done)
	}()
	close(s.gate)
	<-done
	tr.Close()

	if n := len(s.events()); n != 3 {
		t.Errorf("delivered = %d, want 3", n)
	}
	if st := tr.Stats(); st.Fallback != 1 || st.Queued != 2 {
		t.Errorf("stats = %+v", st)
	}
}

func TestFallbackAfterClose(t *testing.T) {
	s := &fakeSender{}
	tr := New(s)
	tr.Close()
	tr.Close()

	tr.Emit(ev(9))
	if got := s.events(); len(got) != 1 || got[0].ItemID != 9 {
		t.Errorf("fallback delivery = %+v", got)
	}
	if tr.Stats().Fallback != 1 {
		t.Errorf("stats = %+v", tr.Stats())
	}
}

func TestFailuresAreSwallowed(t *testing.T) {
	s := &fakeSender{err: errors.New("503")}
	events := otel.NewNullLogger()
	ring := otel.NewRingBuffer(16)
	events.SetRingBuffer(ring)

	tr := New(s, WithEvents(events))
	tr.Emit(ev(1))
	tr.Close()
	tr.Emit(ev(2))
	events.Close()

	st := tr.Stats()
	if st.Failed != 2 || st.Sent != 0 {
		t.Errorf("stats = %+v", st)
	}
	if n := ring.Stats()[otel.KindTrackDrop]; n != 2 {
		t.Errorf("track.drop events = %d, want 2", n)
	}
	if len(s.events()) != 2 {
		t.Error("each event should be attempted exactly once")
	}
}

func TestMockModeNeverSends(t *testing.T) {
	s := &fakeSender{}
	tr := New(s, WithMock(true))
	tr.Emit(ev(1))
	tr.Emit(ev(2))
	tr.Close()

	if len(s.events()) != 0 {
		t.Error("mock mode should not send")
	}
	if tr.Stats().Mocked != 2 {
		t.Errorf("stats = %+v", tr.Stats())
	}
}

func TestBeaconSendAfterClose(t *testing.T) {
	b := NewBeacon(&fakeSender{}, 4, nil)
	b.Close()
	if b.Send(ev(1)) {
		t.Error("Send after Close should report false")
	}
}
