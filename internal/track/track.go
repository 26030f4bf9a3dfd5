// Package track delivers analytics events best-effort.
//
// The preferred path is a Beacon: events go into a buffered queue drained by
// one goroutine, so emitting never waits on the network. When the queue is
// full or already closed (the view is being torn down) the Tracker falls
// back to a direct request. Failures on either path are logged and counted,
// never returned and never retried.
package track

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/logging"
	"github.com/abelbrown/minifeed/internal/otel"
)

const (
	// queueSize is the beacon capacity.
	queueSize = 256

	// sendTimeout bounds one delivery attempt.
	sendTimeout = 5 * time.Second
)

// Sender posts one event. *api.Client satisfies it.
type Sender interface {
	ReportEvent(ctx context.Context, ev api.EventRequest) error
}

// Stats counts delivery outcomes.
type Stats struct {
	Queued   uint64
	Sent     uint64
	Fallback uint64
	Failed   uint64
	Mocked   uint64 // logged only, never sent
}

// Beacon queues events for a background sender.
type Beacon struct {
	send      Sender
	ch        chan api.EventRequest
	timeout   time.Duration
	onResult  func(ev api.EventRequest, err error)
	closed    atomic.Bool
	done      chan struct{}
	closeOnce sync.Once
}

// NewBeacon starts the drain goroutine. size <= 0 uses the default capacity.
// onResult, if set, is called from the drain goroutine after every attempt.
func NewBeacon(send Sender, size int, onResult func(ev api.EventRequest, err error)) *Beacon {
	if size <= 0 {
		size = queueSize
	}
	b := &Beacon{
		send:     send,
		ch:       make(chan api.EventRequest, size),
		timeout:  sendTimeout,
		onResult: onResult,
		done:     make(chan struct{}),
	}
	go b.drain()
	return b
}

func (b *Beacon) drain() {
	defer close(b.done)
	for ev := range b.ch {
		ctx, cancel := context.WithTimeout(context.Background(), b.timeout)
		err := b.send.ReportEvent(ctx, ev)
		cancel()
		if b.onResult != nil {
			b.onResult(ev, err)
		}
	}
}

// Send enqueues ev without blocking. It reports false when the queue is full
// or the beacon is closed.
func (b *Beacon) Send(ev api.EventRequest) (ok bool) {
	defer func() {
		if recover() != nil {
			ok = false
		}
	}()
	if b.closed.Load() {
		return false
	}
	select {
	case b.ch <- ev:
		return true
	default:
		return false
	}
}

// Close delivers what is queued and stops the drain goroutine. Idempotent.
func (b *Beacon) Close() {
	b.closeOnce.Do(func() {
		b.closed.Store(true)
		close(b.ch)
		<-b.done
	})
}

// Tracker is the analytics entry point used by the exposure tracker and
// the UI. It implements exposure.Emitter.
type Tracker struct {
	send      Sender
	beacon    *Beacon
	queueSize int
	mock      bool
	events    *otel.Logger

	queued, sent, fallback, failed, mocked atomic.Uint64
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithMock logs events instead of sending them.
func WithMock(mock bool) Option {
	return func(t *Tracker) { t.mock = mock }
}

// WithEvents records delivery outcomes in the observability log.
func WithEvents(l *otel.Logger) Option {
	return func(t *Tracker) { t.events = l }
}

// WithQueueSize sets the beacon capacity.
func WithQueueSize(n int) Option {
	return func(t *Tracker) { t.queueSize = n }
}

// New creates a Tracker posting through send.
func New(send Sender, opts ...Option) *Tracker {
	t := &Tracker{send: send}
	for _, opt := range opts {
		opt(t)
	}
	if !t.mock {
		t.beacon = NewBeacon(send, t.queueSize, t.record)
	}
	return t
}

// Emit delivers ev best-effort. It never blocks on the network unless the
// beacon is unavailable, and never reports failure to the caller.
func (t *Tracker) Emit(ev api.EventRequest) {
	if t.mock {
		t.mocked.Add(1)
		logging.Debug("track: mock event", "type", ev.EventType, "item", ev.ItemID, "staytime_ms", ev.StaytimeMs)
		return
	}
	if t.beacon.Send(ev) {
		t.queued.Add(1)
		return
	}

	t.fallback.Add(1)
	t.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindTrackFallback, Comp: "track", ItemID: ev.ItemID, Msg: string(ev.EventType)})
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	t.record(ev, t.send.ReportEvent(ctx, ev))
}

func (t *Tracker) record(ev api.EventRequest, err error) {
	if err == nil {
		t.sent.Add(1)
		t.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindTrackSent, Comp: "track", ItemID: ev.ItemID, Msg: string(ev.EventType)})
		return
	}
	t.failed.Add(1)
	logging.Warn("track: event delivery failed", "type", ev.EventType, "item", ev.ItemID, "err", err)
	t.events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindTrackDrop, Comp: "track", ItemID: ev.ItemID, Msg: string(ev.EventType), Err: err.Error()})
}

// Stats returns delivery counters.
func (t *Tracker) Stats() Stats {
	return Stats{
		Queued:   t.queued.Load(),
		Sent:     t.sent.Load(),
		Fallback: t.fallback.Load(),
		Failed:   t.failed.Load(),
		Mocked:   t.mocked.Load(),
	}
}

// Close flushes the beacon. Events emitted afterwards take the fallback path.
func (t *Tracker) Close() {
	if t.beacon != nil {
		t.beacon.Close()
	}
}
