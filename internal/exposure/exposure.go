// Package exposure measures how long the single active feed card stays on
// screen and turns that into impression and stay events.
//
// A Session is a pure value opened and closed against an external clock.
// Tracker owns at most one open Session and sequences close-before-open so
// the outgoing stay is computed before the incoming start time is taken.
package exposure

import (
	"sync"
	"time"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/otel"
)

// DefaultThreshold is the minimum dwell for a stay event. Shorter sessions
// are flick-through noise and are dropped.
const DefaultThreshold = 800 * time.Millisecond

// Source tags every event emitted from the feed pager.
const Source = "feed"

// Session is one open exposure.
type Session struct {
	Item  api.FeedItem
	Start time.Time
}

// Open starts a session for item at now.
func Open(item api.FeedItem, now time.Time) Session {
	return Session{Item: item, Start: now}
}

// Close returns the dwell time up to now. A clock that went backwards yields 0.
func (s Session) Close(now time.Time) time.Duration {
	d := now.Sub(s.Start)
	if d < 0 {
		return 0
	}
	return d
}

// same reports whether the session already covers item. Tracking ids are
// compared too so a duplicate id on a later page counts as a new card.
func (s Session) same(item api.FeedItem) bool {
	return s.Item.ID == item.ID && s.Item.Tracking == item.Tracking
}

// Emitter delivers analytics events. Implementations must not block the
// caller for long and must swallow their own failures.
type Emitter interface {
	Emit(ev api.EventRequest)
}

// EmitterFunc adapts a function to Emitter.
type EmitterFunc func(ev api.EventRequest)

func (f EmitterFunc) Emit(ev api.EventRequest) { f(ev) }

// StayRecorder is told about every stay that met the threshold.
type StayRecorder func(item api.FeedItem, stay time.Duration)

// Tracker drives sessions for one pager. Goroutine-safe, though the UI calls
// it from a single goroutine.
type Tracker struct {
	mu        sync.Mutex
	emit      Emitter
	now       func() time.Time
	threshold time.Duration
	onStay    StayRecorder
	session   *Session
	stopped   bool
	events    *otel.Logger
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock injects the time source.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) { t.now = now }
}

// WithThreshold overrides DefaultThreshold.
func WithThreshold(d time.Duration) Option {
	return func(t *Tracker) { t.threshold = d }
}

// WithStayRecorder registers a hook for completed stays.
func WithStayRecorder(fn StayRecorder) Option {
	return func(t *Tracker) { t.onStay = fn }
}

// WithEvents records impressions, stays and clicks in the observability log.
func WithEvents(l *otel.Logger) Option {
	return func(t *Tracker) { t.events = l }
}

// New creates a Tracker emitting to emit.
func New(emit Emitter, opts ...Option) *Tracker {
	t := &Tracker{
		emit:      emit,
		now:       time.Now,
		threshold: DefaultThreshold,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Activate makes item the active card. Re-activating the current card is a
// no-op. Otherwise the previous session is closed first and a new one opened
// with an immediate impression.
func (t *Tracker) Activate(item api.FeedItem) {
	t.mu.Lock()
	if t.stopped || (t.session != nil && t.session.same(item)) {
		t.mu.Unlock()
		return
	}
	stay, stayed := t.closeLocked()
	s := Open(item, t.now())
	t.session = &s
	onStay := t.onStay
	t.mu.Unlock()

	if stayed != nil {
		t.send(stayEvent(*stayed, stay), otel.KindStay, stay)
		if onStay != nil {
			onStay(stayed.Item, stay)
		}
	}
	t.send(impressionEvent(item), otel.KindImpression, 0)
}

// Deactivate closes the open session, if any.
func (t *Tracker) Deactivate() {
	t.mu.Lock()
	stay, stayed := t.closeLocked()
	onStay := t.onStay
	t.mu.Unlock()

	if stayed != nil {
		t.send(stayEvent(*stayed, stay), otel.KindStay, stay)
		if onStay != nil {
			onStay(stayed.Item, stay)
		}
	}
}

// Stop closes the open session and ignores further activations. Safe to call
// more than once.
func (t *Tracker) Stop() {
	t.Deactivate()
	t.mu.Lock()
	t.stopped = true
	t.mu.Unlock()
}

// Click reports a click on item with its tracking ids.
func (t *Tracker) Click(item api.FeedItem) {
	typ := api.EventClick
	if item.IsAd() {
		typ = api.EventAdClick
	}
	t.send(event(item, typ), otel.KindClick, 0)
}

func (t *Tracker) send(ev api.EventRequest, kind otel.EventKind, d time.Duration) {
	t.events.Emit(otel.Event{Level: otel.LevelDebug, Kind: kind, Comp: "exposure", ItemID: ev.ItemID, Dur: d, Msg: string(ev.EventType)})
	t.emit.Emit(ev)
}

// Active returns the item of the open session.
func (t *Tracker) Active() (api.FeedItem, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.session == nil {
		return api.FeedItem{}, false
	}
	return t.session.Item, true
}

// closeLocked clears the session and returns it when its dwell met the
// threshold.
func (t *Tracker) closeLocked() (time.Duration, *Session) {
	if t.session == nil {
		return 0, nil
	}
	s := *t.session
	t.session = nil
	d := s.Close(t.now())
	if d < t.threshold {
		return d, nil
	}
	return d, &s
}

func impressionEvent(item api.FeedItem) api.EventRequest {
	typ := api.EventImpression
	if item.IsAd() {
		typ = api.EventAdImpression
	}
	return event(item, typ)
}

func stayEvent(s Session, d time.Duration) api.EventRequest {
	ev := event(s.Item, api.EventStay)
	ev.StaytimeMs = d.Milliseconds()
	return ev
}

func event(item api.FeedItem, typ api.EventType) api.EventRequest {
	return api.EventRequest{
		ItemID:     item.ID,
		EventType:  typ,
		Source:     Source,
		EventToken: item.Tracking.EventToken,
		TraceID:    item.Tracking.TraceID,
	}
}
