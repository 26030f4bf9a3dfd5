// Package otel provides structured observability for minifeed.
//
// Events are typed structs serialized as JSONL lines. The Logger writes
// events asynchronously via a buffered channel and background drain goroutine.
// An optional RingBuffer provides live in-memory inspection for the debug overlay.
package otel

import (
	"encoding/json"
	"time"
)

// Level defines event severity for filtering.
type Level string

const (
	LevelDebug Level = "debug"
	LevelInfo  Level = "info"
	LevelWarn  Level = "warn"
	LevelError Level = "error"
)

// EventKind identifies the category of an observability event.
// Dot-delimited: "<subsystem>.<action>".
type EventKind string

const (
	// Feed paging
	KindFeedLoad     EventKind = "feed.load"
	KindFeedLoadMore EventKind = "feed.load_more"
	KindFeedLoaded   EventKind = "feed.loaded"
	KindFeedError    EventKind = "feed.error"
	KindFeedStale    EventKind = "feed.stale"

	// Exposure
	KindImpression EventKind = "exposure.impression"
	KindStay       EventKind = "exposure.stay"
	KindClick      EventKind = "exposure.click"

	// Relations
	KindRelationApply    EventKind = "relation.apply"
	KindRelationCommit   EventKind = "relation.commit"
	KindRelationRollback EventKind = "relation.rollback"
	KindRelationBusy     EventKind = "relation.busy"

	// Analytics transport
	KindTrackSent     EventKind = "track.sent"
	KindTrackFallback EventKind = "track.fallback"
	KindTrackDrop     EventKind = "track.drop"

	// Item detail
	KindDetailOpen  EventKind = "detail.open"
	KindDetailError EventKind = "detail.error"

	// Store events
	KindStoreError EventKind = "store.error"

	// UI events
	KindKeyPress   EventKind = "ui.key"
	KindViewRender EventKind = "ui.render"

	// System events
	KindStartup  EventKind = "sys.startup"
	KindShutdown EventKind = "sys.shutdown"
	KindError    EventKind = "sys.error"

	KindMsgReceived EventKind = "trace.msg_received"
	KindMsgHandled  EventKind = "trace.msg_handled"
)

// Event is the universal observability record. Every field except Kind and
// Time is optional. Serialized as a single JSONL line.
type Event struct {
	Time      time.Time      `json:"t"`
	Level     Level          `json:"level,omitempty"`
	Kind      EventKind      `json:"kind"`
	Comp      string         `json:"comp,omitempty"`       // component: "pager", "exposure", "interact", "track", "ui", "main"
	SessionID string         `json:"session_id,omitempty"` // uuid, same for entire app run
	Gen       uint64         `json:"gen,omitempty"`        // pager generation
	ItemID    int64          `json:"item_id,omitempty"`
	Index     int            `json:"index,omitempty"`
	Cursor    string         `json:"cursor,omitempty"`
	Relation  string         `json:"relation,omitempty"` // "item-42-like"
	Dur       time.Duration  `json:"-"`                  // not serialized directly
	DurMs     float64        `json:"dur_ms,omitempty"`   // computed from Dur at marshal time
	Count     int            `json:"count,omitempty"`
	Err       string         `json:"err,omitempty"`
	Msg       string         `json:"msg,omitempty"`
	Extra     map[string]any `json:"extra,omitempty"`
}

// MarshalJSON converts Dur to DurMs.
func (e Event) MarshalJSON() ([]byte, error) {
	type Alias Event
	a := struct {
		Alias
	}{Alias: Alias(e)}
	if e.Dur > 0 {
		a.DurMs = float64(e.Dur) / float64(time.Millisecond)
	}
	return json.Marshal(a)
}
