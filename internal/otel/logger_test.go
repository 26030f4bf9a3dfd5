package otel

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
)

func decodeLines(t *testing.T, b []byte) []map[string]any {
	t.Helper()
	var out []map[string]any
	sc := bufio.NewScanner(bytes.NewReader(b))
	for sc.Scan() {
		var m map[string]any
		if err := json.Unmarshal(sc.Bytes(), &m); err != nil {
			t.Fatalf("invalid JSONL line %q: %v", sc.Text(), err)
		}
		out = append(out, m)
	}
	return out
}

func TestEmitWritesJSONL(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Emit(Event{Kind: KindFeedLoad, Level: LevelInfo, Comp: "pager", Gen: 2, Cursor: "c1"})
	l.Close()

	lines := decodeLines(t, buf.Bytes())
	if len(lines) != 1 {
		t.Fatalf("expected 1 line, got %d", len(lines))
	}
	got := lines[0]
	if got["kind"] != "feed.load" || got["comp"] != "pager" || got["cursor"] != "c1" {
		t.Errorf("unexpected line: %v", got)
	}
	if got["gen"] != float64(2) {
		t.Errorf("gen = %v, want 2", got["gen"])
	}
}

func TestEmitStampsTimeAndSession(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	before := time.Now()
	l.Emit(Event{Kind: KindStartup})
	l.Emit(Event{Kind: KindShutdown})
	l.Close()

	var evs []Event
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		var ev Event
		if err := json.Unmarshal([]byte(line), &ev); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		evs = append(evs, ev)
	}
	if evs[0].Time.Before(before) {
		t.Errorf("time %v earlier than %v", evs[0].Time, before)
	}
	if _, err := uuid.Parse(evs[0].SessionID); err != nil {
		t.Errorf("session id %q is not a uuid: %v", evs[0].SessionID, err)
	}
	if evs[0].SessionID != evs[1].SessionID || evs[0].SessionID != l.SessionID() {
		t.Error("session id should be constant for one logger")
	}
}

func TestDurSerializedAsMillis(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindStay, Dur: 1250 * time.Millisecond})
	l.Close()

	lines := decodeLines(t, buf.Bytes())
	if lines[0]["dur_ms"] != float64(1250) {
		t.Errorf("dur_ms = %v, want 1250", lines[0]["dur_ms"])
	}
}

func TestOptionalFieldsOmitted(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindStartup})
	l.Close()

	line := buf.String()
	for _, field := range []string{"dur_ms", "count", "item_id", "cursor", "relation", "err", "msg", "extra"} {
		if strings.Contains(line, `"`+field+`"`) {
			t.Errorf("field %q should be omitted: %s", field, line)
		}
	}
}

func TestConcurrentEmit(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			l.Emit(Event{Kind: KindImpression, ItemID: int64(i)})
		}(i)
	}
	wg.Wait()
	l.Close()

	if n := len(decodeLines(t, buf.Bytes())); n != 100 {
		t.Errorf("lines = %d, want 100", n)
	}
}

func TestRingReceivesEvents(t *testing.T) {
	l := NewNullLogger()
	ring := NewRingBuffer(8)
	l.SetRingBuffer(ring)

	l.Emit(Event{Kind: KindStay, Dur: time.Second})
	l.Close()

	snap := ring.Snapshot()
	if len(snap) != 1 || snap[0].Dur != time.Second {
		t.Errorf("ring = %+v", snap)
	}
}

func TestCloseIsIdempotentAndDropsLateEvents(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)
	l.Emit(Event{Kind: KindStartup})
	l.Close()
	l.Close()

	l.Emit(Event{Kind: KindShutdown})
	if l.Dropped() != 1 {
		t.Errorf("dropped = %d, want 1", l.Dropped())
	}
	if n := len(decodeLines(t, buf.Bytes())); n != 1 {
		t.Errorf("lines = %d, want 1", n)
	}
}

func TestDropWhenChannelFull(t *testing.T) {
	bw := &blockingWriter{started: make(chan struct{}), block: make(chan struct{})}
	l := NewLogger(bw)

	l.Emit(Event{Kind: KindFeedLoad})
	<-bw.started

	for i := 0; i < writerChanSize+10; i++ {
		l.Emit(Event{Kind: KindFeedLoad})
	}
	if l.Dropped() == 0 {
		t.Error("expected drops with a full channel")
	}

	close(bw.block)
	l.Close()
}

type blockingWriter struct {
	started chan struct{}
	block   chan struct{}
	once    sync.Once
}

func (w *blockingWriter) Write(p []byte) (int, error) {
	w.once.Do(func() {
		close(w.started)
		<-w.block
	})
	return len(p), nil
}

func TestHelpers(t *testing.T) {
	var buf bytes.Buffer
	l := NewLogger(&buf)

	l.Info(KindStartup, "main", "starting")
	l.Warn(KindTrackDrop, "track", "queue full")
	l.Error(KindFeedError, "pager", errors.New("timeout"))
	l.Error(KindError, "main", nil)
	l.Close()

	lines := decodeLines(t, buf.Bytes())
	want := []struct{ level, kind string }{
		{"info", "sys.startup"},
		{"warn", "track.drop"},
		{"error", "feed.error"},
		{"error", "sys.error"},
	}
	if len(lines) != len(want) {
		t.Fatalf("lines = %d, want %d", len(lines), len(want))
	}
	for i, w := range want {
		if lines[i]["level"] != w.level || lines[i]["kind"] != w.kind {
			t.Errorf("line %d = %v, want %s %s", i, lines[i], w.level, w.kind)
		}
	}
	if lines[2]["err"] != "timeout" {
		t.Errorf("err = %v", lines[2]["err"])
	}
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger
	l.Emit(Event{Kind: KindStartup})
	l.Info(KindStartup, "main", "x")
	l.Close()
	if l.Dropped() != 0 || l.SessionID() != "" {
		t.Error("nil logger should report zero values")
	}
}

func TestOpenAppendsToFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")

	for i := 0; i < 2; i++ {
		l, err := Open(dir)
		if err != nil {
			t.Fatalf("Open() error = %v", err)
		}
		l.Emit(Event{Kind: KindStartup})
		l.Close()
	}

	data, err := os.ReadFile(filepath.Join(dir, EventsFile))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if n := len(decodeLines(t, data)); n != 2 {
		t.Errorf("lines = %d, want 2 across two sessions", n)
	}
}
