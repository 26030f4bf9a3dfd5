package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// eventRecord mirrors otel.Event for JSON decoding. Decoding from JSONL
// keeps the viewer working across schema changes.
type eventRecord struct {
	Time      time.Time      `json:"t"`
	Level     string         `json:"level"`
	Kind      string         `json:"kind"`
	Comp      string         `json:"comp"`
	SessionID string         `json:"session_id"`
	Gen       uint64         `json:"gen"`
	ItemID    int64          `json:"item_id"`
	Index     int            `json:"index"`
	Cursor    string         `json:"cursor"`
	Relation  string         `json:"relation"`
	DurMs     float64        `json:"dur_ms"`
	Count     int            `json:"count"`
	Err       string         `json:"err"`
	Msg       string         `json:"msg"`
	Extra     map[string]any `json:"extra"`
}

// eventFilter selects the lines the viewer prints.
type eventFilter struct {
	kind    string
	level   string
	comp    string
	session string
	item    int64
}

// levelRank returns a numeric rank for filtering (higher = more severe).
func levelRank(level string) int {
	switch level {
	case "debug":
		return 0
	case "info":
		return 1
	case "warn":
		return 2
	case "error":
		return 3
	default:
		return 0
	}
}

func (f eventFilter) match(ev eventRecord) bool {
	if f.kind != "" && !strings.HasPrefix(ev.Kind, f.kind) {
		return false
	}
	if f.level != "" && levelRank(ev.Level) < levelRank(f.level) {
		return false
	}
	if f.comp != "" && ev.Comp != f.comp {
		return false
	}
	if f.session != "" && !strings.HasPrefix(ev.SessionID, f.session) {
		return false
	}
	if f.item != 0 && ev.ItemID != f.item {
		return false
	}
	return true
}

func newEventsCmd(o *rootOptions) *cobra.Command {
	var (
		f       eventFilter
		tail    int
		follow  bool
		rawJSON bool
	)
	cmd := &cobra.Command{
		Use:   "events",
		Short: "JSONL event log viewer",
		Long: `Print the tail of minifeed's event log, optionally filtered, and follow
it like tail -f.

Examples:
  feedctl events --kind feed
  feedctl events --level warn -f
  feedctl events --item 1004 --raw`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := o.eventLogPath()
			file, err := os.Open(path)
			if err != nil {
				return fmt.Errorf("event log not found at %s (run minifeed first): %w", path, err)
			}
			defer file.Close()

			w := cmd.OutOrStdout()
			format := func(ev eventRecord, raw []byte) string {
				if rawJSON {
					return string(raw)
				}
				return formatEvent(ev)
			}

			reader := bufio.NewReader(file)
			for _, l := range readTailLines(reader, tail, f.match) {
				fmt.Fprintln(w, format(l.ev, l.raw))
			}
			if !follow {
				return nil
			}
			return followLines(cmd.Context(), reader, func(ev eventRecord, raw []byte) {
				if f.match(ev) {
					fmt.Fprintln(w, format(ev, raw))
				}
			})
		},
	}
	fl := cmd.Flags()
	fl.IntVar(&tail, "tail", 50, "Number of recent lines to show")
	fl.BoolVarP(&follow, "follow", "f", false, "Follow mode (like tail -f)")
	fl.StringVar(&f.kind, "kind", "", "Filter by event kind prefix (e.g. 'feed')")
	fl.StringVar(&f.level, "level", "", "Minimum level: debug, info, warn, error")
	fl.StringVar(&f.comp, "comp", "", "Filter by component name")
	fl.StringVar(&f.session, "session", "", "Filter by session id prefix")
	fl.Int64Var(&f.item, "item", 0, "Filter by item id")
	fl.BoolVar(&rawJSON, "raw", false, "Output raw JSON lines")
	return cmd
}

func formatEvent(ev eventRecord) string {
	ts := ev.Time.Format("15:04:05.000")
	lvl := strings.ToUpper(ev.Level)
	if lvl == "" {
		lvl = "?"
	}

	parts := []string{fmt.Sprintf("%s %-5s [%-8s] %-22s", ts, lvl, ev.Comp, ev.Kind)}
	if ev.Msg != "" {
		parts = append(parts, "- "+ev.Msg)
	}
	if ev.ItemID != 0 {
		parts = append(parts, fmt.Sprintf("item=%d", ev.ItemID))
	}
	if ev.Relation != "" {
		parts = append(parts, "rel="+ev.Relation)
	}
	if ev.Gen != 0 {
		parts = append(parts, fmt.Sprintf("gen=%d", ev.Gen))
	}
	if ev.Cursor != "" {
		parts = append(parts, "cursor="+ev.Cursor)
	}
	if ev.DurMs > 0 {
		parts = append(parts, fmt.Sprintf("(%.*fms)", durPrecision(ev.DurMs), ev.DurMs))
	}
	if ev.Count > 0 {
		parts = append(parts, fmt.Sprintf("n=%d", ev.Count))
	}
	if ev.Err != "" {
		parts = append(parts, "err="+ev.Err)
	}
	return strings.Join(parts, " ")
}

type parsedLine struct {
	ev  eventRecord
	raw []byte
}

// readTailLines reads r to EOF and returns the last n lines matching the
// filter. Malformed lines are skipped.
func readTailLines(r io.Reader, n int, match func(eventRecord) bool) []parsedLine {
	scanner := bufio.NewScanner(r)
	// Allow large lines (some events may have big Extra maps)
	scanner.Buffer(make([]byte, 0, 64*1024), 256*1024)

	if n <= 0 {
		return nil
	}
	ring := make([]parsedLine, 0, n)
	for scanner.Scan() {
		raw := scanner.Bytes()
		if len(raw) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(raw, &ev) != nil {
			continue
		}
		if !match(ev) {
			continue
		}
		// scanner reuses its buffer
		rawCopy := make([]byte, len(raw))
		copy(rawCopy, raw)

		if len(ring) < n {
			ring = append(ring, parsedLine{ev: ev, raw: rawCopy})
		} else {
			copy(ring, ring[1:])
			ring[n-1] = parsedLine{ev: ev, raw: rawCopy}
		}
	}
	return ring
}

// followLines polls r for appended lines until ctx is done.
func followLines(ctx context.Context, r *bufio.Reader, emit func(eventRecord, []byte)) error {
	var partial []byte
	for {
		line, err := r.ReadBytes('\n')
		if err == io.EOF {
			// Keep a half-written line until the rest arrives.
			partial = append(partial, line...)
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(100 * time.Millisecond):
			}
			continue
		}
		if err != nil {
			return err
		}
		if len(partial) > 0 {
			line = append(partial, line...)
			partial = nil
		}
		line = trimLine(line)
		if len(line) == 0 {
			continue
		}
		var ev eventRecord
		if json.Unmarshal(line, &ev) != nil {
			continue
		}
		emit(ev, line)
	}
}

func trimLine(b []byte) []byte {
	for len(b) > 0 && (b[len(b)-1] == '\n' || b[len(b)-1] == '\r') {
		b = b[:len(b)-1]
	}
	return b
}

func durPrecision(ms float64) int {
	if ms >= 100 {
		return 0
	}
	if ms >= 1 {
		return 1
	}
	return 2
}
