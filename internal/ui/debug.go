package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/abelbrown/minifeed/internal/otel"
	"github.com/abelbrown/minifeed/internal/pager"
)

// debugPanelChrome is the number of terminal lines consumed by DebugPanel's
// border (top + bottom = 2) and vertical padding (top + bottom = 2).
// Must be updated if DebugPanel style changes.
const debugPanelChrome = 4

// debugOverlay renders the debug panel showing pager state, event counts and
// recent events. Pure function with no side effects. Returns empty string if
// ring is nil.
func debugOverlay(ring *otel.RingBuffer, st pager.State, width, height int) string {
	if ring == nil {
		return ""
	}

	stats := ring.Stats()
	recent := ring.Last(20)

	var lines []string
	lines = append(lines, DebugHeaderStyle.Render("Pager"))
	lines = append(lines, fmt.Sprintf("  Phase:      %s (gen %d)", st.Phase(), st.Gen))
	lines = append(lines, fmt.Sprintf("  Position:   %d / %d, has more: %v", st.Index+1, len(st.Items), st.HasMore))
	cursor := st.Cursor
	if cursor == "" {
		cursor = "null"
	}
	lines = append(lines, fmt.Sprintf("  Cursor:     %s", truncate(cursor, 40)))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Event Stats"))
	lines = append(lines, fmt.Sprintf("  Feed:       %d loads, %d more, %d errors, %d stale",
		stats[otel.KindFeedLoad], stats[otel.KindFeedLoadMore], stats[otel.KindFeedError], stats[otel.KindFeedStale]))
	lines = append(lines, fmt.Sprintf("  Exposure:   %d impressions, %d stays, %d clicks",
		stats[otel.KindImpression], stats[otel.KindStay], stats[otel.KindClick]))
	lines = append(lines, fmt.Sprintf("  Relations:  %d committed, %d rolled back, %d busy",
		stats[otel.KindRelationCommit], stats[otel.KindRelationRollback], stats[otel.KindRelationBusy]))
	lines = append(lines, fmt.Sprintf("  Track:      %d sent, %d fallback, %d dropped",
		stats[otel.KindTrackSent], stats[otel.KindTrackFallback], stats[otel.KindTrackDrop]))
	lines = append(lines, fmt.Sprintf("  Buffer:     %d / %d events", ring.Len(), ring.Cap()))
	lines = append(lines, "")

	lines = append(lines, DebugHeaderStyle.Render("Recent Events"))
	for _, e := range recent {
		line := fmt.Sprintf("  %6s  %-20s", formatAge(time.Since(e.Time)), string(e.Kind))
		if e.ItemID != 0 {
			line += fmt.Sprintf("  #%d", e.ItemID)
		}
		if e.Relation != "" {
			line += "  " + e.Relation
		}
		if e.Msg != "" {
			line += "  " + truncate(e.Msg, 30)
		}
		if e.Err != "" {
			line += "  ERR:" + truncate(e.Err, 30)
		}
		lines = append(lines, line)
	}

	// Truncate to fit terminal height (subtract chrome added by DebugPanel border/padding)
	maxHeight := height - debugPanelChrome
	if maxHeight < 1 {
		maxHeight = 1
	}
	if len(lines) > maxHeight {
		lines = lines[:maxHeight]
	}

	panelWidth := 76
	if panelWidth > width-4 {
		panelWidth = width - 4
	}
	if panelWidth < 20 {
		panelWidth = 20
	}

	return DebugPanel.Width(panelWidth).Render(strings.Join(lines, "\n"))
}

// formatAge formats a duration as a compact human string.
// Handles negative durations from clock skew by clamping to "0ms".
func formatAge(d time.Duration) string {
	if d < 0 {
		return "0ms"
	}
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%.0fm", d.Minutes())
	}
}

// debugStatusBar renders the status bar for the debug overlay.
func debugStatusBar(width int) string {
	keys := StatusBarKey.Render("ctrl+d") + StatusBarText.Render(":close")
	return StatusBar.Width(width).Render("  [DEBUG]  " + keys)
}
