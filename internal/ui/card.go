package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-runewidth"

	"github.com/abelbrown/minifeed/internal/api"
)

// maxCardWidth keeps cards readable on wide terminals.
const maxCardWidth = 72

// maxDots is the number of position dots shown before windowing kicks in.
const maxDots = 5

// cardFlags is the relation state shown on a card.
type cardFlags struct {
	Liked, LikePending         bool
	Favorited, FavoritePending bool
}

// cardWidth returns the outer width of a card for a terminal width.
func cardWidth(width int) int {
	w := width - 4
	if w > maxCardWidth {
		w = maxCardWidth
	}
	if w < 24 {
		w = 24
	}
	return w
}

// renderCard renders one feed item as a bordered card.
func renderCard(item api.FeedItem, flags cardFlags, width int) string {
	outer := cardWidth(width)
	// Border (2) and horizontal padding (4).
	inner := outer - 6

	var lines []string
	lines = append(lines, badge(item))
	lines = append(lines, CardTitle.Width(inner).Render(item.Title()))
	if meta := item.Meta(); meta != "" {
		lines = append(lines, CardMeta.Render(truncate(meta, inner)))
	}
	if body := item.Body(); body != "" {
		lines = append(lines, "", CardBody.Render(excerpt(body, inner, 3)))
	}
	if tags := item.Tags().Flat(); len(tags) > 0 {
		parts := make([]string, len(tags))
		for i, t := range tags {
			parts[i] = "#" + t
		}
		lines = append(lines, "", CardTag.Render(truncate(strings.Join(parts, " "), inner)))
	}
	if item.Reason != "" {
		lines = append(lines, CardReason.Render(truncate("why: "+item.Reason, inner)))
	}
	lines = append(lines, "", renderFlags(flags))

	return Card.Width(outer - 2).Render(strings.Join(lines, "\n"))
}

func badge(item api.FeedItem) string {
	switch item.Type {
	case api.TypeAd:
		return BadgeAd.Render("SPONSORED")
	case api.TypeProduct:
		return BadgeProduct.Render("PRODUCT")
	}
	return BadgeContent.Render("POST")
}

func renderFlags(f cardFlags) string {
	flag := func(on, pending bool, onText, offText string) string {
		s := FlagOff.Render(offText)
		if on {
			s = FlagOn.Render(onText)
		}
		if pending {
			s += FlagOff.Render("…")
		}
		return s
	}
	return flag(f.Liked, f.LikePending, "♥ liked", "♡ like") + "   " +
		flag(f.Favorited, f.FavoritePending, "★ saved", "☆ save")
}

// renderControls renders the pager line: arrows, position and dots.
func renderControls(index, total int, canPrev, canNext, loadingMore bool) string {
	if total == 0 {
		return ""
	}
	arrow := func(s string, enabled bool) string {
		if enabled {
			return ControlActive.Render(s)
		}
		return ControlDisabled.Render(s)
	}
	pos := ControlText.Render(fmt.Sprintf("%d / %d", index+1, total))
	if loadingMore {
		pos += ControlText.Render("+")
	}
	return arrow("‹", canPrev) + "  " + pos + "  " + arrow("›", canNext) + "   " + renderDots(index, total)
}

// renderDots shows one dot per item, or a window of maxDots around index
// with ellipses when there are more.
func renderDots(index, total int) string {
	if total <= 0 {
		return ""
	}
	start, end := 0, total
	if total > maxDots {
		start = index - maxDots/2
		if start < 0 {
			start = 0
		}
		end = start + maxDots
		if end > total {
			end = total
			start = end - maxDots
		}
	}

	var b strings.Builder
	if start > 0 {
		b.WriteString(ControlText.Render("… "))
	}
	for i := start; i < end; i++ {
		if i > start {
			b.WriteString(" ")
		}
		if i == index {
			b.WriteString(ControlActive.Render("●"))
		} else {
			b.WriteString(ControlText.Render("○"))
		}
	}
	if end < total {
		b.WriteString(ControlText.Render(" …"))
	}
	return b.String()
}

// truncate shortens s to at most w terminal cells.
func truncate(s string, w int) string {
	if w <= 0 {
		return ""
	}
	return runewidth.Truncate(s, w, "…")
}

// excerpt wraps s to w cells and keeps at most n lines.
func excerpt(s string, w, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	wrapped := strings.Split(runewidth.Wrap(s, w), "\n")
	if len(wrapped) > n {
		wrapped = wrapped[:n]
		wrapped[n-1] = truncate(wrapped[n-1]+" …", w)
	}
	return strings.Join(wrapped, "\n")
}

// centered places s in the middle of a width x height area.
func centered(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	return lipgloss.Place(width, height, lipgloss.Center, lipgloss.Center, s)
}
