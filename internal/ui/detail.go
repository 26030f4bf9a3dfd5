package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	"github.com/charmbracelet/glamour"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/minifeed/internal/api"
)

// detailChrome is the header line plus the footer line around the viewport.
const detailChrome = 2

// detail is the full view of one item. It shows the feed copy at once and
// swaps in the /items/{id} copy when it arrives.
type detail struct {
	id      int64
	item    api.FeedItem
	loading bool
	err     error
	vp      viewport.Model
	width   int
}

func newDetail(item api.FeedItem, width, height int) detail {
	vp := viewport.New(width, max(height-detailChrome, 1))
	d := detail{id: item.ID, item: item, loading: true, vp: vp, width: width}
	d.render()
	return d
}

func (d *detail) setSize(width, height int) {
	d.width = width
	d.vp.Width = width
	d.vp.Height = max(height-detailChrome, 1)
	d.render()
}

// loaded applies a settled item request. Results for another item are
// ignored.
func (d *detail) loaded(msg ItemLoaded) bool {
	if msg.ID != d.id {
		return false
	}
	d.loading = false
	d.err = msg.Err
	if msg.Err == nil && msg.Item != nil {
		full := msg.Item.ToFeedItem()
		// Keep the feed tracking ids; the synthetic ones are only a fallback.
		full.Tracking = d.item.Tracking
		full.Reason = d.item.Reason
		d.item = full
	}
	d.render()
	return true
}

func (d *detail) render() {
	d.vp.SetContent(renderMarkdown(detailMarkdown(d.item), d.width))
	d.vp.GotoTop()
}

func (d detail) view() string {
	header := DetailHeader.Render(truncate(d.item.Title(), max(d.width-2, 1)))
	var footer string
	switch {
	case d.loading:
		footer = HintStyle.Render("loading full item…  esc: back")
	case d.err != nil:
		footer = ErrorStyle.Render("couldn't load item: "+truncate(d.err.Error(), 60)) + HintStyle.Render("esc: back")
	default:
		footer = HintStyle.Render(fmt.Sprintf("%3.f%%  ↑/↓ scroll  esc: back", d.vp.ScrollPercent()*100))
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, d.vp.View(), footer)
}

// detailMarkdown builds the markdown document for an item.
func detailMarkdown(item api.FeedItem) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", item.Title())
	if meta := item.Meta(); meta != "" {
		fmt.Fprintf(&b, "*%s*\n\n", meta)
	}
	if body := item.Body(); body != "" {
		b.WriteString(body)
		b.WriteString("\n\n")
	}
	switch {
	case item.Type == api.TypeContent && item.Content != nil:
		for _, m := range item.Content.Media {
			fmt.Fprintf(&b, "- %s: %s\n", m.Type, m.URL)
		}
	case item.Type == api.TypeAd && item.Ad != nil:
		if item.Ad.LandingURL != "" && item.Ad.LandingURL != "#" {
			fmt.Fprintf(&b, "[Learn more](%s)\n\n", item.Ad.LandingURL)
		}
	case item.Type == api.TypeProduct && item.Product != nil:
		p := item.Product
		if p.OriginalPrice != nil && *p.OriginalPrice > p.Price {
			fmt.Fprintf(&b, "**¥%.2f** ~~¥%.2f~~\n\n", p.Price, *p.OriginalPrice)
		}
		if p.Seller != nil && p.Seller.Name != "" {
			fmt.Fprintf(&b, "Sold by %s\n\n", p.Seller.Name)
		}
	}
	if tags := item.Tags().Flat(); len(tags) > 0 {
		fmt.Fprintf(&b, "\n`%s`\n", strings.Join(tags, "` `"))
	}
	return b.String()
}

// renderMarkdown renders md for the terminal, falling back to the raw text
// when the renderer fails.
func renderMarkdown(md string, width int) string {
	wrap := width - 4
	if wrap < 20 {
		wrap = 20
	}
	r, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(wrap),
	)
	if err != nil {
		return md
	}
	out, err := r.Render(md)
	if err != nil {
		return md
	}
	return out
}
