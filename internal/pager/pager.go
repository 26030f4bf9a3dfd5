// Package pager is the feed paging state machine.
//
// State is a plain value. Every transition returns the next State and, when
// the transition needs data, a Request describing the page to fetch. The
// caller performs the fetch however it likes and hands the outcome back via
// Apply. Nothing here blocks or touches the network.
//
// Requests carry the generation they were issued in. LoadInitial and Refresh
// start a new generation, so a load-more still in flight when the feed is
// reset can never append to the new list.
package pager

import (
	"github.com/abelbrown/minifeed/internal/api"
)

// Direction is a navigation step.
type Direction int

const (
	Next Direction = iota
	Prev
)

func (d Direction) String() string {
	if d == Prev {
		return "prev"
	}
	return "next"
}

// Phase is the derived lifecycle state of a pager.
type Phase int

const (
	PhaseEmpty       Phase = iota // no items, idle
	PhaseLoading                  // first page in flight
	PhaseReady                    // items present, idle, more available
	PhaseLoadingMore              // items present, next page in flight
	PhaseExhausted                // items present, no more pages
)

func (p Phase) String() string {
	switch p {
	case PhaseEmpty:
		return "empty"
	case PhaseLoading:
		return "loading"
	case PhaseReady:
		return "ready"
	case PhaseLoadingMore:
		return "loading_more"
	case PhaseExhausted:
		return "exhausted"
	}
	return "unknown"
}

// Request asks the caller to fetch one feed page.
type Request struct {
	Gen     uint64
	Cursor  string // empty for the first page
	Initial bool   // true replaces the list, false appends
}

// Result is the outcome of a Request.
type Result struct {
	Request Request
	Page    *api.FeedPage
	Err     error
}

// State is the pager. The zero value is an empty pager that has not loaded
// anything yet.
type State struct {
	Items     []api.FeedItem
	Index     int
	Cursor    string
	Loading   bool
	Reloading bool // the request in flight is a first-page load
	HasMore   bool
	Err       error
	Gen       uint64
}

// Phase derives the lifecycle state.
func (s State) Phase() Phase {
	switch {
	case s.Loading && (len(s.Items) == 0 || s.Reloading):
		return PhaseLoading
	case len(s.Items) == 0:
		return PhaseEmpty
	case s.Loading:
		return PhaseLoadingMore
	case !s.HasMore:
		return PhaseExhausted
	}
	return PhaseReady
}

// Current returns the item at Index.
func (s State) Current() (api.FeedItem, bool) {
	if s.Index < 0 || s.Index >= len(s.Items) {
		return api.FeedItem{}, false
	}
	return s.Items[s.Index], true
}

// CanPrev reports whether Advance(Prev) would move.
func (s State) CanPrev() bool {
	return s.Index > 0 && len(s.Items) > 0
}

// CanNext reports whether Advance(Next) would move or fetch.
func (s State) CanNext() bool {
	if len(s.Items) == 0 {
		return false
	}
	return s.Index < len(s.Items)-1 || s.HasMore
}

// LoadInitial starts a new generation and requests the first page. Items
// already on screen stay until the new page replaces them.
func (s State) LoadInitial() (State, *Request) {
	s.Gen++
	s.Cursor = ""
	s.Loading = true
	s.Reloading = true
	s.Err = nil
	return s, &Request{Gen: s.Gen, Initial: true}
}

// Refresh resets paging and reloads from the top.
func (s State) Refresh() (State, *Request) {
	s.HasMore = true
	return s.LoadInitial()
}

// LoadMore requests the next page. It is a no-op while any load is in
// flight, when there is no cursor, or when the feed is exhausted, so at most
// one load-more is ever outstanding.
func (s State) LoadMore() (State, *Request) {
	if s.Loading || !s.HasMore || s.Cursor == "" {
		return s, nil
	}
	s.Loading = true
	s.Reloading = false
	return s, &Request{Gen: s.Gen, Cursor: s.Cursor}
}

// Advance moves the index one step. Next at the last loaded item asks for
// more instead of moving; the index stays put until the user advances again.
func (s State) Advance(d Direction) (State, *Request) {
	if len(s.Items) == 0 {
		return s, nil
	}
	switch d {
	case Prev:
		if s.Index == 0 {
			return s, nil
		}
		s.Index--
	case Next:
		if s.Index >= len(s.Items)-1 {
			if s.HasMore && !s.Loading {
				return s.LoadMore()
			}
			return s, nil
		}
		s.Index++
	}
	return s.prefetch()
}

// Apply folds a fetch outcome into the state. Results from an older
// generation, or arriving when nothing is in flight, are dropped unchanged.
func (s State) Apply(r Result) (State, *Request) {
	if r.Request.Gen != s.Gen || !s.Loading || r.Request.Initial != s.Reloading {
		return s, nil
	}
	s.Loading = false
	s.Reloading = false

	if r.Request.Initial {
		if r.Err != nil {
			s.Items = nil
			s.Index = 0
			s.Cursor = ""
			s.HasMore = false
			s.Err = r.Err
			return s, nil
		}
		s.Items = append([]api.FeedItem(nil), pageItems(r.Page)...)
		s.Index = 0
		s.Cursor = pageCursor(r.Page)
		s.HasMore = hasMore(r.Page)
		s.Err = nil
		return s.prefetch()
	}

	if r.Err != nil {
		s.HasMore = false
		s.Err = r.Err
		return s, nil
	}
	batch := pageItems(r.Page)
	items := make([]api.FeedItem, 0, len(s.Items)+len(batch))
	items = append(items, s.Items...)
	s.Items = append(items, batch...)
	s.Cursor = pageCursor(r.Page)
	s.HasMore = hasMore(r.Page)
	s.Err = nil
	return s.prefetch()
}

// prefetch issues a guarded load-more when the second-to-last item is current.
func (s State) prefetch() (State, *Request) {
	if len(s.Items) > 1 && s.Index == len(s.Items)-2 {
		return s.LoadMore()
	}
	return s, nil
}

func pageItems(p *api.FeedPage) []api.FeedItem {
	if p == nil {
		return nil
	}
	return p.Items
}

func pageCursor(p *api.FeedPage) string {
	if p == nil {
		return ""
	}
	return p.Cursor
}

// hasMore treats an empty batch or a null cursor as the end of the feed.
func hasMore(p *api.FeedPage) bool {
	return p != nil && len(p.Items) > 0 && p.Cursor != ""
}
