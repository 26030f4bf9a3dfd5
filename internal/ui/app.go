package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/abelbrown/minifeed/internal/api"
	"github.com/abelbrown/minifeed/internal/exposure"
	"github.com/abelbrown/minifeed/internal/input"
	"github.com/abelbrown/minifeed/internal/interact"
	"github.com/abelbrown/minifeed/internal/logging"
	"github.com/abelbrown/minifeed/internal/otel"
	"github.com/abelbrown/minifeed/internal/pager"
)

// AppConfig wires the App to the outside world. The App never talks to the
// network itself; it asks for tea.Cmds and receives messages back.
type AppConfig struct {
	// FetchPage returns a Cmd that fetches one page and answers PageLoaded.
	FetchPage func(req pager.Request) tea.Cmd
	// FetchItem returns a Cmd that fetches one item and answers ItemLoaded.
	FetchItem func(id int64) tea.Cmd

	// Relations holds the optimistic like/favorite state. Optional.
	Relations *interact.Controller
	// Exposure measures how long each card is shown. Optional.
	Exposure *exposure.Tracker

	// Context bounds relation commits. Defaults to context.Background().
	Context context.Context

	Obs ObsConfig
}

// ObsConfig holds the observability sinks. Both are optional.
type ObsConfig struct {
	Ring   *otel.RingBuffer
	Events *otel.Logger
}

type viewMode int

const (
	modePager viewMode = iota
	modeDetail
)

// App is the root Bubble Tea model.
// IMPORTANT: App does NOT hold the API client. It receives pages via messages.
type App struct {
	cfg     AppConfig
	keys    input.KeyMap
	pager   pager.State
	initial *pager.Request // issued by Init

	mode    viewMode
	detail  detail
	spinner spinner.Model
	help    help.Model
	status  string

	width        int
	height       int
	ready        bool
	debugVisible bool
	quitting     bool
}

// NewApp creates an App. The first page request is prepared here and sent
// by Init.
func NewApp(cfg AppConfig) App {
	if cfg.Context == nil {
		cfg.Context = context.Background()
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = SpinnerStyle

	a := App{
		cfg:     cfg,
		keys:    input.Keys,
		spinner: s,
		help:    help.New(),
	}
	a.pager, a.initial = a.pager.LoadInitial()
	return a
}

// Init starts the spinner and requests the first page.
func (a App) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.fetch(a.initial))
}

// Update handles messages and returns the updated model and any commands.
func (a App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if otel.TraceEnabled() {
		a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindMsgReceived, Comp: "ui", Msg: fmt.Sprintf("%T", msg)})
	}

	var cmd tea.Cmd
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.ready = true
		a.help.Width = msg.Width
		if a.mode == modeDetail {
			a.detail.setSize(msg.Width, msg.Height)
		}
		return a, nil

	case spinner.TickMsg:
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case tea.KeyMsg:
		a, cmd = a.handleKey(msg)

	case PageLoaded:
		a, cmd = a.handlePage(msg)

	case ItemLoaded:
		if a.mode == modeDetail && a.detail.loaded(msg) && msg.Err != nil {
			logging.Warn("ui: item detail failed", "id", msg.ID, "err", msg.Err)
			a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindDetailError, Comp: "ui", ItemID: msg.ID, Err: msg.Err.Error()})
		}
		return a, nil

	case RelationSettled:
		if !msg.OK {
			a.status = fmt.Sprintf("couldn't save %s", msg.Key.Relation)
			if msg.Err != nil {
				a.status += ": " + msg.Err.Error()
			}
		}
		return a, nil
	}

	a.syncExposure()
	return a, cmd
}

func (a App) handlePage(msg PageLoaded) (App, tea.Cmd) {
	r := msg.Result
	if r.Request.Gen != a.pager.Gen {
		a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindFeedStale, Comp: "pager", Gen: r.Request.Gen, Cursor: r.Request.Cursor})
	}

	var next *pager.Request
	a.pager, next = a.pager.Apply(r)

	switch {
	case r.Request.Gen != a.pager.Gen:
	case r.Err != nil:
		logging.Warn("ui: feed page failed", "gen", r.Request.Gen, "cursor", r.Request.Cursor, "err", r.Err)
		a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelWarn, Kind: otel.KindFeedError, Comp: "pager", Gen: r.Request.Gen, Cursor: r.Request.Cursor, Err: r.Err.Error()})
	default:
		n := 0
		if r.Page != nil {
			n = len(r.Page.Items)
		}
		a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindFeedLoaded, Comp: "pager", Gen: r.Request.Gen, Cursor: r.Request.Cursor, Count: n})
	}
	return a, a.fetch(next)
}

func (a App) handleKey(msg tea.KeyMsg) (App, tea.Cmd) {
	if a.debugVisible {
		switch {
		case key.Matches(msg, a.keys.Debug), key.Matches(msg, a.keys.Back):
			a.debugVisible = false
		case key.Matches(msg, a.keys.Quit):
			return a.quit()
		}
		return a, nil
	}

	if a.mode == modeDetail {
		switch {
		case key.Matches(msg, a.keys.Back):
			a.mode = modePager
			return a, nil
		case key.Matches(msg, a.keys.Quit):
			return a.quit()
		case key.Matches(msg, a.keys.Debug):
			a.debugVisible = true
			return a, nil
		}
		var cmd tea.Cmd
		a.detail.vp, cmd = a.detail.vp.Update(msg)
		return a, cmd
	}

	action := a.keys.Map(msg)
	if action == input.None {
		return a, nil
	}
	a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelDebug, Kind: otel.KindKeyPress, Comp: "ui", Msg: action.String(), Index: a.pager.Index})
	a.status = ""

	var req *pager.Request
	switch action {
	case input.Next:
		a.pager, req = a.pager.Advance(pager.Next)
	case input.Prev:
		a.pager, req = a.pager.Advance(pager.Prev)
	case input.Refresh:
		a.pager, req = a.pager.Refresh()
	case input.Like:
		cmd := a.toggle(api.RelationLike)
		return a, cmd
	case input.Favorite:
		cmd := a.toggle(api.RelationFavorite)
		return a, cmd
	case input.Open:
		return a.openDetail()
	case input.Help:
		a.help.ShowAll = !a.help.ShowAll
	case input.Debug:
		a.debugVisible = true
	case input.Quit:
		return a.quit()
	}
	return a, a.fetch(req)
}

// fetch turns a pager request into a Cmd. nil in, nil out.
func (a App) fetch(req *pager.Request) tea.Cmd {
	if req == nil || a.cfg.FetchPage == nil {
		return nil
	}
	kind := otel.KindFeedLoadMore
	if req.Initial {
		kind = otel.KindFeedLoad
	}
	a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: kind, Comp: "pager", Gen: req.Gen, Cursor: req.Cursor})
	return a.cfg.FetchPage(*req)
}

// toggle flips a relation on the current item at once and returns the Cmd
// that confirms it.
func (a *App) toggle(rel api.RelationType) tea.Cmd {
	item, ok := a.pager.Current()
	rc := a.cfg.Relations
	if !ok || rc == nil {
		return nil
	}
	k := interact.ItemKey(item.ID, rel)
	c, err := rc.Toggle(k, !rc.State(k))
	if errors.Is(err, interact.ErrInFlight) {
		a.status = "still saving…"
		return nil
	}
	if err != nil {
		return nil
	}
	ctx := a.cfg.Context
	return func() tea.Msg {
		ok := c.Commit(ctx)
		return RelationSettled{Key: k, OK: ok, Err: rc.Err(k)}
	}
}

func (a App) openDetail() (App, tea.Cmd) {
	item, ok := a.pager.Current()
	if !ok {
		return a, nil
	}
	if a.cfg.Exposure != nil {
		a.cfg.Exposure.Click(item)
	}
	a.detail = newDetail(item, a.width, a.height)
	a.mode = modeDetail
	a.cfg.Obs.Events.Emit(otel.Event{Level: otel.LevelInfo, Kind: otel.KindDetailOpen, Comp: "ui", ItemID: item.ID})
	if a.cfg.FetchItem == nil {
		a.detail.loading = false
		return a, nil
	}
	return a, a.cfg.FetchItem(item.ID)
}

func (a App) quit() (App, tea.Cmd) {
	a.quitting = true
	if a.cfg.Exposure != nil {
		a.cfg.Exposure.Stop()
	}
	return a, tea.Quit
}

// syncExposure activates the card on screen, or closes the session when no
// card is visible.
func (a App) syncExposure() {
	t := a.cfg.Exposure
	if t == nil || a.quitting {
		return
	}
	if a.mode != modePager || a.debugVisible {
		t.Deactivate()
		return
	}
	if item, ok := a.pager.Current(); ok {
		t.Activate(item)
		return
	}
	t.Deactivate()
}

// View renders the UI.
func (a App) View() string {
	if !a.ready {
		return "Loading..."
	}

	if a.debugVisible {
		overlay := debugOverlay(a.cfg.Obs.Ring, a.pager, a.width, a.height-1)
		if overlay == "" {
			overlay = HelpStyle.Render("No event ring configured.")
		}
		return lipgloss.JoinVertical(lipgloss.Left, overlay, debugStatusBar(a.width))
	}

	if a.mode == modeDetail {
		return a.detail.view()
	}

	helpView := a.help.View(a.keys)
	statusBar := a.statusBar()
	bodyHeight := a.height - lipgloss.Height(helpView) - lipgloss.Height(statusBar)
	body := centered(a.pagerView(), a.width, bodyHeight)
	return lipgloss.JoinVertical(lipgloss.Left, body, helpView, statusBar)
}

func (a App) pagerView() string {
	st := a.pager
	if len(st.Items) == 0 {
		switch {
		case st.Loading:
			return a.spinner.View() + " Loading feed…"
		case st.Err != nil:
			return lipgloss.JoinVertical(lipgloss.Center,
				ErrorStyle.Render("Couldn't load the feed: "+truncate(st.Err.Error(), 60)),
				HintStyle.Render("press r to retry"))
		default:
			return lipgloss.JoinVertical(lipgloss.Center,
				HelpStyle.Render("Nothing in your feed yet."),
				HintStyle.Render("press r to refresh"))
		}
	}

	item, _ := st.Current()
	parts := []string{
		renderCard(item, a.flags(item), a.width),
		renderControls(st.Index, len(st.Items), st.CanPrev(), st.CanNext(), st.Phase() == pager.PhaseLoadingMore),
	}
	if st.Err != nil && !st.Loading {
		parts = append(parts,
			ErrorStyle.Render("Couldn't load more: "+truncate(st.Err.Error(), 50)),
			HintStyle.Render("press r to retry"))
	}
	return lipgloss.JoinVertical(lipgloss.Center, parts...)
}

func (a App) flags(item api.FeedItem) cardFlags {
	rc := a.cfg.Relations
	if rc == nil {
		return cardFlags{}
	}
	like := interact.ItemKey(item.ID, api.RelationLike)
	fav := interact.ItemKey(item.ID, api.RelationFavorite)
	return cardFlags{
		Liked:           rc.State(like),
		LikePending:     rc.Pending(like),
		Favorited:       rc.State(fav),
		FavoritePending: rc.Pending(fav),
	}
}

func (a App) statusBar() string {
	left := a.status
	if left == "" {
		switch a.pager.Phase() {
		case pager.PhaseLoading:
			if len(a.pager.Items) > 0 {
				left = a.spinner.View() + " refreshing…"
			} else {
				left = "loading…"
			}
		case pager.PhaseLoadingMore:
			left = a.spinner.View() + " loading more…"
		case pager.PhaseExhausted:
			left = "end of feed"
		case pager.PhaseReady:
			left = fmt.Sprintf("%d loaded", len(a.pager.Items))
		}
	}
	right := StatusBarKey.Render("ctrl+d") + StatusBarText.Render(":debug")
	gap := a.width - lipgloss.Width(left) - lipgloss.Width(right) - 2
	if gap < 1 {
		gap = 1
	}
	return StatusBar.Width(a.width).Render(left + strings.Repeat(" ", gap) + right)
}

// Pager returns the pager state (for testing).
func (a App) Pager() pager.State {
	return a.pager
}

// InDetail reports whether the detail view is showing (for testing).
func (a App) InDetail() bool {
	return a.mode == modeDetail
}
