package tui

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/notify"
	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/search"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// Screen is the top-level view being shown
type Screen int

const (
	ScreenBrowse Screen = iota
	ScreenPlayer
)

// Tab is a browse tab
type Tab int

const (
	TabHome Tab = iota
	TabSearch
	TabSubscriptions
	tabCount
)

// String returns the tab label
func (t Tab) String() string {
	switch t {
	case TabHome:
		return "Home"
	case TabSearch:
		return "Search"
	case TabSubscriptions:
		return "Subscriptions"
	default:
		return "?"
	}
}

// inputMode is what the text input is currently editing
type inputMode int

const (
	inputNone inputMode = iota
	inputFilter
	inputSearch
)

const (
	tickInterval = 100 * time.Millisecond
	seekStep     = 5.0
	volumeStep   = 0.05

	// ChromeHeight is the tab bar plus footer
	ChromeHeight = 3
)

// sortOrder is the cycle of orderings the sort key steps through
var sortOrder = []domain.SortBy{domain.SortRelevance, domain.SortViews, domain.SortRecency}

// tabState is the per-tab cursor and page
type tabState struct {
	cursor int
	page   int
}

// Model is the main Bubble Tea model for the application
type Model struct {
	Screen   Screen
	Tab      Tab
	Ready    bool
	ShowHelp bool

	// Core
	Store  *catalog.Store
	Player *player.Controller
	Toasts *notify.Queue
	Viewer domain.Viewer
	Logger *slog.Logger

	PageSize int

	// Browse state
	tabs        [tabCount]tabState
	Category    string
	Sort        domain.SortBy
	categories  []string
	filterQuery string
	searchQuery string

	input     textinput.Model
	inputMode inputMode
	help      help.Model

	// Player state
	watching   *catalog.View
	mediaReady bool
	snapshot   player.Snapshot

	// Dimensions
	Width  int
	Height int

	// UI state
	StatusMsg    string
	StatusIsErr  bool
	SpinnerFrame int
}

// NewModel creates a new application model
func NewModel(
	store *catalog.Store,
	ctrl *player.Controller,
	toasts *notify.Queue,
	viewer domain.Viewer,
	pageSize int,
	logger *slog.Logger,
) Model {
	if logger == nil {
		logger = slog.Default()
	}
	if pageSize <= 0 {
		pageSize = domain.DefaultLimit
	}

	ti := textinput.New()
	ti.CharLimit = 100
	ti.Width = 40
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle

	h := help.New()
	h.Styles.ShortKey = styles.HelpKeyStyle
	h.Styles.ShortDesc = styles.HelpDescStyle
	h.Styles.FullKey = styles.HelpKeyStyle
	h.Styles.FullDesc = styles.HelpDescStyle

	m := Model{
		Screen:   ScreenBrowse,
		Tab:      TabHome,
		Store:    store,
		Player:   ctrl,
		Toasts:   toasts,
		Viewer:   viewer,
		Logger:   logger,
		PageSize: pageSize,
		Sort:     domain.SortRelevance,
		input:    ti,
		help:     h,
	}
	for i := range m.tabs {
		m.tabs[i].page = domain.DefaultPage
	}
	return m
}

// Init loads the home tab and starts the redraw ticker
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.fetchTab(TabHome),
		TickCmd(tickInterval),
	)
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.help.Width = msg.Width
		return m, nil

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case tea.MouseMsg:
		if m.Screen == ScreenPlayer {
			m.Player.Activity()
		}
		return m, nil

	case TickMsg:
		m.SpinnerFrame++
		m.snapshot = m.Player.Snapshot()
		return m, TickCmd(tickInterval)

	case PageLoadedMsg:
		if msg.Err != nil {
			m.setError(msg.Err)
		} else if msg.Tab == m.Tab {
			m.StatusMsg = ""
		}
		if msg.Tab == TabHome {
			m.learnCategories()
		}
		m.clampCursor(msg.Tab)
		return m, nil

	case VideoOpenedMsg:
		if m.watching == nil || m.watching.VideoID() != msg.VideoID {
			return m, nil
		}
		if msg.Err != nil {
			m.setError(msg.Err)
			return m, nil
		}
		return m, LoadMediaCmd(m.Player, m.watching, msg.VideoID, msg.Video.MediaURL)

	case MediaLoadedMsg:
		if m.watching == nil || m.watching.VideoID() != msg.VideoID {
			return m, nil
		}
		if msg.Err != nil {
			if !errors.Is(msg.Err, player.ErrSuperseded) {
				m.setError(msg.Err)
			}
			return m, nil
		}
		m.mediaReady = true
		return m, nil

	case EngagementMsg:
		if msg.Err != nil {
			m.Logger.Debug("engagement failed", "action", msg.Action, "error", msg.Err)
			m.setError(msg.Err)
		}
		return m, nil

	case PlayerErrMsg:
		m.Logger.Debug("player command failed", "action", msg.Action, "error", msg.Err)
		m.setError(msg.Err)
		return m, nil
	}

	return m, nil
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.ShowHelp {
		m.ShowHelp = false
		return m, nil
	}

	if m.inputMode != inputNone {
		return m.handleInputKey(msg)
	}

	if key.Matches(msg, Keys.Help) {
		m.ShowHelp = true
		return m, nil
	}

	if m.Screen == ScreenPlayer {
		return m.handlePlayerKey(msg)
	}
	return m.handleBrowseKey(msg)
}

// handleInputKey routes keys to the filter or search input
func (m Model) handleInputKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyEsc:
		if m.inputMode == inputFilter {
			m.filterQuery = ""
		}
		m.closeInput()
		return m, nil

	case tea.KeyEnter:
		mode := m.inputMode
		value := m.input.Value()
		m.closeInput()
		if mode == inputSearch {
			m.searchQuery = strings.TrimSpace(value)
			m.tabs[TabSearch] = tabState{page: domain.DefaultPage}
			return m, m.refetchTab(TabSearch)
		}
		m.filterQuery = value
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if m.inputMode == inputFilter {
		m.filterQuery = m.input.Value()
		m.tabs[m.Tab].cursor = 0
	}
	return m, cmd
}

func (m Model) handleBrowseKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	st := &m.tabs[m.Tab]

	switch {
	case key.Matches(msg, Keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, Keys.Up):
		if st.cursor > 0 {
			st.cursor--
		}
		return m, nil

	case key.Matches(msg, Keys.Down):
		if st.cursor < len(m.visibleVideos())-1 {
			st.cursor++
		}
		return m, nil

	case key.Matches(msg, Keys.NextTab):
		return m.switchTab((m.Tab + 1) % tabCount)

	case key.Matches(msg, Keys.PrevTab):
		return m.switchTab((m.Tab + tabCount - 1) % tabCount)

	case key.Matches(msg, Keys.Home):
		return m.switchTab(TabHome)

	case key.Matches(msg, Keys.Search):
		m.Tab = TabSearch
		m.openInput(inputSearch, "Search videos...", m.searchQuery)
		return m, nil

	case key.Matches(msg, Keys.Subs):
		return m.switchTab(TabSubscriptions)

	case key.Matches(msg, Keys.NextPage):
		page := m.page(m.Tab)
		if page.Page*max(page.Limit, 1) >= page.Total {
			return m, nil
		}
		st.page++
		st.cursor = 0
		return m, m.refetchTab(m.Tab)

	case key.Matches(msg, Keys.PrevPage):
		if st.page <= domain.DefaultPage {
			return m, nil
		}
		st.page--
		st.cursor = 0
		return m, m.refetchTab(m.Tab)

	case key.Matches(msg, Keys.Filter):
		m.openInput(inputFilter, "Filter this page...", m.filterQuery)
		return m, nil

	case key.Matches(msg, Keys.Category):
		if m.Tab != TabHome {
			return m, nil
		}
		m.Category = nextCategory(m.categories, m.Category)
		m.tabs[TabHome] = tabState{page: domain.DefaultPage}
		return m, m.refetchTab(TabHome)

	case key.Matches(msg, Keys.Sort):
		i := slices.Index(sortOrder, m.Sort)
		m.Sort = sortOrder[(i+1)%len(sortOrder)]
		st.page = domain.DefaultPage
		st.cursor = 0
		return m, m.refetchTab(m.Tab)

	case key.Matches(msg, Keys.Refresh):
		return m, m.fetchTab(m.Tab)

	case key.Matches(msg, Keys.Enter):
		videos := m.visibleVideos()
		if st.cursor < 0 || st.cursor >= len(videos) {
			return m, nil
		}
		return m.watch(videos[st.cursor].Video)

	case key.Matches(msg, Keys.Back):
		if m.filterQuery != "" {
			m.filterQuery = ""
			st.cursor = 0
		}
		return m, nil
	}

	return m, nil
}

func (m Model) handlePlayerKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	ctrl := m.Player
	ctrl.Activity()

	switch {
	case key.Matches(msg, Keys.Quit):
		m.leavePlayer()
		return m, tea.Quit

	case key.Matches(msg, Keys.Back):
		return m, m.leavePlayer()

	case key.Matches(msg, Keys.PlayPause):
		return m, PlayerCmd("play/pause", ctrl.TogglePlayPause)

	case key.Matches(msg, Keys.SeekBack):
		return m, PlayerCmd("seek", func() error {
			_, err := ctrl.SeekBy(-seekStep)
			return err
		})

	case key.Matches(msg, Keys.SeekFwd):
		return m, PlayerCmd("seek", func() error {
			_, err := ctrl.SeekBy(seekStep)
			return err
		})

	case key.Matches(msg, Keys.VolumeUp):
		return m, PlayerCmd("volume", func() error {
			ctrl.SetVolume(ctrl.Snapshot().EffectiveVolume() + volumeStep)
			return nil
		})

	case key.Matches(msg, Keys.VolumeDown):
		return m, PlayerCmd("volume", func() error {
			ctrl.SetVolume(ctrl.Snapshot().EffectiveVolume() - volumeStep)
			return nil
		})

	case key.Matches(msg, Keys.Mute):
		return m, PlayerCmd("mute", func() error {
			ctrl.ToggleMute()
			return nil
		})

	case key.Matches(msg, Keys.Slower):
		return m, PlayerCmd("rate", func() error {
			return ctrl.SetPlaybackRate(player.NextRate(ctrl.Snapshot().Rate, -1))
		})

	case key.Matches(msg, Keys.Faster):
		return m, PlayerCmd("rate", func() error {
			return ctrl.SetPlaybackRate(player.NextRate(ctrl.Snapshot().Rate, 1))
		})

	case key.Matches(msg, Keys.Fullscreen):
		// refusals are already surfaced as a toast
		return m, PlayerCmd("fullscreen", func() error {
			_ = ctrl.ToggleFullscreen()
			return nil
		})

	case key.Matches(msg, Keys.Like):
		return m.engage("like", func(ctx context.Context, v *catalog.View) error {
			_, err := v.Like(ctx)
			return err
		})

	case key.Matches(msg, Keys.Dislike):
		return m.engage("dislike", func(ctx context.Context, v *catalog.View) error {
			_, err := v.Dislike(ctx)
			return err
		})

	case key.Matches(msg, Keys.Subscribe):
		return m.engage("subscribe", func(ctx context.Context, v *catalog.View) error {
			_, err := v.Subscribe(ctx)
			return err
		})
	}

	return m, nil
}

// watch opens the player screen for video
func (m Model) watch(video domain.Video) (tea.Model, tea.Cmd) {
	stop := m.leavePlayer()
	m.watching = m.Store.OpenView(video.ID)
	m.mediaReady = false
	m.Screen = ScreenPlayer
	m.StatusMsg = ""
	m.Player.Activity()
	return m, tea.Batch(stop, OpenVideoCmd(m.watching))
}

// leavePlayer closes the watch view. The returned command unloads the
// media it was showing.
func (m *Model) leavePlayer() tea.Cmd {
	if m.watching != nil {
		m.watching.Close()
		m.watching = nil
	}
	m.mediaReady = false
	m.Screen = ScreenBrowse

	snap := m.Player.Snapshot()
	if snap.State == player.StateIdle && snap.URL == "" {
		return nil
	}
	ctrl := m.Player
	return PlayerCmd("stop", func() error {
		return ctrl.UnloadSession(snap.Session)
	})
}

func (m Model) engage(action string, fn func(context.Context, *catalog.View) error) (tea.Model, tea.Cmd) {
	if m.watching == nil {
		return m, nil
	}
	if m.Viewer == nil || !m.Viewer.Authenticated() {
		m.Toasts.Notify(domain.LevelInfo, "Sign in with 'reel login' to "+action)
		return m, nil
	}
	view := m.watching
	return m, EngageCmd(action, func(ctx context.Context) error {
		return fn(ctx, view)
	})
}

func (m Model) switchTab(tab Tab) (tea.Model, tea.Cmd) {
	m.Tab = tab
	m.filterQuery = ""
	if tab == TabSearch && m.searchQuery == "" {
		m.openInput(inputSearch, "Search videos...", "")
		return m, nil
	}
	return m, m.fetchTab(tab)
}

func (m *Model) openInput(mode inputMode, placeholder, value string) {
	m.inputMode = mode
	m.input.Placeholder = placeholder
	m.input.Prompt = "/ "
	if mode == inputSearch {
		m.input.Prompt = "search: "
	}
	m.input.SetValue(value)
	m.input.CursorEnd()
	m.input.Focus()
}

func (m *Model) closeInput() {
	m.inputMode = inputNone
	m.input.Blur()
}

// filterFor builds the request for tab from the browse state
func (m Model) filterFor(tab Tab) domain.Filter {
	f := domain.Filter{
		Page:   m.tabs[tab].page,
		Limit:  m.PageSize,
		SortBy: m.Sort,
	}
	if tab == TabHome {
		f.Category = m.Category
	}
	return f
}

func (m Model) fetchTab(tab Tab) tea.Cmd {
	return FetchTabCmd(m.Store, tab, m.filterFor(tab), m.searchQuery)
}

// refetchTab replaces any fetch of tab still running with one for the
// current browse state
func (m Model) refetchTab(tab Tab) tea.Cmd {
	m.Store.CancelFetch(kindOf(tab))
	return m.fetchTab(tab)
}

// page returns the held page for tab
func (m Model) page(tab Tab) domain.Page {
	switch tab {
	case TabHome:
		page, _ := m.Store.Videos()
		return page
	case TabSearch:
		query, page := m.Store.SearchResults()
		if query != m.searchQuery {
			return domain.EmptyPage()
		}
		return page
	case TabSubscriptions:
		return m.Store.Feed()
	}
	return domain.EmptyPage()
}

// visibleVideos is the current tab's page narrowed by the in-view filter
func (m Model) visibleVideos() []search.FilterResult {
	return search.Filter(m.filterQuery, m.page(m.Tab).Videos)
}

func (m *Model) clampCursor(tab Tab) {
	n := len(search.Filter(m.filterQuery, m.page(tab).Videos))
	st := &m.tabs[tab]
	st.cursor = min(st.cursor, max(n-1, 0))
}

// learnCategories collects categories from unfiltered home pages
func (m *Model) learnCategories() {
	page, filter := m.Store.Videos()
	if filter.Category != "" {
		return
	}
	for _, v := range page.Videos {
		if v.Category != "" && !slices.Contains(m.categories, v.Category) {
			m.categories = append(m.categories, v.Category)
		}
	}
	slices.Sort(m.categories)
}

// nextCategory steps through "" (all) followed by each known category
func nextCategory(categories []string, current string) string {
	if len(categories) == 0 {
		return ""
	}
	i := slices.Index(categories, current)
	if i+1 >= len(categories) {
		return ""
	}
	return categories[i+1]
}

func (m *Model) setError(err error) {
	if errors.Is(err, context.Canceled) || errors.Is(err, domain.ErrFetchInProgress) {
		return
	}
	m.StatusMsg = errorText(err)
	m.StatusIsErr = true
}

func errorText(err error) string {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return "Video not found"
	case errors.Is(err, domain.ErrRateLimited):
		return "Too many requests, slow down"
	case errors.Is(err, domain.ErrNetworkFailure):
		return "Catalog server unreachable"
	case errors.Is(err, domain.ErrAuthFailed):
		return "Session expired"
	case errors.Is(err, context.DeadlineExceeded):
		return "Request timed out"
	default:
		return fmt.Sprintf("Error: %v", err)
	}
}
