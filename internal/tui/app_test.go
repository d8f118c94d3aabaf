package tui

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/reel/internal/adapter"
	"github.com/mmcdole/reel/internal/adapter/source/fallback"
	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/notify"
	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/player/sim"
)

func newTestModel(t *testing.T, viewer domain.Viewer) Model {
	t.Helper()
	toasts := notify.NewQueue(nil, adapter.NullLogger())
	store := catalog.New(nil, fallback.MustLoad(), viewer, toasts, adapter.NullLogger())
	t.Cleanup(func() { store.Close() })
	ctrl := player.NewController(sim.New(), player.DefaultConfig(), toasts, adapter.NullLogger())
	t.Cleanup(func() { ctrl.Close() })

	if _, err := store.FetchVideos(context.Background(), domain.Filter{}); err != nil {
		t.Fatalf("FetchVideos: %v", err)
	}

	m := NewModel(store, ctrl, toasts, viewer, 20, adapter.NullLogger())
	return update(t, m, tea.WindowSizeMsg{Width: 100, Height: 30}, PageLoadedMsg{Tab: TabHome})
}

func update(t *testing.T, m Model, msgs ...tea.Msg) Model {
	t.Helper()
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestBrowseLearnsCategories(t *testing.T) {
	m := newTestModel(t, adapter.LocalSession(""))
	if len(m.categories) == 0 {
		t.Fatal("categories should be learned from the home page")
	}
	if !strings.Contains(m.View(), "Home") {
		t.Error("browse view should show the tab bar")
	}
}

func TestEnterOpensPlayerAndBackCloses(t *testing.T) {
	m := newTestModel(t, adapter.LocalSession(""))
	m = update(t, m, keyRunes("j"))
	if m.tabs[TabHome].cursor != 1 {
		t.Fatalf("cursor = %d, want 1", m.tabs[TabHome].cursor)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)
	if m.Screen != ScreenPlayer || m.watching == nil || cmd == nil {
		t.Fatal("enter should open the player and fetch the video")
	}
	view := m.watching

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.Screen != ScreenBrowse || m.watching != nil {
		t.Error("esc should return to browsing")
	}
	if !view.Closed() {
		t.Error("leaving the player should close the watch view")
	}
}

func TestEngagementNeedsSignIn(t *testing.T) {
	m := newTestModel(t, adapter.NewSession(adapter.ServerConfig{}))
	next, _ := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(Model)

	_, cmd := m.Update(keyRunes("L"))
	if cmd != nil {
		t.Error("like should not be sent for an anonymous viewer")
	}
	n, ok := m.Toasts.Current()
	if !ok || !strings.Contains(n.Message, "reel login") {
		t.Errorf("expected a sign-in hint, got %+v", n)
	}
}

func TestFilterNarrowsList(t *testing.T) {
	m := newTestModel(t, adapter.LocalSession(""))
	all := len(m.visibleVideos())

	m = update(t, m, keyRunes("/"))
	if m.inputMode != inputFilter {
		t.Fatal("/ should open the filter input")
	}
	m = update(t, m, keyRunes("zzzzqqq"), tea.KeyMsg{Type: tea.KeyEnter})
	if got := len(m.visibleVideos()); got >= all {
		t.Errorf("filter should narrow %d videos, got %d", all, got)
	}

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if got := len(m.visibleVideos()); got != all {
		t.Errorf("esc should clear the filter, got %d of %d", got, all)
	}
}

func TestNextCategory(t *testing.T) {
	cats := []string{"Devotional", "Music", "Punjabi"}
	tests := []struct {
		current string
		want    string
	}{
		{"", "Devotional"},
		{"Devotional", "Music"},
		{"Punjabi", ""},
		{"Unknown", "Devotional"},
	}
	for _, tt := range tests {
		if got := nextCategory(cats, tt.current); got != tt.want {
			t.Errorf("nextCategory(%q) = %q, want %q", tt.current, got, tt.want)
		}
	}
	if got := nextCategory(nil, "x"); got != "" {
		t.Errorf("no categories should mean all, got %q", got)
	}
}

func TestRenderProgressBar(t *testing.T) {
	for _, f := range []float64{-1, 0, 0.5, 1, 2} {
		if w := lipgloss.Width(RenderProgressBar(f, 20)); w != 20 {
			t.Errorf("RenderProgressBar(%v) width = %d, want 20", f, w)
		}
	}
}

func TestLeavingPlayerUnloadsMedia(t *testing.T) {
	m := newTestModel(t, adapter.LocalSession(""))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	if m.Screen != ScreenPlayer {
		t.Fatal("enter should open the player")
	}

	video, err := m.watching.Load(context.Background())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := m.Player.Load(context.Background(), video.MediaURL); err != nil {
		t.Fatalf("player Load: %v", err)
	}
	if err := m.Player.TogglePlayPause(); err != nil {
		t.Fatalf("TogglePlayPause: %v", err)
	}

	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEsc})
	m = next.(Model)
	if cmd == nil {
		t.Fatal("leaving the player should unload the media")
	}
	if msg := cmd(); msg != nil {
		t.Fatalf("unload failed: %+v", msg)
	}

	snap := m.Player.Snapshot()
	if m.Screen != ScreenBrowse || snap.State != player.StateIdle || snap.URL != "" {
		t.Errorf("after leaving: screen=%d state=%s url=%q", m.Screen, snap.State, snap.URL)
	}
}

func TestLeavingPlayerAbandonsMediaLoad(t *testing.T) {
	m := newTestModel(t, adapter.LocalSession(""))
	m = update(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	view := m.watching
	load := LoadMediaCmd(m.Player, view, view.VideoID(), "https://media.example/a.mp4")

	m = update(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	msg, ok := load().(MediaLoadedMsg)
	if !ok || !errors.Is(msg.Err, context.Canceled) {
		t.Fatalf("load after leaving should be abandoned, got %+v", msg)
	}
	if got := m.Player.Snapshot().State; got != player.StateIdle {
		t.Errorf("state = %s, want idle", got)
	}
}
