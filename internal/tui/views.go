package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/reel/internal/catalog"
	"github.com/mmcdole/reel/internal/domain"
	"github.com/mmcdole/reel/internal/player"
	"github.com/mmcdole/reel/internal/search"
	"github.com/mmcdole/reel/internal/tui/styles"
)

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	var body string
	if m.Screen == ScreenPlayer {
		body = m.renderPlayer()
	} else {
		body = lipgloss.JoinVertical(lipgloss.Left,
			m.renderTabs(),
			m.renderList(m.Height-ChromeHeight),
		)
	}

	// Pad the body so the footer sits on the last line
	gap := m.Height - lipgloss.Height(body) - 1
	if gap > 0 {
		body += strings.Repeat("\n", gap)
	}
	return body + "\n" + m.renderFooter()
}

func (m Model) renderTabs() string {
	tabs := make([]string, 0, tabCount)
	for t := range tabCount {
		label := fmt.Sprintf("%d %s", t+1, t)
		if t == m.Tab {
			tabs = append(tabs, styles.ActiveTabStyle.Render(label))
		} else {
			tabs = append(tabs, styles.InactiveTabStyle.Render(label))
		}
	}
	bar := lipgloss.JoinHorizontal(lipgloss.Top, tabs...)

	var info []string
	if m.Tab == TabHome {
		category := m.Category
		if category == "" {
			category = "All"
		}
		info = append(info, "category: "+category)
	}
	if m.Tab == TabSearch && m.searchQuery != "" {
		info = append(info, fmt.Sprintf("%q", m.searchQuery))
	}
	info = append(info, "sort: "+string(m.Sort))
	if m.Store.Offline() {
		info = append(info, "offline")
	} else if m.Store.Degraded() {
		info = append(info, "offline copy")
	}
	right := styles.DimStyle.Render(strings.Join(info, " · "))

	gap := max(m.Width-lipgloss.Width(bar)-lipgloss.Width(right)-1, 1)
	return styles.TabBarStyle.Width(m.Width).Render(bar + strings.Repeat(" ", gap) + right)
}

func (m Model) renderList(height int) string {
	if m.inputMode != inputNone {
		height--
	}

	page := m.page(m.Tab)
	results := search.Filter(m.filterQuery, page.Videos)

	var lines []string
	switch {
	case m.Store.Loading(kindOf(m.Tab)) && len(page.Videos) == 0:
		lines = append(lines, RenderSpinner(m.SpinnerFrame)+" "+styles.DimStyle.Render("Loading..."))
	case m.Tab == TabSubscriptions && (m.Viewer == nil || !m.Viewer.Authenticated()):
		lines = append(lines, styles.DimStyle.Render("Sign in with 'reel login' to see your subscriptions"))
	case m.Tab == TabSearch && m.searchQuery == "":
		lines = append(lines, styles.DimStyle.Render("Press 2 to search the catalog"))
	case len(results) == 0:
		lines = append(lines, styles.DimStyle.Render("No videos"))
	default:
		cursor := m.tabs[m.Tab].cursor
		// Keep the cursor in view
		start := 0
		if height > 0 && cursor >= height {
			start = cursor - height + 1
		}
		end := min(start+max(height, 1), len(results))
		for i := start; i < end; i++ {
			lines = append(lines, RenderVideoItem(results[i], i == cursor, m.Width))
		}
	}

	out := strings.Join(lines, "\n")
	if m.inputMode != inputNone {
		out = m.input.View() + "\n" + out
	}
	return out
}

// RenderVideoItem renders one row of a video list
func RenderVideoItem(r search.FilterResult, selected bool, width int) string {
	style := styles.NormalItemStyle
	if selected {
		style = styles.SelectedItemStyle
	}
	v := r.Video

	meta := fmt.Sprintf("%s · %s · %s", v.Uploader.DisplayName(), v.FormattedViews(), v.FormattedDuration())
	metaWidth := lipgloss.Width(meta) + 2
	titleWidth := max(width-metaWidth-4, 10)

	marker := "  "
	switch v.Engagement.Reaction {
	case domain.ReactionLiked:
		marker = styles.LikedStyle.Render("▲ ")
	case domain.ReactionDisliked:
		marker = styles.DislikedStyle.Render("▼ ")
	}

	title := styles.Truncate(v.Title, titleWidth)
	matched := r.MatchedIndexes
	if len(title) < len(v.Title) {
		matched = trimMatches(matched, len(title)-3)
	}
	base := lipgloss.NewStyle().Foreground(style.GetForeground()).Background(style.GetBackground())
	rendered := styles.Highlight(title, matched, base)

	gap := max(titleWidth-lipgloss.Width(title), 1)
	row := marker + rendered + base.Render(strings.Repeat(" ", gap)) + styles.DimStyle.Inherit(base).Render(meta)
	return style.Width(width).Render(row)
}

// trimMatches drops match offsets at or past limit
func trimMatches(matched []int, limit int) []int {
	out := make([]int, 0, len(matched))
	for _, i := range matched {
		if i < limit {
			out = append(out, i)
		}
	}
	return out
}

func (m Model) renderPlayer() string {
	width := max(m.Width-6, 20)
	snap := m.snapshot

	var b strings.Builder
	video := m.Store.Current()
	if m.watching == nil || video == nil || video.ID != m.watching.VideoID() {
		b.WriteString(RenderSpinner(m.SpinnerFrame) + " " + styles.DimStyle.Render("Opening video..."))
		return styles.PlayerFrameStyle.Width(width).Render(b.String())
	}

	b.WriteString(styles.TitleStyle.Render(styles.Truncate(video.Title, width-4)))
	b.WriteString("\n")
	b.WriteString(styles.SubtitleStyle.Render(fmt.Sprintf("%s · %s subscribers · %s",
		video.Uploader.DisplayName(),
		compactCount(video.Uploader.SubscriberCount),
		video.FormattedViews())))
	b.WriteString("\n\n")
	b.WriteString(renderEngagement(*video))
	b.WriteString("\n\n")

	if !m.mediaReady && snap.State == player.StateLoading {
		b.WriteString(RenderSpinner(m.SpinnerFrame) + " " + styles.DimStyle.Render("Loading media..."))
	} else if snap.OverlayVisible {
		b.WriteString(RenderControls(snap, width-6))
	} else {
		b.WriteString(styles.DimStyle.Render("press any key to show controls"))
	}

	return styles.PlayerFrameStyle.Width(width).Render(b.String())
}

func renderEngagement(v domain.Video) string {
	like := fmt.Sprintf("▲ %s", compactCount(v.LikeCount))
	dislike := fmt.Sprintf("▼ %s", compactCount(v.DislikeCount))
	switch v.Engagement.Reaction {
	case domain.ReactionLiked:
		like = styles.LikedStyle.Render(like)
		dislike = styles.DimStyle.Render(dislike)
	case domain.ReactionDisliked:
		like = styles.DimStyle.Render(like)
		dislike = styles.DislikedStyle.Render(dislike)
	default:
		like = styles.DimStyle.Render(like)
		dislike = styles.DimStyle.Render(dislike)
	}

	sub := styles.AccentStyle.Render("Subscribe")
	if v.Engagement.Subscribed {
		sub = styles.SuccessStyle.Render("Subscribed ✓")
	}
	return like + "  " + dislike + "   " + sub
}

// RenderControls renders the transport overlay for a playback snapshot
func RenderControls(snap player.Snapshot, width int) string {
	badge := styles.StateBadgeStyle.Render(strings.ToUpper(snap.State.String()))

	duration := "--:--"
	if snap.Duration > 0 {
		duration = domain.FormatSeconds(snap.Duration)
	}
	times := fmt.Sprintf("%s / %s", domain.FormatSeconds(snap.Elapsed), duration)

	barWidth := max(width-lipgloss.Width(badge)-lipgloss.Width(times)-4, 10)
	bar := RenderProgressBar(snap.Progress(), barWidth)

	volume := fmt.Sprintf("vol %3d%%", int(snap.EffectiveVolume()*100+0.5))
	if snap.Muted {
		volume = "muted"
	}
	extras := []string{volume, fmt.Sprintf("%gx", snap.Rate)}
	if snap.Fullscreen {
		extras = append(extras, "fullscreen")
	}

	top := badge + " " + bar + " " + styles.SubtitleStyle.Render(times)
	return styles.ControlsStyle.Render(top + "\n" + styles.DimStyle.Render(strings.Join(extras, " · ")))
}

// RenderProgressBar renders a fraction in [0,1] as a bar of width cells
func RenderProgressBar(fraction float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(min(max(fraction, 0), 1) * float64(width))
	return styles.AccentStyle.Render(strings.Repeat("━", filled)) +
		styles.DimStyle.Render(strings.Repeat("─", width-filled))
}

func (m Model) renderFooter() string {
	var left string
	if n, ok := m.Toasts.Current(); ok {
		left = styles.ToastStyle(n.Level).Render(n.Message)
	} else if m.StatusMsg != "" {
		if m.StatusIsErr {
			left = styles.ErrorStyle.Render(m.StatusMsg)
		} else {
			left = styles.DimStyle.Render(m.StatusMsg)
		}
	} else if m.Screen == ScreenBrowse && m.Store.Loading(kindOf(m.Tab)) {
		left = RenderSpinner(m.SpinnerFrame) + " " + styles.DimStyle.Render("Loading...")
	} else if m.Screen == ScreenBrowse {
		page := m.page(m.Tab)
		if page.Total > 0 {
			pages := (page.Total + max(page.Limit, 1) - 1) / max(page.Limit, 1)
			left = styles.DimStyle.Render(fmt.Sprintf("page %d/%d · %d videos", page.Page, pages, page.Total))
		}
	}

	var right string
	if m.Screen == ScreenPlayer {
		right = m.help.ShortHelpView(playerHelp{Keys}.ShortHelp())
	} else {
		right = m.help.ShortHelpView(browseHelp{Keys}.ShortHelp())
	}

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 1 {
		return left
	}
	return left + strings.Repeat(" ", gap) + right
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	title := styles.TitleStyle.Render("Keys")
	var km interface {
		FullHelp() [][]key.Binding
	} = browseHelp{Keys}
	if m.Screen == ScreenPlayer {
		km = playerHelp{Keys}
	}
	body := m.help.FullHelpView(km.FullHelp())
	hint := styles.DimStyle.Render("Press any key to return...")

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.PlayerFrameStyle.Render(title+"\n\n"+body+"\n\n"+hint))
}

// RenderSpinner renders a loading spinner
func RenderSpinner(frame int) string {
	return styles.SpinnerStyle.Render(styles.SpinnerFrames[frame%len(styles.SpinnerFrames)])
}

// kindOf maps a tab to the fetch it triggers
func kindOf(tab Tab) catalog.Kind {
	switch tab {
	case TabSearch:
		return catalog.KindSearch
	case TabSubscriptions:
		return catalog.KindSubscriptionFeed
	default:
		return catalog.KindVideos
	}
}

// compactCount renders large counts as 1.2K or 3.4M
func compactCount(n int) string {
	switch {
	case n >= 1_000_000:
		return fmt.Sprintf("%.1fM", float64(n)/1_000_000)
	case n >= 1_000:
		return fmt.Sprintf("%.1fK", float64(n)/1_000)
	default:
		return fmt.Sprintf("%d", n)
	}
}
