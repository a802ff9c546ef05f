package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/geonames"
	"github.com/philtim/timearchitect/session"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")).
			Padding(1, 0)

	hintStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))

	cursorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true)

	bannerStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("230")).
			Background(lipgloss.Color("62")).
			Padding(0, 1)

	ringingStyle = lipgloss.NewStyle().
			Border(lipgloss.DoubleBorder()).
			BorderForeground(lipgloss.Color("196")).
			Foreground(lipgloss.Color("196")).
			Bold(true).
			Align(lipgloss.Center).
			Padding(1, 4)
)

// View renders the UI
func (m model) View() string {
	if m.err != nil {
		return fmt.Sprintf("Error: %v\n\nPress 'q' to quit", m.err)
	}

	if m.quitting {
		return "Goodbye!\n"
	}

	if !m.ready {
		return "Initializing..."
	}

	switch m.state {
	case viewMain:
		return m.renderMain()
	case viewAlarm:
		return m.renderAlarm()
	case viewSettings:
		return m.renderSettings()
	case viewAdd:
		return m.renderAdd()
	case viewDelete:
		return m.renderDelete()
	case viewConfirm:
		return m.renderConfirm()
	}

	return ""
}

// renderMain renders the active zone, the alarm and the dashboard grid
func (m model) renderMain() string {
	var parts []string

	if m.ringing() {
		parts = append(parts, m.renderRinging())
	}
	parts = append(parts, renderActiveZone(m.snap.Zone, m.width))
	parts = append(parts, renderAlarmStatus(m.snap.Alarm))
	if banner := m.bannerText(); banner != "" {
		parts = append(parts, bannerStyle.Render(banner))
	}
	parts = append(parts, renderClocks(m.dashboard, m.snap.Zone.Code, m.width))

	m.viewport.SetContent(strings.Join(parts, "\n"))

	return fmt.Sprintf("%s\n%s", m.viewport.View(), m.renderCommandBar())
}

func (m model) renderRinging() string {
	req := m.snap.Alarm.Ringing
	text := fmt.Sprintf("⏰ ALARM  %s (%s)\n\n%s: Stop | z: Snooze %dm",
		req.Target, req.Zone, keyHint(m.snap.Alarm.Preferences.StopKey), snoozeMinutes)
	return ringingStyle.Render(text)
}

// renderActiveZone renders the selected zone as the large card at the top
func renderActiveZone(z session.ZoneView, width int) string {
	cardWidth := width - 8
	if cardWidth < 30 {
		cardWidth = 30
	}

	center := lipgloss.NewStyle().Align(lipgloss.Center).Width(cardWidth)
	title := center.Bold(true).Foreground(lipgloss.Color("86")).Render(fmt.Sprintf("%s  %s", z.Code, z.Label))
	clockLine := center.Bold(true).Foreground(lipgloss.Color("205")).Render(z.Time)

	detail := fmt.Sprintf("%s  |  %s", z.Date, z.Offset)
	if z.DST {
		detail += "  |  DST"
	}
	detailLine := center.Foreground(lipgloss.Color("241")).Render(detail)

	var lines []string
	lines = append(lines, title, clockLine, detailLine)
	if z.Location != "" {
		lines = append(lines, center.Foreground(lipgloss.Color("241")).Render(z.Location))
	}

	return lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("205")).
		Padding(0, 2).
		Margin(1, 1, 0, 1).
		Render(lipgloss.JoinVertical(lipgloss.Left, lines...))
}

func renderAlarmStatus(a session.AlarmView) string {
	style := lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Padding(0, 2)
	switch {
	case a.Ringing != nil && a.State == alarm.Ringing.String():
		return style.Foreground(lipgloss.Color("196")).Render(fmt.Sprintf("Alarm ringing: %s (%s)", a.Ringing.Target, a.Ringing.Zone))
	case a.Pending != nil:
		return style.Render(fmt.Sprintf("Alarm set for %s (%s)", a.Pending.Target, a.Pending.Zone))
	default:
		return style.Render("No alarm set")
	}
}

// renderAlarm renders the alarm entry view
func (m model) renderAlarm() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Set Alarm"))
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "Time in %s (24h HH:MM):\n", m.snap.Zone.Code)
	b.WriteString(m.alarmInput.View())
	b.WriteString("\n\n")

	if banner := m.bannerText(); banner != "" {
		b.WriteString(bannerStyle.Render(banner))
		b.WriteString("\n\n")
	}

	b.WriteString(hintStyle.Render("Enter: Set | ESC: Cancel"))
	return b.String()
}

// renderSettings renders the alarm settings view
func (m model) renderSettings() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Alarm Settings"))
	b.WriteString("\n\n")

	rows := []string{
		fmt.Sprintf("Sound:     %s", alarm.SoundByID(m.settings.Sound).Name),
		fmt.Sprintf("Volume:    %s %d%%", volumeBar(m.settings.Volume), int(m.settings.Volume*100+0.5)),
		fmt.Sprintf("Stop key:  %s", keyHint(m.settings.StopKey)),
	}
	for i, row := range rows {
		if i == m.settingsCursor {
			b.WriteString(cursorStyle.Render("> " + row))
		} else {
			b.WriteString("  " + row)
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if banner := m.bannerText(); banner != "" {
		b.WriteString(bannerStyle.Render(banner))
		b.WriteString("\n\n")
	}
	b.WriteString(hintStyle.Render("↑/↓: Navigate | ←/→: Change | p: Preview | Enter: Save | ESC: Cancel"))
	return b.String()
}

func volumeBar(v float64) string {
	filled := int(v*10 + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", 10-filled)
}

// renderAdd renders the add zone view
func (m model) renderAdd() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Add Zone"))
	b.WriteString("\n\n")

	if !m.cities.IsReady() {
		if err := m.cities.Err(); err != nil {
			fmt.Fprintf(&b, "Error loading city database: %v\n", err)
		} else {
			b.WriteString("Loading city database...\n")
		}
		b.WriteString("\n")
		b.WriteString(hintStyle.Render("Press ESC to cancel"))
		return b.String()
	}

	b.WriteString("Search city (min 3 characters):\n")
	b.WriteString(m.searchInput.View())
	b.WriteString("\n\n")

	if len(m.searchInput.Value()) < 3 {
		b.WriteString(hintStyle.Render("Type at least 3 characters to search..."))
	} else if len(m.searchResults) == 0 {
		b.WriteString(hintStyle.Render("No cities found"))
	} else {
		fmt.Fprintf(&b, "Results (%d):\n", len(m.searchResults))
		now := m.session.Now()
		start, end := window(m.selectedResult, len(m.searchResults), 10)
		for i, city := range m.searchResults[start:end] {
			code := m.cfg.UniqueCode(geonames.SuggestCode(city, now))
			line := fmt.Sprintf("  %-5s %s, %s (%s)", code, city.Name, city.CountryCode, city.Timezone)
			if start+i == m.selectedResult {
				line = cursorStyle.Render("> " + line)
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\n")
	b.WriteString(hintStyle.Render("↑/↓: Navigate | Enter: Select | ESC: Cancel"))

	return b.String()
}

// window returns the slice bounds of at most size rows that keep selected
// visible.
func window(selected, total, size int) (int, int) {
	start := 0
	if selected >= size {
		start = selected - size + 1
	}
	return start, min(start+size, total)
}

// renderDelete renders the delete zone view
func (m model) renderDelete() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Delete Zones"))
	b.WriteString("\n\n")

	for i, code := range m.deleteList {
		checkbox := " "
		if m.deleteSelected[i] {
			checkbox = "x"
		}
		line := fmt.Sprintf("  [%s] %s", checkbox, code)

		if i == m.deleteCursor {
			line = cursorStyle.Render("> " + line)
		} else {
			line = "  " + line
		}

		b.WriteString(line)
		b.WriteString("\n")
	}

	b.WriteString("\n")
	if banner := m.bannerText(); banner != "" {
		b.WriteString(bannerStyle.Render(banner))
		b.WriteString("\n\n")
	}
	b.WriteString(hintStyle.Render("↑/↓: Navigate | Space: Toggle | Enter: Delete | ESC: Cancel"))

	return b.String()
}

// renderConfirm renders the confirmation dialog
func (m model) renderConfirm() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Confirm"))
	b.WriteString("\n\n")

	b.WriteString(m.confirmMsg)
	b.WriteString("\n\n")
	b.WriteString(hintStyle.Render("y: Yes | n/ESC: No"))

	return b.String()
}

// renderCommandBar renders the command bar at the bottom
func (m model) renderCommandBar() string {
	barStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("240")).
		Background(lipgloss.Color("235")).
		Padding(0, 1)

	commands := "←/→: Zone | t: Alarm | c: Cancel | s: Settings"
	if m.cfg != nil {
		if m.cities != nil {
			commands += " | a: Add"
		}
		commands += " | d: Delete"
	}
	commands += " | q: Quit"
	leftContent := barStyle.Render(commands)

	var status string
	switch {
	case m.cities == nil:
		status = m.snap.Alarm.State
	case m.geonamesReady:
		status = "GeoNames: Ready"
	default:
		status = fmt.Sprintf("%s Loading GeoNames...", spinnerFrames[m.spinnerFrame])
	}
	rightContent := barStyle.Render(status)

	spacingWidth := m.width - lipgloss.Width(leftContent) - lipgloss.Width(rightContent)
	if spacingWidth < 0 {
		spacingWidth = 0
	}
	spacing := strings.Repeat(" ", spacingWidth)

	return lipgloss.NewStyle().Background(lipgloss.Color("235")).Render(leftContent + spacing + rightContent)
}

// renderClocks renders every zone in a grid layout
func renderClocks(views []session.ZoneView, active string, width int) string {
	if len(views) == 0 {
		return hintStyle.Align(lipgloss.Center).Padding(2, 4).Render("Press 'a' to add a zone")
	}

	cols := calculateColumns(views, width)
	rows := (len(views) + cols - 1) / cols

	// Each card: border (2) + padding (4) + margins (2)
	cardOverhead := 8
	cardWidth := width/cols - cardOverhead
	if cardWidth < 20 {
		cardWidth = 20
	}

	var cards []string
	for _, v := range views {
		cards = append(cards, renderClockCard(v, cardWidth, v.Code == active))
	}

	var lines []string
	for row := 0; row < rows; row++ {
		var rowCards []string
		for col := 0; col < cols; col++ {
			if idx := row*cols + col; idx < len(cards) {
				rowCards = append(rowCards, cards[idx])
			}
		}
		if len(rowCards) > 0 {
			lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, rowCards...))
		}
	}

	return strings.Join(lines, "\n")
}

// renderClockCard renders a single zone card
func renderClockCard(v session.ZoneView, width int, active bool) string {
	nameStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("86")).
		Align(lipgloss.Center).
		Width(width).
		PaddingTop(1)

	timeStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Align(lipgloss.Center).
		Width(width).
		MarginTop(1).
		MarginBottom(1)

	dateStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color("241")).
		Align(lipgloss.Center).
		Width(width).
		PaddingBottom(1)

	border := lipgloss.Color("62")
	if active {
		border = lipgloss.Color("205")
	}
	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(border).
		Padding(0, 2).
		Margin(1, 1, 0, 1) // Top, Right, Bottom, Left margins

	name := v.Code
	if v.Location != "" {
		name = fmt.Sprintf("%s · %s", v.Code, v.Location)
	}

	content := lipgloss.JoinVertical(lipgloss.Left,
		nameStyle.Render(strings.ToUpper(name)),
		timeStyle.Render(v.Time),
		dateStyle.Render(fmt.Sprintf("%s | %s", v.Offset, v.Delta)),
	)

	return cardStyle.Render(content)
}

// calculateColumns determines the number of columns based on terminal width
// and the longest card title
func calculateColumns(views []session.ZoneView, width int) int {
	maxTitleLen := 0
	for _, v := range views {
		n := lipgloss.Width(v.Code) + 3 + lipgloss.Width(v.Location)
		if n > maxTitleLen {
			maxTitleLen = n
		}
	}

	// The offset line, "UTC +5.5 | +10h 30m", is about 27 characters
	minContentWidth := maxTitleLen
	if minContentWidth < 27 {
		minContentWidth = 27
	}
	minCardWidth := minContentWidth + 8

	if width >= minCardWidth*4 {
		return 4
	}
	if width >= minCardWidth*2 {
		return 2
	}
	return 1
}
