package tui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dwizi/rescue-console/internal/rescue"
)

const maxDetailQuotes = 5

func (m model) renderView() string {
	if m.quitting {
		return "rescue-console board closed\n"
	}

	t := newTheme()
	layout := computeLayout(m.width, m.height)

	header := m.renderHeader(t, layout)
	footer := m.renderFooter(t, layout)
	if layout.Compact {
		list := m.renderList(t, layout.Width, layout.CompactListHeight)
		detail := m.renderDetail(t, layout.Width, layout.CompactDetailHeight)
		content := lipgloss.JoinVertical(lipgloss.Left, header, list, detail, footer)
		return t.appBG.Width(layout.Width).Render(content)
	}

	list := m.renderList(t, layout.ListWidth, layout.BodyHeight)
	detail := m.renderDetail(t, layout.DetailWidth, layout.BodyHeight)
	sep := t.panelSubtle.Render(strings.TrimSuffix(strings.Repeat("│\n", layout.BodyHeight), "\n"))
	body := lipgloss.JoinHorizontal(lipgloss.Top, list, sep, detail)
	return t.appBG.Width(layout.Width).Render(lipgloss.JoinVertical(lipgloss.Left, header, body, footer))
}

func (m model) renderHeader(t theme, layout uiLayout) string {
	chip := t.chipWarn.Render("OFFLINE")
	switch {
	case m.errorText != "" && !m.loaded:
		chip = t.chipError.Render("UNREACHABLE")
	case !m.loaded:
		chip = t.chipInfo.Render("LOADING")
	case m.online:
		chip = t.chipSuccess.Render("ONLINE")
	}

	contentWidth := innerWidth(t.headerBox, layout.Width)
	line1 := fillLine(t.brand.Render("Rescue Board"), chip, contentWidth)
	left := trimToWidth(fmt.Sprintf("api: %s | env: %s", m.cfg.AdminAPIURL, fallbackText(m.cfg.Environment, "unset")), maxInt(20, contentWidth/2))
	right := trimToWidth(m.countsLine(), maxInt(20, contentWidth/2))
	line2 := fillLine(t.headerSub.Render(left), t.headerSub.Render(right), contentWidth)
	return sizedStyle(t.headerBox, layout.Width, layout.HeaderHeight).Render(line1 + "\n" + line2)
}

func (m model) countsLine() string {
	if !m.loaded {
		return "no data yet"
	}
	active, inactive := 0, 0
	for _, record := range m.records {
		if record.Status == rescue.StatusInactive {
			inactive++
			continue
		}
		active++
	}
	line := fmt.Sprintf("%d active, %d inactive", active, inactive)
	if m.stats.CycleAt > 0 {
		line += fmt.Sprintf(" | cycle at %d", m.stats.CycleAt)
	}
	if m.stats.Prefix != "" {
		line += " | prefix " + m.stats.Prefix
	}
	return line
}

func (m model) renderList(t theme, width, height int) string {
	contentWidth := innerWidth(t.panelBox, width)
	lines := []string{t.tableHeader.Render(trimToWidth(listHeader(), contentWidth))}
	if len(m.records) == 0 {
		message := "No rescues on the board."
		if !m.loaded {
			message = "Waiting for the first refresh."
		}
		lines = append(lines, t.panelSubtle.Render(message))
		return sizedStyle(t.panelBox, width, height).Render(strings.Join(lines, "\n"))
	}

	visible := maxInt(1, height-1)
	start := 0
	if m.selected >= visible {
		start = m.selected - visible + 1
	}
	for index := start; index < len(m.records) && index < start+visible; index++ {
		record := m.records[index]
		row := trimToWidth(listRow(record), contentWidth)
		style := t.rowOpen
		switch {
		case index == m.selected:
			style = t.rowSelected
		case record.CodeRed:
			style = t.rowCodeRed
		case record.Status == rescue.StatusInactive:
			style = t.rowInactive
		}
		lines = append(lines, style.Render(row))
	}
	return sizedStyle(t.panelBox, width, height).Render(strings.Join(lines, "\n"))
}

func listHeader() string {
	return fmt.Sprintf("%-4s %-20s %-3s %-18s %-9s %s", "#", "CLIENT", "PL", "SYSTEM", "STATUS", "RATS")
}

func listRow(record rescue.Record) string {
	status := record.Status.String()
	if record.CodeRed {
		status = "CR"
	}
	return fmt.Sprintf("%-4s %-20s %-3s %-18s %-9s %d",
		indexLabel(record),
		trimToWidth(fallbackText(record.Client, "?"), 20),
		platformShort(record.Platform),
		trimToWidth(fallbackText(record.System, "-"), 18),
		status,
		len(record.Rats)+len(record.UnidentifiedRats),
	)
}

func (m model) renderDetail(t theme, width, height int) string {
	contentWidth := innerWidth(t.panelBox, width)
	record, ok := m.current()
	if !ok {
		return sizedStyle(t.panelBox, width, height).Render(t.panelTitle.Render("Case") + "\n" + t.panelSubtle.Render("Nothing selected."))
	}

	title := fmt.Sprintf("Case %s", indexLabel(record))
	lines := []string{t.panelTitle.Render(trimToWidth(title, contentWidth))}
	field := func(label, value string) {
		if strings.TrimSpace(value) == "" {
			return
		}
		text := trimToWidth(value, maxInt(1, contentWidth-11))
		lines = append(lines, t.panelLabel.Render(fmt.Sprintf("%-10s", label))+" "+text)
	}
	field("client", record.Client)
	field("nickname", record.IRCNickname)
	field("system", record.System)
	field("platform", record.Platform.Label())
	field("status", record.Status.String())
	if record.CodeRed {
		field("code red", "yes")
	}
	field("language", record.LangID)
	field("operation", record.Title)
	field("rats", strings.Join(ratNames(record), ", "))
	if record.MarkedForDeletion.Marked {
		field("marked", fmt.Sprintf("%s (%s)", record.MarkedForDeletion.Reason, record.MarkedForDeletion.Reporter))
	}
	field("id", record.ID.String())

	if len(record.Quotes) > 0 {
		lines = append(lines, "", t.panelTitle.Render("Quotes"))
		first := maxInt(0, len(record.Quotes)-maxDetailQuotes)
		for index := first; index < len(record.Quotes); index++ {
			quote := record.Quotes[index]
			lines = append(lines, trimToWidth(fmt.Sprintf("[%d] <%s> %s", index, quote.Author, quote.Message), contentWidth))
		}
	}
	return sizedStyle(t.panelBox, width, height).Render(strings.Join(lines, "\n"))
}

func (m model) renderFooter(t theme, layout uiLayout) string {
	contentWidth := innerWidth(t.footerBox, layout.Width)
	status := t.footerOK.Render(trimToWidth("refreshed "+m.lastRefresh.Format("15:04:05"), contentWidth))
	switch {
	case m.errorText != "":
		status = t.footerErr.Render(trimToWidth("error: "+m.errorText, contentWidth))
	case m.loading:
		status = t.footerWarn.Render("refreshing...")
	case !m.loaded:
		status = t.footerInfo.Render("idle")
	}
	helpLine := t.footerInfo.Render(m.help.View(m.keys))
	return sizedStyle(t.footerBox, layout.Width, layout.FooterHeight).Render(helpLine + "\n" + status)
}

func ratNames(record rescue.Record) []string {
	names := make([]string, 0, len(record.Rats)+len(record.UnidentifiedRats))
	for _, rat := range record.Rats {
		names = append(names, rat.Name)
	}
	for _, rat := range record.UnidentifiedRats {
		names = append(names, rat.Name+"?")
	}
	return names
}

func indexLabel(record rescue.Record) string {
	if record.BoardIndex == nil {
		return "-"
	}
	return fmt.Sprintf("#%d", *record.BoardIndex)
}

func platformShort(platform rescue.Platform) string {
	if platform == rescue.PlatformNone {
		return "--"
	}
	return platform.Label()
}

func fillLine(left, right string, width int) string {
	if width <= 0 {
		return strings.TrimSpace(left + " " + right)
	}
	lw := lipgloss.Width(left)
	rw := lipgloss.Width(right)
	if lw+rw+1 > width {
		return left + " " + right
	}
	return left + strings.Repeat(" ", width-lw-rw) + right
}

func trimToWidth(value string, width int) string {
	if width <= 0 {
		return ""
	}
	runes := []rune(strings.TrimSpace(value))
	if len(runes) <= width {
		return string(runes)
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}

func sizedStyle(style lipgloss.Style, width, height int) lipgloss.Style {
	contentWidth := maxInt(1, width-style.GetHorizontalFrameSize())
	contentHeight := maxInt(1, height-style.GetVerticalFrameSize())
	return style.Width(contentWidth).Height(contentHeight)
}

func innerWidth(style lipgloss.Style, width int) int {
	return maxInt(1, width-style.GetHorizontalFrameSize())
}

func fallbackText(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}
