package tui

import "github.com/charmbracelet/lipgloss"

type theme struct {
	appBG lipgloss.Style
	brand lipgloss.Style

	headerBox lipgloss.Style
	headerSub lipgloss.Style

	panelBox    lipgloss.Style
	panelTitle  lipgloss.Style
	panelSubtle lipgloss.Style
	panelLabel  lipgloss.Style

	footerBox  lipgloss.Style
	footerInfo lipgloss.Style
	footerErr  lipgloss.Style
	footerWarn lipgloss.Style
	footerOK   lipgloss.Style

	chipInfo    lipgloss.Style
	chipWarn    lipgloss.Style
	chipError   lipgloss.Style
	chipSuccess lipgloss.Style

	rowOpen     lipgloss.Style
	rowInactive lipgloss.Style
	rowCodeRed  lipgloss.Style
	rowSelected lipgloss.Style
	tableHeader lipgloss.Style
}

func newTheme() theme {
	border := lipgloss.Color("238")
	text := lipgloss.Color("252")
	muted := lipgloss.Color("246")
	subtle := lipgloss.Color("243")
	accent := lipgloss.Color("111")
	success := lipgloss.Color("78")
	warn := lipgloss.Color("214")
	danger := lipgloss.Color("203")

	return theme{
		appBG: lipgloss.NewStyle().Foreground(text),
		brand: lipgloss.NewStyle().Bold(true).Foreground(accent),

		headerBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, true, false).
			BorderForeground(border).
			Padding(0, 1),
		headerSub: lipgloss.NewStyle().Foreground(muted),

		panelBox:    lipgloss.NewStyle().Padding(0, 1),
		panelTitle:  lipgloss.NewStyle().Bold(true).Foreground(accent),
		panelSubtle: lipgloss.NewStyle().Foreground(subtle),
		panelLabel:  lipgloss.NewStyle().Foreground(muted),

		footerBox: lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), true, false, false, false).
			BorderForeground(border).
			Padding(0, 1),
		footerInfo: lipgloss.NewStyle().Foreground(text),
		footerErr:  lipgloss.NewStyle().Bold(true).Foreground(danger),
		footerWarn: lipgloss.NewStyle().Bold(true).Foreground(warn),
		footerOK:   lipgloss.NewStyle().Bold(true).Foreground(success),

		chipInfo:    lipgloss.NewStyle().Bold(true).Foreground(accent),
		chipWarn:    lipgloss.NewStyle().Bold(true).Foreground(warn),
		chipError:   lipgloss.NewStyle().Bold(true).Foreground(danger),
		chipSuccess: lipgloss.NewStyle().Bold(true).Foreground(success),

		rowOpen:     lipgloss.NewStyle().Foreground(text),
		rowInactive: lipgloss.NewStyle().Foreground(subtle),
		rowCodeRed:  lipgloss.NewStyle().Bold(true).Foreground(danger),
		rowSelected: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255")).Background(lipgloss.Color("236")),
		tableHeader: lipgloss.NewStyle().Bold(true).Foreground(accent),
	}
}
