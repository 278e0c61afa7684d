package tui

const (
	compactWidthBreakpoint  = 100
	compactHeightBreakpoint = 24
)

type uiLayout struct {
	Width  int
	Height int

	Compact bool

	HeaderHeight int
	FooterHeight int
	BodyHeight   int

	ListWidth   int
	DetailWidth int

	CompactListHeight   int
	CompactDetailHeight int
}

// computeLayout splits the body into the case list and the detail pane.
// Narrow terminals stack the detail pane under the list.
func computeLayout(width, height int) uiLayout {
	if width < 40 {
		width = 40
	}
	if height < 14 {
		height = 14
	}

	layout := uiLayout{
		Width:        width,
		Height:       height,
		HeaderHeight: 3,
		FooterHeight: 3,
	}
	layout.BodyHeight = maxInt(6, height-layout.HeaderHeight-layout.FooterHeight)

	layout.Compact = width < compactWidthBreakpoint || height < compactHeightBreakpoint
	if layout.Compact {
		layout.ListWidth = width
		layout.DetailWidth = width
		layout.CompactDetailHeight = maxInt(4, layout.BodyHeight/3)
		layout.CompactListHeight = maxInt(3, layout.BodyHeight-layout.CompactDetailHeight)
		return layout
	}

	layout.DetailWidth = clampInt(width*38/100, 36, 60)
	layout.ListWidth = maxInt(40, width-layout.DetailWidth-1)
	return layout
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func clampInt(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}
