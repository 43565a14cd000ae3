package ui

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"canmon/catalog"
	"canmon/pipeline"
)

// trafficView renders the pipeline's visible window. It keeps no copy of the
// stream itself: every draw pulls a fresh bounded slice, so rendering cost is
// capped by the visible capacity regardless of buffer size or frame rate.
// Scroll keys drive the pipeline window directly.
type trafficView struct {
	*tview.Box

	pipe      *pipeline.Pipeline
	cat       *catalog.Catalog
	baseTitle string
}

func newTrafficView(pipe *pipeline.Pipeline, cat *catalog.Catalog, title string) *trafficView {
	v := &trafficView{
		Box:       tview.NewBox().SetBorder(true),
		pipe:      pipe,
		cat:       cat,
		baseTitle: title,
	}
	applyBoxStyle(v.Box, title, false)
	return v
}

func (v *trafficView) SetFocused(focused bool) {
	if v == nil {
		return
	}
	applyBoxStyle(v.Box, v.baseTitle, focused)
}

func (v *trafficView) Draw(screen tcell.Screen) {
	if v == nil {
		return
	}
	v.Box.DrawForSubclass(screen, v)

	x, y, width, height := v.GetInnerRect()
	if width <= 0 || height <= 0 {
		return
	}

	view := v.pipe.VisibleWindow()

	mode := "follow"
	if !view.AutoScroll {
		mode = fmt.Sprintf("pinned @%d", view.Offset)
	}
	if v.pipe.State() == pipeline.Paused {
		mode += " PAUSED"
	}
	v.Box.SetTitle(fmt.Sprintf(" %s [%d/%d %s] ", v.baseTitle, len(view.Slice), view.TotalItems, mode))

	// When the slice is taller than the pane, show its tail in follow mode
	// and its head when pinned.
	start := 0
	if view.AutoScroll && len(view.Slice) > height {
		start = len(view.Slice) - height
	}
	row := 0
	for i := start; i < len(view.Slice) && row < height; i++ {
		f := view.Slice[i]
		line := f.FormatLine()
		if v.cat != nil {
			if d, ok := v.cat.Lookup(f.Class); ok && d.Acronym != "" {
				line += "  " + d.Acronym
			}
		}
		color := tcell.ColorWhite
		if f.IsError {
			color = tcell.ColorRed
		}
		tview.Print(screen, " "+tview.Escape(line), x, y+row, width, tview.AlignLeft, color)
		row++
	}
}

// HandleScroll maps navigation keys onto the pipeline window. Scrolling away
// from the tail pins the view; End (or scrolling back to the tail) resumes
// following.
func (v *trafficView) HandleScroll(event *tcell.EventKey) bool {
	if v == nil || event == nil {
		return false
	}

	_, _, _, height := v.GetInnerRect()
	page := height - 1
	if page < 1 {
		page = 1
	}

	win := v.pipe.Window()
	switch event.Key() {
	case tcell.KeyUp:
		win.ScrollBy(-1)
	case tcell.KeyDown:
		win.ScrollBy(1)
	case tcell.KeyPgUp:
		win.ScrollBy(-page)
	case tcell.KeyPgDn:
		win.ScrollBy(page)
	case tcell.KeyHome:
		win.ScrollTo(0)
	case tcell.KeyEnd:
		win.SetAutoScroll(true)
	case tcell.KeyRune:
		switch event.Rune() {
		case 'k':
			win.ScrollBy(-1)
		case 'j':
			win.ScrollBy(1)
		default:
			return false
		}
	default:
		return false
	}
	return true
}
