package ui

import (
	"bytes"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"

	"canmon/catalog"
	"canmon/pipeline"
)

var (
	uiBorderColor = tcell.ColorGray
	uiTitleColor  = tcell.ColorTeal
)

// Dashboard is the tview traffic monitor surface: the virtualized traffic
// pane, a stats pane fed by the main stats loop, and a bounded system log.
type Dashboard struct {
	app       *tview.Application
	scheduler *frameScheduler
	metrics   *Metrics

	pipe *pipeline.Pipeline

	traffic    *trafficView
	statsView  *tview.TextView
	classView  *tview.TextView
	systemView *tview.TextView

	sysLog *systemLog

	focusPrims []tview.Primitive
	focusIdx   int

	ready    chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
}

// NewDashboard constructs the dashboard, or nil when not enabled.
func NewDashboard(pipe *pipeline.Pipeline, cat *catalog.Catalog, targetFPS int, enable bool) *Dashboard {
	if !enable {
		return nil
	}

	app := tview.NewApplication()
	metrics := NewMetrics()

	d := &Dashboard{
		app:     app,
		metrics: metrics,
		pipe:    pipe,
		sysLog:  newSystemLog(200),
		ready:   make(chan struct{}),
		quit:    make(chan struct{}),
	}
	d.scheduler = newFrameScheduler(app, targetFPS, 100*time.Millisecond, metrics.ObserveRender)

	d.traffic = newTrafficView(pipe, cat, "Traffic")
	d.statsView = newBoxedTextView("Stats")
	d.classView = newBoxedTextView("Top Classes")
	d.systemView = newBoxedTextView("System")
	d.systemView.SetScrollable(true)

	d.focusPrims = []tview.Primitive{d.traffic, d.systemView}

	side := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(d.statsView, 12, 0, false).
		AddItem(d.classView, 0, 1, false).
		AddItem(d.systemView, 10, 0, false)
	root := tview.NewFlex().
		AddItem(d.traffic, 0, 3, true).
		AddItem(side, 0, 2, false)

	var once sync.Once
	app.SetBeforeDrawFunc(func(screen tcell.Screen) bool {
		once.Do(func() { close(d.ready) })
		return false
	})
	app.SetInputCapture(d.handleKey)
	app.SetRoot(root, true)
	d.traffic.SetFocused(true)

	return d
}

// Run starts the scheduler and the repaint ticker and blocks in the tview
// event loop until Stop.
func (d *Dashboard) Run() error {
	if d == nil {
		return nil
	}
	d.scheduler.Start()
	go d.repaintLoop()
	return d.app.Run()
}

func (d *Dashboard) repaintLoop() {
	ticker := time.NewTicker(250 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			// Traffic draws from a fresh window snapshot; an empty
			// update is enough to trigger the repaint.
			d.scheduler.Schedule("traffic", func() {})
		case <-d.quit:
			return
		}
	}
}

func (d *Dashboard) handleKey(event *tcell.EventKey) *tcell.EventKey {
	if event == nil {
		return nil
	}
	switch event.Key() {
	case tcell.KeyCtrlC:
		d.Stop()
		return nil
	case tcell.KeyTab:
		d.cycleFocus()
		return nil
	case tcell.KeyRune:
		switch event.Rune() {
		case 'q':
			d.Stop()
			return nil
		case 'p':
			d.togglePause()
			return nil
		case 'c':
			d.pipe.Clear()
			d.metrics.Clear()
			d.AppendSystem("buffer cleared")
			return nil
		}
	}
	if d.app.GetFocus() == d.traffic && d.traffic.HandleScroll(event) {
		return nil
	}
	return event
}

func (d *Dashboard) togglePause() {
	if d.pipe.State() == pipeline.Paused {
		d.pipe.Resume()
		d.AppendSystem("stream resumed")
	} else {
		d.pipe.Pause()
		d.AppendSystem("stream paused (arriving frames are dropped)")
	}
	d.metrics.PauseToggle()
}

func (d *Dashboard) cycleFocus() {
	d.focusIdx = (d.focusIdx + 1) % len(d.focusPrims)
	next := d.focusPrims[d.focusIdx]
	d.traffic.SetFocused(next == d.traffic)
	d.app.SetFocus(next)
}

// WaitReady blocks until the first draw has happened.
func (d *Dashboard) WaitReady() {
	if d == nil {
		return
	}
	<-d.ready
}

// Stop tears the dashboard down. Idempotent.
func (d *Dashboard) Stop() {
	if d == nil {
		return
	}
	d.stopOnce.Do(func() {
		close(d.quit)
		d.scheduler.Stop()
		d.app.Stop()
	})
}

// SetSnapshot installs a stats snapshot built by the stats loop.
func (d *Dashboard) SetSnapshot(snapshot Snapshot) {
	if d == nil {
		return
	}
	statsText := strings.Join(snapshot.StatsLines, "\n")
	classText := strings.Join(snapshot.ClassLines, "\n")
	d.scheduler.Schedule("stats", func() {
		d.statsView.SetText(statsText)
		d.classView.SetText(classText)
	})
}

// AppendSystem adds one line to the system pane.
func (d *Dashboard) AppendSystem(line string) {
	if d == nil {
		return
	}
	d.sysLog.Append(line)
	d.scheduler.Schedule("system", func() {
		d.systemView.SetText(strings.Join(d.sysLog.Lines(), "\n"))
		d.systemView.ScrollToEnd()
	})
}

// SystemWriter adapts AppendSystem into an io.Writer so the standard logger
// can be pointed at the system pane.
func (d *Dashboard) SystemWriter() io.Writer {
	if d == nil {
		return io.Discard
	}
	return &lineWriter{sink: d.AppendSystem}
}

type lineWriter struct {
	mu   sync.Mutex
	buf  bytes.Buffer
	sink func(string)
}

func (w *lineWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.buf.Write(p)
	for {
		line, err := w.buf.ReadString('\n')
		if err != nil {
			w.buf.WriteString(line)
			break
		}
		w.sink(strings.TrimRight(line, "\r\n"))
	}
	return len(p), nil
}

func newBoxedTextView(title string) *tview.TextView {
	tv := tview.NewTextView()
	tv.SetBorder(true)
	applyBoxStyle(tv.Box, title, false)
	return tv
}

func applyBoxStyle(box *tview.Box, title string, focused bool) {
	border := uiBorderColor
	if focused {
		border = uiTitleColor
	}
	box.SetBorderColor(border).
		SetTitleColor(uiTitleColor).
		SetTitle(" " + title + " ").
		SetTitleAlign(tview.AlignLeft)
}
