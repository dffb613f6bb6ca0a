//go:build !nogui

// Package gui is the desktop viewer built on fyne. It is a cache.Sink: a
// Pump goroutine delivers every resolved image to it.
package gui

import (
	"context"
	"fmt"
	"image/color"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/widget"
	"github.com/dustin/go-humanize"

	"minimg/internal/cache"
	"minimg/internal/decode"
	"minimg/internal/log"
	"minimg/internal/watch"
)

// Options configures the viewer
type Options struct {
	PollInterval time.Duration
	ShowInfo     bool
	// Watch, if set, feeds directory change notices
	Watch watch.Source
}

// Viewer is the GUI window showing one image at a time
type Viewer struct {
	app    fyne.App
	window fyne.Window
	loader *cache.Loader
	opts   Options

	image   *canvas.Image
	errText *canvas.Text
	title   *widget.Label
	status  *widget.Label
	info    *widget.Label

	mu       sync.Mutex
	identity string
	current  *decode.Image
	number   string
	showInfo bool
	err      error
}

// IsGUIAvailable returns whether the GUI is available in this build
func IsGUIAvailable() bool {
	return true
}

// Run opens the viewer window and blocks until it is closed. The caller owns
// the loader and shuts it down afterwards.
func Run(l *cache.Loader, opts Options) error {
	a := app.NewWithID("io.github.minimg")
	v := NewViewer(a, l, opts)
	return v.Run(context.Background())
}

// NewViewer builds the window for l on a
func NewViewer(a fyne.App, l *cache.Loader, opts Options) *Viewer {
	if opts.PollInterval <= 0 {
		opts.PollInterval = cache.DefaultPollInterval
	}
	v := &Viewer{
		app:      a,
		loader:   l,
		opts:     opts,
		showInfo: opts.ShowInfo,
		image:    canvas.NewImageFromImage(nil),
		errText:  canvas.NewText("", color.NRGBA{R: 255, G: 80, B: 80, A: 255}),
		title:    widget.NewLabel("decoding..."),
		status:   widget.NewLabel(""),
		info:     widget.NewLabel(""),
	}
	v.image.FillMode = canvas.ImageFillContain
	v.image.ScaleMode = canvas.ImageScaleSmooth
	v.errText.Alignment = fyne.TextAlignCenter
	v.errText.Hide()
	v.info.Wrapping = fyne.TextWrapWord
	if !v.showInfo {
		v.info.Hide()
	}

	v.window = a.NewWindow("minimg")
	v.window.SetContent(container.NewBorder(
		v.title,
		v.status,
		nil,
		v.info,
		container.NewStack(v.image, container.NewCenter(v.errText)),
	))
	v.window.Resize(fyne.NewSize(1024, 768))
	v.window.Canvas().SetOnTypedKey(v.HandleKey)
	v.window.Canvas().SetOnTypedRune(v.HandleRune)
	return v
}

// Window returns the main window
func (v *Viewer) Window() fyne.Window {
	return v.window
}

// Run pumps results into the window until it closes or the loader stops
func (v *Viewer) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pumped := make(chan error, 1)
	go func() {
		err := cache.Pump(ctx, v.loader, v, v.opts.PollInterval)
		if err != nil {
			log.LogWithError(err).Error("Loader failed, closing viewer")
			v.setErr(err)
			v.app.Quit()
		}
		pumped <- err
	}()
	go v.WatchChanges(ctx)

	v.window.ShowAndRun()
	cancel()
	if err := <-pumped; err != nil {
		return err
	}
	return v.Err()
}

// Err returns the error that closed the viewer, if any
func (v *Viewer) Err() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.err
}

func (v *Viewer) setErr(err error) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.err == nil {
		v.err = err
	}
}

// Identity returns the identity of the image on screen
func (v *Viewer) Identity() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.identity
}

// Show implements cache.Sink
func (v *Viewer) Show(identity string, img *decode.Image) {
	v.mu.Lock()
	v.identity = identity
	v.current = img
	v.mu.Unlock()

	v.errText.Hide()
	v.image.Image = img.Pixels
	v.image.Show()
	v.image.Refresh()
	v.title.SetText(identity)
	v.window.SetTitle("minimg - " + identity)
	v.refreshStatus()
}

// ShowError implements cache.Sink
func (v *Viewer) ShowError(identity string, err error) {
	v.mu.Lock()
	v.identity = identity
	v.current = nil
	v.mu.Unlock()

	v.image.Hide()
	v.errText.Text = err.Error()
	v.errText.Show()
	v.errText.Refresh()
	v.title.SetText(identity + " (cannot display)")
	v.window.SetTitle("minimg - " + identity)
	v.refreshStatus()
}

// HandleKey handles named keys; printable keys arrive through HandleRune
func (v *Viewer) HandleKey(ev *fyne.KeyEvent) {
	switch ev.Name {
	case fyne.KeyLeft:
		v.send(cache.Move(cache.Left))
	case fyne.KeyRight:
		v.send(cache.Move(cache.Right))
	case fyne.KeyHome:
		v.send(cache.Move(cache.First))
	case fyne.KeyEnd:
		v.send(cache.Move(cache.Last))
	case fyne.KeyReturn, fyne.KeyEnter:
		v.gotoNumber()
	case fyne.KeyEscape:
		v.mu.Lock()
		pending := v.number != ""
		v.number = ""
		v.mu.Unlock()
		if !pending {
			v.app.Quit()
		}
		v.refreshStatus()
	}
}

// HandleRune handles the letter and digit bindings
func (v *Viewer) HandleRune(r rune) {
	switch {
	case r >= '0' && r <= '9':
		v.mu.Lock()
		if len(v.number) < 9 {
			v.number += string(r)
		}
		v.mu.Unlock()
		v.refreshStatus()
	case r == 'h':
		v.send(cache.Move(cache.Left))
	case r == 'l':
		v.send(cache.Move(cache.Right))
	case r == 'g':
		v.send(cache.Move(cache.First))
	case r == 'G':
		v.send(cache.Move(cache.Last))
	case r == 'i':
		v.mu.Lock()
		v.showInfo = !v.showInfo
		show := v.showInfo
		v.mu.Unlock()
		if show {
			v.info.Show()
		} else {
			v.info.Hide()
		}
		v.refreshStatus()
	case r == 'q':
		v.app.Quit()
	}
}

func (v *Viewer) gotoNumber() {
	v.mu.Lock()
	number := v.number
	v.number = ""
	v.mu.Unlock()
	if number == "" {
		return
	}
	n, _ := strconv.Atoi(number)
	// numbers are 1-based on screen
	v.send(cache.Goto(n - 1))
}

func (v *Viewer) send(req cache.Request) {
	if _, err := v.loader.Send(req); err != nil {
		log.LogWithError(err).Warn("Request rejected")
		v.setErr(err)
		v.app.Quit()
	}
}

// WatchChanges refreshes the change notice on every directory change until
// ctx ends or the source closes. It returns at once without a source.
func (v *Viewer) WatchChanges(ctx context.Context) {
	if v.opts.Watch == nil {
		return
	}
	changes := v.opts.Watch.Changes()
	for {
		select {
		case <-ctx.Done():
			return
		case c, ok := <-changes:
			if !ok {
				return
			}
			if c.Kind == watch.Modified {
				continue
			}
			v.refreshStatus()
		}
	}
}

// StatusText returns the text of the status line
func (v *Viewer) StatusText() string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.statusTextLocked()
}

func (v *Viewer) statusTextLocked() string {
	var parts []string
	if v.number != "" {
		parts = append(parts, "go to: "+v.number)
	}
	if img := v.current; img != nil {
		parts = append(parts, fmt.Sprintf("%dx%d %s %s", img.Width(), img.Height(), img.Format, humanize.Bytes(uint64(img.Size))))
	}
	stats := v.loader.Stats()
	parts = append(parts, fmt.Sprintf("cache %d/%d", stats.Read+stats.Err, v.loader.Len()),
		humanize.Bytes(uint64(stats.ResidentBytes)))
	if v.opts.Watch != nil {
		if notice := v.opts.Watch.Summary().Notice(); notice != "" {
			parts = append(parts, notice)
		}
	}
	return strings.Join(parts, " · ")
}

func (v *Viewer) infoTextLocked() string {
	img := v.current
	if img == nil {
		return ""
	}
	lines := []string{
		"File: " + img.Name(),
		"Format: " + img.Format,
		"MIME: " + img.MIME,
		fmt.Sprintf("Size: %dx%d", img.Width(), img.Height()),
		"File size: " + humanize.Bytes(uint64(img.Size)),
	}
	keys := make([]string, 0, len(img.Meta))
	for k := range img.Meta {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lines = append(lines, k+": "+img.Meta[k])
	}
	return strings.Join(lines, "\n")
}

func (v *Viewer) refreshStatus() {
	v.mu.Lock()
	status := v.statusTextLocked()
	info := v.infoTextLocked()
	v.mu.Unlock()
	v.status.SetText(status)
	v.info.SetText(info)
}
