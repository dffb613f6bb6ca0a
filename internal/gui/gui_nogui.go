//go:build nogui

package gui

import (
	"time"

	"minimg/internal/cache"
	serr "minimg/internal/errors"
	"minimg/internal/watch"
)

// Options configures the viewer
type Options struct {
	PollInterval time.Duration
	ShowInfo     bool
	Watch        watch.Source
}

// Run is a stub for builds with the GUI disabled
func Run(l *cache.Loader, opts Options) error {
	return serr.New("GUI not available in this build, use the terminal viewer")
}

// IsGUIAvailable returns whether the GUI is available in this build
func IsGUIAvailable() bool {
	return false
}
