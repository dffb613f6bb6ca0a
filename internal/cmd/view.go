package cmd

import (
	"context"
	"io"
	"time"

	"github.com/spf13/cobra"

	"minimg/internal/cache"
	"minimg/internal/config"
	serr "minimg/internal/errors"
	"minimg/internal/gui"
	"minimg/internal/log"
	"minimg/internal/scan"
	"minimg/internal/tui"
	"minimg/internal/watch"
)

type viewOptions struct {
	radius  int
	workers int
	start   int
	gui     bool
}

// viewer runs one of the front ends until the user quits
type viewer func(l *cache.Loader, cfg *config.Config, src watch.Source) error

func runView(cmd *cobra.Command, o *rootOptions, v *viewOptions, args []string) error {
	cfg := o.cfg
	if cmd.Flags().Changed("radius") {
		cfg.Cache.Radius = v.radius
	}
	if cmd.Flags().Changed("workers") {
		cfg.Cache.Workers = v.workers
	}
	if v.gui {
		cfg.UI.Mode = "gui"
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	run := runTUI
	if cfg.UI.Mode == "gui" {
		if !gui.IsGUIAvailable() {
			return serr.New("this build has no desktop viewer, drop --gui or set ui.mode to tui")
		}
		run = runGUI
		o.configureLogging(cmd.ErrOrStderr())
	} else {
		// The terminal belongs to the viewer; only the log file gets lines
		o.configureLogging(io.Discard)
	}
	defer log.Close()

	start := -1
	if cmd.Flags().Changed("start") {
		if v.start < 1 {
			return serr.Wrapf(serr.ErrIndexOutOfRange, "--start %d, images are numbered from 1", v.start)
		}
		start = v.start - 1
	}
	return view(cfg, args, start, run)
}

// view scans roots, runs the viewer over the result and shuts the loader
// down. start < 0 keeps the index chosen by the scan.
func view(cfg *config.Config, roots []string, start int, run viewer) error {
	res, err := scan.All(roots, scan.OptionsFrom(cfg.Scan))
	if err != nil {
		return err
	}
	if start < 0 {
		start = res.Start
	}

	paths := res.Paths()
	l, err := cache.New(paths, start, cfg.Cache.Radius, cfg.Cache.Workers)
	if err != nil {
		return err
	}
	log.LogWithFields(
		log.F("roots", res.Roots),
		log.F("images", len(paths)),
		log.F("start", start),
		log.F("radius", cfg.Cache.Radius),
		log.F("workers", cfg.Cache.Workers),
	).Info("Opening viewer")

	var src watch.Source
	if cfg.Watch.Enabled {
		if w, err := startWatcher(paths); err != nil {
			log.LogWithError(err).Warn("Directory watching disabled")
		} else {
			defer w.Stop()
			src = w
		}
	}

	viewErr := run(l, cfg, src)

	if err := shutdown(l, cfg.Cache.WaitTimeoutMS); err != nil {
		log.LogError(err, "Loader did not shut down cleanly")
		return err
	}
	return viewErr
}

func startWatcher(paths []string) (*watch.Watcher, error) {
	w, err := watch.New(paths)
	if err != nil {
		return nil, err
	}
	if err := w.AddDirectoriesOf(paths); err != nil {
		w.Stop()
		return nil, err
	}
	if err := w.Start(); err != nil {
		w.Stop()
		return nil, err
	}
	log.LogWithFields(log.F("directories", w.Directories())).Debug("Watching for changes")
	return w, nil
}

// shutdown stops the loader, waiting at most timeoutMS (0 waits forever)
func shutdown(l *cache.Loader, timeoutMS int) error {
	ctx := context.Background()
	if timeoutMS > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeoutMS)*time.Millisecond)
		defer cancel()
	}
	return l.Shutdown(ctx)
}

func pollInterval(cfg *config.Config) time.Duration {
	return time.Duration(cfg.Cache.PollIntervalMS) * time.Millisecond
}

func runTUI(l *cache.Loader, cfg *config.Config, src watch.Source) error {
	return tui.Run(l, tui.Options{
		Theme:        cfg.Theme,
		ShowInfo:     cfg.UI.ShowInfo,
		PollInterval: pollInterval(cfg),
		Watch:        src,
	})
}

func runGUI(l *cache.Loader, cfg *config.Config, src watch.Source) error {
	return gui.Run(l, gui.Options{
		ShowInfo:     cfg.UI.ShowInfo,
		PollInterval: pollInterval(cfg),
		Watch:        src,
	})
}
