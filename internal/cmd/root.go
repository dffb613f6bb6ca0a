// Package cmd holds the cobra commands of the minimg binary.
package cmd

import (
	"io"

	"github.com/spf13/cobra"

	"minimg/internal/config"
	"minimg/internal/log"
)

var version = "dev"

// rootOptions carries the persistent flags and the loaded configuration
type rootOptions struct {
	cfgFile string
	debug   bool
	jsonLog bool
	logFile string

	cfg *config.Config
	// cfgErr is reported once logging is configured
	cfgErr error
}

// NewRootCmd builds the command tree. The root command itself is the viewer.
func NewRootCmd() *cobra.Command {
	o := &rootOptions{}
	v := &viewOptions{}

	// rootCmd represents the base command
	rootCmd := &cobra.Command{
		Use:   "minimg [path]...",
		Short: "A minimal image viewer that decodes ahead of you",
		Long: `minimg shows the images of a directory one at a time. While you look at
one image, the neighbours on both sides are decoded in the background so
that stepping through the directory does not wait on the disk.

Pass a directory to open its first image, or a file to open its directory
focused on that file. Several files and directories are shown one after the
other, starting at the first file given.`,
		Version:       version,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return o.load()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runView(cmd, o, v, args)
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&o.cfgFile, "config", "", "config file (default is $HOME/.config/minimg/config.yaml)")
	pf.BoolVar(&o.debug, "debug", false, "enable debug logging")
	pf.StringVar(&o.logFile, "log-file", "", "append log lines to this file")
	pf.BoolVar(&o.jsonLog, "json-log", false, "write log lines as JSON")

	f := rootCmd.Flags()
	f.IntVarP(&v.radius, "radius", "r", 0, "images decoded ahead on each side (default from config)")
	f.IntVarP(&v.workers, "workers", "w", 0, "background decode workers (default from config)")
	f.IntVarP(&v.start, "start", "s", 0, "1-based number of the image to open first")
	f.BoolVar(&v.gui, "gui", false, "open the desktop viewer instead of the terminal one")

	rootCmd.AddCommand(newScanCmd(o), newInfoCmd(o), newConfigCmd(o))
	return rootCmd
}

// Execute adds all child commands to the root command and runs it.
func Execute() error {
	return NewRootCmd().Execute()
}

// load reads the config file and lets the persistent flags override it
func (o *rootOptions) load() error {
	var err error
	if o.cfgFile != "" {
		// An explicit file must be valid
		o.cfg, err = config.LoadConfigFile(o.cfgFile)
		if err != nil {
			return err
		}
	} else {
		o.cfg, err = config.LoadConfig()
		if err != nil {
			o.cfgErr = err
			o.cfg = config.New()
		}
	}

	if o.debug {
		o.cfg.Logging.Debug = true
	}
	if o.jsonLog {
		o.cfg.Logging.JSON = true
	}
	if o.logFile != "" {
		o.cfg.Logging.File = o.logFile
	}
	return nil
}

// configureLogging points the global logger at out (plus the log file)
func (o *rootOptions) configureLogging(out io.Writer) {
	opts := []log.Option{log.WithOutput(out)}
	if o.cfg.Logging.JSON {
		opts = append(opts, log.WithJSON())
	}
	if o.cfg.Logging.File != "" {
		opts = append(opts, log.WithFile(o.cfg.Logging.File))
	}
	if !o.cfg.Logging.Debug {
		opts = append(opts, log.WithLevel("info"))
	}
	log.Configure(opts...)
	log.SetDebug(o.cfg.Logging.Debug)

	if o.cfgErr != nil {
		log.LogWithError(o.cfgErr).Warn("Using default settings, run 'minimg config init' to write a config file")
		o.cfgErr = nil
	}
}
