package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"minimg/internal/config"
	serr "minimg/internal/errors"
)

func newConfigCmd(o *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the configuration file",
	}
	cmd.AddCommand(newConfigInitCmd(o), newConfigShowCmd(o), newConfigThemesCmd(o))
	return cmd
}

// configPath is the --config file or the default location
func (o *rootOptions) configPath() (string, error) {
	if o.cfgFile != "" {
		return o.cfgFile, nil
	}
	return config.DefaultPath()
}

func newConfigInitCmd(o *rootOptions) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := o.configPath()
			if err != nil {
				return serr.Wrap(err, "cannot locate the config directory")
			}
			if _, err := os.Stat(path); err == nil && !force {
				return serr.NewFileError("config file already exists, use --force to overwrite", path, serr.InvalidPath, nil)
			}
			if err := config.SaveConfig(config.New(), path); err != nil {
				return err
			}
			newPrinter(cmd.OutOrStdout(), o.cfg.Theme).Success("Wrote " + path)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite an existing file")
	return cmd
}

func newConfigShowCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := yaml.Marshal(o.cfg)
			if err != nil {
				return serr.Wrap(err, "failed to marshal config")
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}

func newConfigThemesCmd(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "themes",
		Short: "List the color themes",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			p := newPrinter(cmd.OutOrStdout(), o.cfg.Theme)
			for _, name := range config.ListThemes() {
				if name == o.cfg.UI.Theme {
					p.Printf("%s %s\n", p.emphasis.Render("*"), name)
				} else {
					fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", name)
				}
			}
		},
	}
}
