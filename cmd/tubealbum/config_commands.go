package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/handiism/tubealbum/internal/config"
)

func newConfigCommand(cc *commandContext) *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand(cc))
	configCmd.AddCommand(newConfigShowCommand(cc))

	return configCmd
}

func newConfigInitCommand(cc *commandContext) *cobra.Command {
	var overwrite bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			target, err := cc.resolvedConfigPath()
			if err != nil {
				return fmt.Errorf("resolve config path: %w", err)
			}

			if !overwrite {
				if _, err := os.Stat(target); err == nil {
					return fmt.Errorf("config file already exists at %s (use --overwrite to replace it)", target)
				} else if !os.IsNotExist(err) {
					return fmt.Errorf("check config path: %w", err)
				}
			}

			if err := config.DefaultSettings().Save(target); err != nil {
				return fmt.Errorf("write config: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", target)
			return nil
		},
	}

	cmd.Flags().BoolVar(&overwrite, "overwrite", false, "Replace an existing file")
	return cmd
}

func newConfigShowCommand(cc *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration",
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := cc.loadSettings()
			if err != nil {
				return err
			}

			var data []byte
			if asJSON {
				data, err = json.MarshalIndent(settings, "", "  ")
			} else {
				data, err = toml.Marshal(settings)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if path, err := cc.resolvedConfigPath(); err == nil {
				source := path
				if _, statErr := os.Stat(path); statErr != nil {
					source = "defaults (" + filepath.Base(path) + " not found)"
				}
				fmt.Fprintf(out, "# source: %s\n", source)
			}
			fmt.Fprintln(out, strings.TrimRight(string(data), "\n"))
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print as JSON instead of TOML")
	return cmd
}
