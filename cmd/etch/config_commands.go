package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"etch/internal/config"
)

func newConfigCommand() *cobra.Command {
	configCmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration utilities",
	}

	configCmd.AddCommand(newConfigInitCommand())
	configCmd.AddCommand(newConfigValidateCommand())
	configCmd.AddCommand(newConfigShowCommand())

	return configCmd
}

func newConfigInitCommand() *cobra.Command {
	var targetPath string

	cmd := &cobra.Command{
		Use:         "init",
		Short:       "Create a sample configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			target := strings.TrimSpace(targetPath)
			if target == "" {
				defaultPath, err := config.DefaultConfigPath()
				if err != nil {
					return fmt.Errorf("determine default config path: %w", err)
				}
				target = defaultPath
			}

			if err := config.WriteSample(target); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote sample configuration to %s\n", target)
			return nil
		},
	}

	cmd.Flags().StringVarP(&targetPath, "path", "p", "", "Destination for the configuration file")
	return cmd
}

func newConfigValidateCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "validate [path]",
		Short:       "Parse and validate a configuration file",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		Args:        cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var path string
			if len(args) == 1 {
				path = args[0]
			}

			_, resolvedPath, exists, err := config.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "Configuration at %s is valid.\n", resolvedPath)
			} else {
				fmt.Fprintf(out, "No configuration file at %s; built-in defaults are valid.\n", resolvedPath)
			}
			return nil
		},
	}
}

func newConfigShowCommand() *cobra.Command {
	return &cobra.Command{
		Use:         "show",
		Short:       "Print the effective configuration",
		Annotations: map[string]string{"skipConfigLoad": "true"},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, resolvedPath, exists, err := config.Load("")
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if exists {
				fmt.Fprintf(out, "# loaded from %s\n", resolvedPath)
			} else {
				fmt.Fprintln(out, "# built-in defaults (no config file found)")
			}
			fmt.Fprintf(out, "download_dir         = %s\n", cfg.Paths.DownloadDir)
			fmt.Fprintf(out, "state_dir            = %s\n", cfg.Paths.StateDir)
			fmt.Fprintf(out, "log_dir              = %s\n", cfg.Paths.LogDir)
			fmt.Fprintf(out, "catalog.url          = %s\n", cfg.Catalog.URL)
			fmt.Fprintf(out, "catalog.refresh_hours = %d\n", cfg.Catalog.RefreshHours)
			fmt.Fprintf(out, "helper.path          = %s\n", cfg.Helper.Path)
			fmt.Fprintf(out, "helper.broker        = %s\n", cfg.Helper.Broker)
			fmt.Fprintf(out, "imaging.progress_interval_ms = %d\n", cfg.Imaging.ProgressIntervalMS)
			fmt.Fprintf(out, "logging.format       = %s\n", cfg.Logging.Format)
			fmt.Fprintf(out, "logging.level        = %s\n", cfg.Logging.Level)
			return nil
		},
	}
}
