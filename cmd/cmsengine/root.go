package main

import (
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/eringen/cmsengine"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	serve := func(cmd *cobra.Command, args []string) error {
		cfg, err := cmsengine.LoadConfig(configPath(configFlag))
		if err != nil {
			return err
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return cmsengine.New(*cfg).Run(ctx)
	}

	rootCmd := &cobra.Command{
		Use:           "cmsengine",
		Short:         "Content API for sliders, press releases and photo galleries",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// .env is optional; real environment variables win.
			if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("load .env: %w", err)
			}
			return nil
		},
		RunE: serve,
	}
	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default "+cmsengine.DefaultConfigFile+" if present, or $CMS_CONFIG)")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE:  serve,
	})
	rootCmd.AddCommand(newConfigCommand(&configFlag))
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the cmsengine version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cmsengine %s\n", version)
		},
	})
	return rootCmd
}

// configPath falls back to $CMS_CONFIG, which may come from .env, when no
// --config flag was given.
func configPath(flag string) string {
	if flag != "" {
		return flag
	}
	return cmsengine.EnvOr("CMS_CONFIG", "")
}
