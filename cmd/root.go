package cmd

import (
	"github.com/spf13/cobra"

	"github.com/soundscout/soundscout-go/cmd/run"
	"github.com/soundscout/soundscout-go/cmd/serve"
	"github.com/soundscout/soundscout-go/internal/conf"
)

// RootCommand creates and returns the root command.
func RootCommand(settings *conf.Settings) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "soundscout",
		Short: "Music catalog ingestion and recommendation service",
	}

	rootCmd.PersistentFlags().BoolVarP(&settings.Debug, "debug", "d", settings.Debug, "Enable debug logging")

	rootCmd.AddCommand(
		serve.Command(settings),
		run.Command(settings),
	)

	return rootCmd
}
