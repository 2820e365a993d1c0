package main

import (
	"github.com/spf13/cobra"

	"shotdetect/internal/analysis"
)

func newRootCommand(opts ...analysis.Option) *cobra.Command {
	var configFlag string

	ctx := newCommandContext(&configFlag, opts...)

	rootCmd := &cobra.Command{
		Use:           "shotdetect",
		Short:         "Detect shot boundaries and audio envelopes in video files",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if shouldSkipConfig(cmd) {
				return nil
			}
			_, err := ctx.ensureConfig()
			return err
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path")

	rootCmd.AddCommand(newDetectCommand(ctx))
	rootCmd.AddCommand(newRunsCommand(ctx))
	rootCmd.AddCommand(newShotsCommand(ctx))
	rootCmd.AddCommand(newDumpCommand())
	rootCmd.AddCommand(newDoctorCommand(ctx))
	rootCmd.AddCommand(newTestNotifyCommand(ctx))
	rootCmd.AddCommand(newConfigCommand(ctx))

	return rootCmd
}
