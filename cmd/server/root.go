package main

import (
	"github.com/spf13/cobra"
)

var version = "dev"

type rootOptions struct {
	configPath string
	debug      bool
}

func newRootCommand() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "summarizer",
		Short: "Transcribe recordings and summarize them into reports",
		Long: `Summarizer turns audio recordings into summary reports.

Each recording becomes a task that is transcribed with whisperx, optionally
split by speaker, summarized chunk by chunk through an OpenAI-compatible
endpoint and compiled into a final report.`,
		Version:      version,
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "config/config.yaml", "Path to the YAML config file")
	cmd.PersistentFlags().BoolVar(&opts.debug, "debug", false, "Enable debug logging")

	cmd.AddCommand(newServeCommand(opts))
	cmd.AddCommand(newProcessCommand(opts))

	return cmd
}

func execute() error {
	return newRootCommand().Execute()
}
