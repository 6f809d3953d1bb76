package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"pdfqa/internal/apperr"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", describe(err))
		os.Exit(1)
	}
}

type rootOptions struct {
	configPath string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:           "pdfqa",
		Short:         "Ask questions about a folder of PDFs",
		Long:          "pdfqa ingests PDF documents into a vector index and answers questions from them with verified, traceable answers.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "optional yaml config file")

	cmd.AddCommand(
		newIngestCmd(opts),
		newQueryCmd(opts),
		newServeCmd(opts),
		newRunsCmd(opts),
		newOrganizeCmd(),
	)
	return cmd
}

// setupLogging configures the default logger. Logs go to stderr so command output stays clean.
func setupLogging(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	var handler slog.Handler
	if strings.EqualFold(format, "json") {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	slog.Debug("Logging configured", "level", level, "format", format)
	return logger
}

func parseLevel(s string) slog.Level {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return slog.LevelInfo
	}
	return level
}

// describe prefixes the error with a hint for the failure kinds a user can act on.
func describe(err error) string {
	switch {
	case errors.Is(err, apperr.ErrConfiguration):
		return fmt.Sprintf("%v (check your environment or .env file)", err)
	case apperr.IsTimeout(err):
		return fmt.Sprintf("%v (the service did not respond in time)", err)
	default:
		return err.Error()
	}
}
