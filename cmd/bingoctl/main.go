package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bingo_bridge/internal/config"
)

var (
	cliCfg   = config.LoadCLI()
	logLevel string
)

// rootCmd is the base command
var rootCmd = &cobra.Command{
	Use:   "bingoctl",
	Short: "Operator tools for the Bingo bridge",
	Long: `bingoctl prepares credentials and images for the Bingo bridge.

Available subcommands:
  encode   - Encode a captured challenge request as a BING_HEADER value
  inspect  - Show what a capture would persist
  capture  - Capture the challenge request from a Chromium tab over CDP
  compress - Compress an image file into a JPEG data URI`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogger(cmd.ErrOrStderr(), logLevel)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", cliCfg.LogLevel, "Log level: debug, info, warn, error")

	rootCmd.AddCommand(encodeCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(captureCmd)
	rootCmd.AddCommand(compressCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func setupLogger(w io.Writer, level string) {
	var slogLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		slogLevel = slog.LevelDebug
	case "info":
		slogLevel = slog.LevelInfo
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: slogLevel})))
}

// readInput returns the contents of the file named by args[0], or stdin when
// no file (or "-") is given.
func readInput(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 0 || args[0] == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(data), nil
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return "", err
	}
	return string(data), nil
}
