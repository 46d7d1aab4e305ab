package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bingo_bridge/internal/compress"
)

var (
	compressMaxEdge int
	compressQuality int
	compressOut     string
)

// compressCmd converts an image file to the data URI the intake panel uploads
var compressCmd = &cobra.Command{
	Use:   "compress <file>",
	Short: "Compress an image file into a JPEG data URI",
	Args:  cobra.ExactArgs(1),
	RunE:  runCompress,
}

func init() {
	compressCmd.Flags().IntVar(&compressMaxEdge, "max-edge", cliCfg.MaxEdge, "Longest edge in pixels after scaling")
	compressCmd.Flags().IntVar(&compressQuality, "quality", cliCfg.Quality, "JPEG quality 1-100")
	compressCmd.Flags().StringVarP(&compressOut, "out", "o", "", "Write the data URI to this file instead of stdout")
}

func runCompress(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	c := compress.New(compress.Options{MaxEdge: compressMaxEdge, Quality: compressQuality})
	uri, err := c.Compress(cmd.Context(), f)
	if err != nil {
		return err
	}
	if compressOut == "" {
		fmt.Fprintln(cmd.OutOrStdout(), uri)
		return nil
	}
	if err := os.WriteFile(compressOut, []byte(uri), 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "wrote %d bytes to %s\n", len(uri), compressOut)
	return nil
}
