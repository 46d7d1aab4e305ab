package main

import (
	"fmt"
	"sort"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bingo_bridge/internal/credential"
)

var copyToClipboard bool

// encodeCmd turns curl text into a BING_HEADER value
var encodeCmd = &cobra.Command{
	Use:   "encode [file|-]",
	Short: "Encode a captured challenge request as a BING_HEADER value",
	Long: `Reads the "Copy as cURL" text of the challenge request from a file or
stdin, checks that it targets www.bing.com or cn.bing.com and prints the
base64 BING_HEADER value.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runEncode,
}

// inspectCmd shows what a capture would persist
var inspectCmd = &cobra.Command{
	Use:   "inspect [file|-]",
	Short: "Show the recognized headers and slots of a capture",
	Long: `Accepts curl text or a BING_HEADER value and lists the headers that
would be persisted together with the number of storage slots each one needs.
Header values are never printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInspect,
}

func init() {
	encodeCmd.Flags().BoolVar(&copyToClipboard, "copy", false, "Also copy the encoded value to the clipboard")
}

func runEncode(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	c, err := credential.Validate(credential.DecodeCapture(text))
	if err != nil {
		return err
	}
	encoded := credential.EncodeHeader(c.Text)
	fmt.Fprintln(cmd.OutOrStdout(), encoded)
	if copyToClipboard {
		if err := clipboard.WriteAll(encoded); err != nil {
			return fmt.Errorf("copy to clipboard: %w", err)
		}
		fmt.Fprintln(cmd.ErrOrStderr(), "copied to clipboard")
	}
	return nil
}

func runInspect(cmd *cobra.Command, args []string) error {
	text, err := readInput(cmd, args)
	if err != nil {
		return err
	}
	c, err := credential.Validate(credential.DecodeCapture(text))
	if err != nil {
		return err
	}
	headers := credential.ExtractHeaders(c.Text)
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "domain:     %s.bing.com\n", c.Domain)
	fmt.Fprintf(out, "image only: %t\n", c.Domain == credential.DomainCN)
	fmt.Fprintf(out, "headers:    %d\n", len(keys))
	for _, k := range keys {
		slots := len(credential.ChunkValue(k, headers[k], credential.MaxChunkSize))
		fmt.Fprintf(out, "  %-24s %6d bytes  %d slot(s)\n", k, len(headers[k]), slots)
	}
	return nil
}
