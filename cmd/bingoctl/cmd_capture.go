package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bingo_bridge/internal/browser"
	"github.com/dgnsrekt/bingo_bridge/internal/capture"
	"github.com/dgnsrekt/bingo_bridge/internal/cdp"
	"github.com/dgnsrekt/bingo_bridge/internal/credential"
	"github.com/dgnsrekt/bingo_bridge/internal/notify"
)

var (
	captureDomain  string
	captureTimeout time.Duration
	cdpAddress     string
	cdpPort        int
	tabFilter      string
	launchBrowser  bool
	profileDir     string
	captureCopy    bool
	notifyURL      string
)

// captureCmd records the challenge request from a live browser
var captureCmd = &cobra.Command{
	Use:   "capture",
	Short: "Capture the challenge request from a Chromium tab over CDP",
	Long: `Attaches to Chromium tabs matching --tab-filter, loads the challenge page
in the first one and waits for the challenge request to finish. The request
is printed as a BING_HEADER value.

With --launch a Chromium with a dedicated profile is started first. Sign in
to Bing in that window if the capture times out.`,
	Args: cobra.NoArgs,
	RunE: runCapture,
}

func init() {
	f := captureCmd.Flags()
	f.StringVar(&captureDomain, "domain", credential.DomainWWW, "Challenge host: www or cn")
	f.DurationVar(&captureTimeout, "timeout", 2*time.Minute, "How long to wait for the challenge request")
	f.StringVar(&cdpAddress, "cdp-address", cliCfg.CDPAddress, "Chromium remote debugging address")
	f.IntVar(&cdpPort, "cdp-port", cliCfg.CDPPort, "Chromium remote debugging port")
	f.StringVar(&tabFilter, "tab-filter", cliCfg.TabURLFilter, "Only attach to tabs whose URL contains this")
	f.BoolVar(&launchBrowser, "launch", false, "Launch Chromium when nothing answers on the CDP port")
	f.StringVar(&profileDir, "profile-dir", "./bingo_data/chromium-profile", "Profile directory for --launch")
	f.BoolVar(&captureCopy, "copy", false, "Also copy the encoded value to the clipboard")
	f.StringVar(&notifyURL, "notify", "", "ntfy endpoint to notify when a credential was captured")
}

func runCapture(cmd *cobra.Command, args []string) error {
	if captureDomain != credential.DomainWWW && captureDomain != credential.DomainCN {
		return fmt.Errorf("--domain must be %q or %q", credential.DomainWWW, credential.DomainCN)
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), captureTimeout)
	defer cancel()

	challengeURL := credential.ChallengeURL(captureDomain)
	if launchBrowser {
		l := browser.NewLauncher(browser.Config{
			CDPAddress: cdpAddress,
			CDPPort:    cdpPort,
			StartURL:   challengeURL,
			ProfileDir: profileDir,
		})
		if err := l.Launch(ctx); err != nil {
			return err
		}
		defer l.Stop()
	}

	cc := capture.NewChallengeCapture()
	defer cc.Close()
	client := cdp.NewClient(cdp.Options{
		CDPURL:       fmt.Sprintf("http://%s:%d", cdpAddress, cdpPort),
		TabURLFilter: tabFilter,
		Navigate:     challengeURL,
	}, cc)
	if err := client.Connect(ctx); err != nil {
		return err
	}
	defer func() {
		if err := client.Close(); err != nil {
			slog.Debug("CDP client close failed", "error", err)
		}
	}()

	fmt.Fprintf(cmd.ErrOrStderr(), "waiting for %s (attached to %d tab(s))\n", challengeURL, client.GetTabCount())
	req, err := cc.Wait(ctx)
	if err != nil {
		return err
	}

	c, err := credential.Validate(capture.Curl(req))
	if err != nil {
		return err
	}
	encoded := credential.EncodeHeader(c.Text)
	fmt.Fprintln(cmd.OutOrStdout(), encoded)

	if captureCopy {
		if err := clipboard.WriteAll(encoded); err != nil {
			slog.Warn("clipboard copy failed", "error", err)
		}
	}
	if notifyURL != "" {
		headers := credential.ExtractHeaders(c.Text)
		keys := make([]string, 0, len(headers))
		for k := range headers {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		nctx, ncancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer ncancel()
		if err := notify.Send(nctx, &http.Client{Timeout: 10 * time.Second}, notifyURL, notify.CaptureMessage(c.Domain, keys)); err != nil {
			slog.Warn("capture notification failed", "endpoint", notifyURL, "error", err)
		}
	}
	return nil
}
