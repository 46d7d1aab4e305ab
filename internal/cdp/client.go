package cdp

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"

	"github.com/dgnsrekt/bingo_bridge/internal/capture"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// Options configures the CDP client.
type Options struct {
	CDPURL       string
	TabURLFilter string
	// Navigate loads url in the first attached tab to trigger the challenge.
	Navigate string
}

// Client attaches to browser tabs and feeds their network events into a
// challenge capture.
type Client struct {
	opts        Options
	challenge   *capture.ChallengeCapture
	allocCtx    context.Context
	allocCancel context.CancelFunc
	tabs        map[target.ID]*TabContext
	tabsMu      sync.RWMutex
}

type TabContext struct {
	ID     target.ID
	URL    string
	ctx    context.Context
	cancel context.CancelFunc
}

func NewClient(opts Options, challenge *capture.ChallengeCapture) *Client {
	if opts.TabURLFilter == "" {
		opts.TabURLFilter = "bing.com"
	}
	return &Client{
		opts:      opts,
		challenge: challenge,
		tabs:      make(map[target.ID]*TabContext),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	slog.Info("Connecting to Chromium", "url", c.opts.CDPURL)

	c.allocCtx, c.allocCancel = chromedp.NewRemoteAllocator(context.Background(), c.opts.CDPURL)

	tempCtx, tempCancel := chromedp.NewContext(c.allocCtx)
	defer tempCancel()
	stop := context.AfterFunc(ctx, tempCancel)
	defer stop()

	if err := chromedp.Run(tempCtx); err != nil {
		return types.NewError(types.CodeCDPUnavailable, "connect to browser", err)
	}

	targets, err := chromedp.Targets(tempCtx)
	if err != nil {
		return types.NewError(types.CodeCDPUnavailable, "enumerate targets", err)
	}

	var tempID target.ID
	if tc := chromedp.FromContext(tempCtx); tc != nil && tc.Target != nil {
		tempID = tc.Target.TargetID
	}

	attachedCount := 0
	for _, t := range targets {
		if t.Type != "page" || t.TargetID == tempID {
			continue
		}
		if !c.matchesTabURL(t.URL) {
			slog.Debug("Skipping tab (url filter)", "url", truncateURL(t.URL))
			continue
		}
		if err := c.attachToTab(t.TargetID, t.URL); err != nil {
			slog.Error("Failed to attach to tab", "target_id", t.TargetID, "url", truncateURL(t.URL), "error", err)
			continue
		}
		attachedCount++
	}

	if attachedCount == 0 {
		return types.NewError(types.CodeNotFound,
			fmt.Sprintf("no tabs found matching %q", c.opts.TabURLFilter), nil)
	}
	slog.Info("Attached to tabs", "count", attachedCount, "tab_url_filter", c.opts.TabURLFilter)

	if c.opts.Navigate != "" {
		return c.navigateFirst(ctx, c.opts.Navigate)
	}
	return nil
}

func (c *Client) attachToTab(targetID target.ID, url string) error {
	tabCtx, tabCancel := chromedp.NewContext(c.allocCtx, chromedp.WithTargetID(targetID))
	tab := &TabContext{ID: targetID, URL: url, ctx: tabCtx, cancel: tabCancel}

	chromedp.ListenTarget(tabCtx, c.createEventHandler(string(targetID)))
	if err := chromedp.Run(tabCtx, network.Enable(), network.SetCacheDisabled(true)); err != nil {
		tabCancel()
		return fmt.Errorf("failed to enable network domain: %w", err)
	}

	c.tabsMu.Lock()
	c.tabs[targetID] = tab
	c.tabsMu.Unlock()

	slog.Info("Attached to tab", "target_id", targetID, "url", truncateURL(url))
	return nil
}

func (c *Client) navigateFirst(ctx context.Context, url string) error {
	c.tabsMu.RLock()
	var tab *TabContext
	for _, t := range c.tabs {
		tab = t
		break
	}
	c.tabsMu.RUnlock()
	if tab == nil {
		return types.NewError(types.CodeNotFound, "no attached tab to navigate", nil)
	}

	navCtx, cancel := context.WithTimeout(tab.ctx, 30*time.Second)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	if err := chromedp.Run(navCtx, chromedp.Navigate(url)); err != nil {
		return types.NewError(types.CodeCDPUnavailable, "navigate "+truncateURL(url), err)
	}
	slog.Info("Navigated tab", "target_id", tab.ID, "url", truncateURL(url))
	return nil
}

func (c *Client) createEventHandler(tabID string) func(ev interface{}) {
	return func(ev interface{}) {
		switch e := ev.(type) {
		case *network.EventRequestWillBeSent:
			c.challenge.OnRequestWillBeSent(tabID, e)
		case *network.EventRequestWillBeSentExtraInfo:
			c.challenge.OnRequestWillBeSentExtraInfo(e)
		case *network.EventLoadingFinished:
			c.challenge.OnLoadingFinished(e)
		case *network.EventLoadingFailed:
			c.challenge.OnLoadingFailed(e)
		}
	}
}

func (c *Client) Close() error {
	c.tabsMu.Lock()
	c.tabs = make(map[target.ID]*TabContext)
	c.tabsMu.Unlock()

	if c.allocCancel != nil {
		c.allocCancel()
	}

	slog.Info("CDP client closed")
	return nil
}

func (c *Client) GetTabCount() int {
	c.tabsMu.RLock()
	defer c.tabsMu.RUnlock()
	return len(c.tabs)
}

func (c *Client) matchesTabURL(url string) bool {
	return strings.Contains(strings.ToLower(url), strings.ToLower(c.opts.TabURLFilter))
}

func truncateURL(url string) string {
	if len(url) > 120 {
		return url[:120] + "..."
	}
	return url
}
