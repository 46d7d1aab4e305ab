package capture

import (
	"context"
	"log/slog"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/network"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

const challengePath = "/turing/captcha/challenge"

type pendingRequest struct {
	capture   *types.CapturedRequest
	timestamp time.Time
}

// ChallengeCapture records the browser's challenge request. Headers from the
// ExtraInfo event are merged in since cookies only appear there.
type ChallengeCapture struct {
	pending   map[string]*pendingRequest
	pendingMu sync.Mutex

	results chan *types.CapturedRequest
	done    chan struct{}
	once    sync.Once
}

func NewChallengeCapture() *ChallengeCapture {
	c := &ChallengeCapture{
		pending: make(map[string]*pendingRequest),
		results: make(chan *types.CapturedRequest, 4),
		done:    make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

func (c *ChallengeCapture) Close() {
	c.once.Do(func() { close(c.done) })
}

// IsChallengeURL reports whether raw targets the challenge endpoint on a
// supported host.
func IsChallengeURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme != "https" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	return (host == "www.bing.com" || host == "cn.bing.com") && u.Path == challengePath
}

func (c *ChallengeCapture) OnRequestWillBeSent(tabID string, ev *network.EventRequestWillBeSent) {
	if ev.Request == nil || !IsChallengeURL(ev.Request.URL) {
		return
	}
	u, _ := url.Parse(ev.Request.URL)
	u.RawQuery = ""
	u.Fragment = ""

	req := &types.CapturedRequest{
		Timestamp: time.Now().UTC(),
		RequestID: string(ev.RequestID),
		TabID:     tabID,
		URL:       u.String(),
		Method:    ev.Request.Method,
	}
	req.MergeHeaders(headerMapToStringMap(ev.Request.Headers))

	c.pendingMu.Lock()
	if p, ok := c.pending[req.RequestID]; ok {
		req.MergeHeaders(p.capture.Headers)
	}
	c.pending[req.RequestID] = &pendingRequest{capture: req, timestamp: time.Now()}
	c.pendingMu.Unlock()

	slog.Debug("Challenge request seen", "tab_id", tabID, "request_id", ev.RequestID)
}

// OnRequestWillBeSentExtraInfo may fire before or after the main event.
func (c *ChallengeCapture) OnRequestWillBeSentExtraInfo(ev *network.EventRequestWillBeSentExtraInfo) {
	headers := headerMapToStringMap(ev.Headers)
	for k := range headers {
		if strings.HasPrefix(k, ":") {
			delete(headers, k)
		}
	}

	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	p, ok := c.pending[string(ev.RequestID)]
	if !ok {
		p = &pendingRequest{
			capture:   &types.CapturedRequest{RequestID: string(ev.RequestID)},
			timestamp: time.Now(),
		}
		c.pending[string(ev.RequestID)] = p
	}
	p.capture.MergeHeaders(headers)
}

func (c *ChallengeCapture) OnLoadingFinished(ev *network.EventLoadingFinished) {
	c.pendingMu.Lock()
	p, ok := c.pending[string(ev.RequestID)]
	if ok && p.capture.URL != "" {
		delete(c.pending, string(ev.RequestID))
	}
	c.pendingMu.Unlock()
	if !ok || p.capture.URL == "" {
		return
	}

	cookie := p.capture.Headers["cookie"]
	if cookie == "" {
		cookie = p.capture.Headers["Cookie"]
	}
	preview, _, size, hash := truncateValue(cookie, 16)
	slog.Info("Challenge request captured",
		"tab_id", p.capture.TabID,
		"headers", len(p.capture.Headers),
		"cookie_preview", preview,
		"cookie_bytes", size,
		"cookie_sha256", hash)

	select {
	case c.results <- p.capture:
	default:
		slog.Warn("Challenge capture buffer full, dropping", "request_id", ev.RequestID)
	}
}

func (c *ChallengeCapture) OnLoadingFailed(ev *network.EventLoadingFailed) {
	c.pendingMu.Lock()
	delete(c.pending, string(ev.RequestID))
	c.pendingMu.Unlock()
}

// Wait blocks until a challenge request completes or ctx ends.
func (c *ChallengeCapture) Wait(ctx context.Context) (*types.CapturedRequest, error) {
	select {
	case req := <-c.results:
		return req, nil
	case <-ctx.Done():
		return nil, types.NewError(types.CodeNotFound, "no challenge request observed", ctx.Err())
	case <-c.done:
		return nil, types.NewError(types.CodeCDPUnavailable, "capture closed", nil)
	}
}

// Curl renders req as curl command text in the form browsers export.
func Curl(req *types.CapturedRequest) string {
	var b strings.Builder
	b.WriteString("curl ")
	b.WriteString(shellQuote(req.URL))
	for _, name := range req.HeaderNames() {
		if strings.HasPrefix(name, ":") {
			continue
		}
		b.WriteString(" \\\n  -H ")
		b.WriteString(shellQuote(strings.ToLower(name) + ": " + req.Headers[name]))
	}
	if req.Method != "" && req.Method != "GET" {
		b.WriteString(" \\\n  -X ")
		b.WriteString(shellQuote(req.Method))
	}
	b.WriteString(" \\\n  --compressed")
	return b.String()
}

func shellQuote(s string) string {
	if !strings.ContainsAny(s, "'\\") {
		return "'" + s + "'"
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "$'" + r.Replace(s) + "'"
}

func (c *ChallengeCapture) cleanupLoop() {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.cleanupStale(time.Now().Add(-5 * time.Minute))
		case <-c.done:
			return
		}
	}
}

func (c *ChallengeCapture) cleanupStale(threshold time.Time) int {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()

	removed := 0
	for id, p := range c.pending {
		if p.timestamp.Before(threshold) {
			delete(c.pending, id)
			removed++
		}
	}
	return removed
}

func headerMapToStringMap(headers network.Headers) map[string]string {
	result := make(map[string]string, len(headers))
	for k, v := range headers {
		if s, ok := v.(string); ok {
			result[k] = s
		}
	}
	return result
}

// pendingIDs is used by tests.
func (c *ChallengeCapture) pendingIDs() []string {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	ids := make([]string, 0, len(c.pending))
	for id := range c.pending {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
