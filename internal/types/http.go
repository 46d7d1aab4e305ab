package types

import (
	"sort"
	"strings"
	"time"
)

// CapturedRequest is a browser request recorded off the wire, before it is
// rendered as curl text for the credential codec.
type CapturedRequest struct {
	Timestamp time.Time         `json:"timestamp"`
	RequestID string            `json:"request_id"`
	TabID     string            `json:"tab_id,omitempty"`
	URL       string            `json:"url"`
	Method    string            `json:"method"`
	Headers   map[string]string `json:"headers,omitempty"`
}

// HeaderNames returns the header names sorted case-insensitively.
func (c *CapturedRequest) HeaderNames() []string {
	names := make([]string, 0, len(c.Headers))
	for k := range c.Headers {
		names = append(names, k)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToLower(names[i]) < strings.ToLower(names[j])
	})
	return names
}

// MergeHeaders copies headers into the capture. Keys are compared
// case-insensitively and later values win.
func (c *CapturedRequest) MergeHeaders(headers map[string]string) {
	if c.Headers == nil {
		c.Headers = make(map[string]string, len(headers))
	}
	for k, v := range headers {
		for existing := range c.Headers {
			if strings.EqualFold(existing, k) && existing != k {
				delete(c.Headers, existing)
			}
		}
		c.Headers[k] = v
	}
}
