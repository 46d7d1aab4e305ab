package notify

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
)

// Message is an ntfy publish request. Title, Tags and Priority travel as
// headers; Body is the plain text payload.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority int
}

// CaptureMessage announces a captured credential. Only header names are
// included, never values.
func CaptureMessage(domain string, keys []string) Message {
	msg := Message{
		Title: "Bing credential captured",
		Body: fmt.Sprintf("Captured from %s.bing.com (%d headers: %s). Paste the BING_HEADER value into the settings dialog.",
			domain, len(keys), strings.Join(keys, ", ")),
		Tags: []string{"key"},
	}
	if domain == "cn" {
		msg.Tags = append(msg.Tags, "frame_with_picture")
	}
	return msg
}

// Send publishes msg to an ntfy topic URL.
func Send(ctx context.Context, client *http.Client, endpoint string, msg Message) error {
	if client == nil {
		client = http.DefaultClient
	}
	if endpoint == "" {
		return fmt.Errorf("ntfy endpoint is empty")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(msg.Body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "text/plain")
	if msg.Title != "" {
		req.Header.Set("Title", msg.Title)
	}
	if len(msg.Tags) > 0 {
		req.Header.Set("Tags", strings.Join(msg.Tags, ","))
	}
	if msg.Priority >= 1 && msg.Priority <= 5 {
		req.Header.Set("Priority", strconv.Itoa(msg.Priority))
	}

	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("ntfy publish to %s failed: status=%d", endpoint, resp.StatusCode)
	}
	return nil
}
