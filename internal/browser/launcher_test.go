package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestArgs(t *testing.T) {
	l := NewLauncher(Config{
		CDPAddress: "127.0.0.1",
		CDPPort:    9333,
		ProfileDir: "/tmp/profile",
		StartURL:   "https://www.bing.com/turing/captcha/challenge",
	})
	args := strings.Join(l.Args(), " ")
	for _, want := range []string{
		"--remote-debugging-port=9333",
		"--user-data-dir=/tmp/profile",
		"--window-size=1280,900",
	} {
		if !strings.Contains(args, want) {
			t.Fatalf("args %q missing %q", args, want)
		}
	}
	if !strings.HasSuffix(args, "https://www.bing.com/turing/captcha/challenge") {
		t.Fatalf("start url should be last: %q", args)
	}
	if l.Endpoint() != "http://127.0.0.1:9333" {
		t.Fatalf("Endpoint = %q", l.Endpoint())
	}
	if l.Running() {
		t.Fatal("launcher should not be running before Launch")
	}
}

func TestWaitForCDP(t *testing.T) {
	ready := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-ready:
			w.WriteHeader(http.StatusOK)
		default:
			w.WriteHeader(http.StatusServiceUnavailable)
		}
	}))
	defer srv.Close()

	if err := WaitForCDP(context.Background(), srv.URL, 150*time.Millisecond); err == nil {
		t.Fatal("expected timeout while endpoint is unavailable")
	}
	close(ready)
	if err := WaitForCDP(context.Background(), srv.URL, time.Second); err != nil {
		t.Fatalf("WaitForCDP() = %v", err)
	}
}
