package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"

	"github.com/dgnsrekt/bingo_bridge/internal/compress"
	"github.com/dgnsrekt/bingo_bridge/internal/credential"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

func testCmd(stdin string) (*cobra.Command, *bytes.Buffer) {
	cmd := &cobra.Command{}
	cmd.SetContext(context.Background())
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetIn(strings.NewReader(stdin))
	return cmd, &out
}

func sampleCapture(domain string) string {
	return "curl '" + credential.ChallengeURL(domain) + "' \\\n  -H 'cookie: _U=abc' \\\n  -H 'user-agent: test-agent' \\\n  --compressed\n"
}

func TestEncodeFromStdin(t *testing.T) {
	cmd, out := testCmd(sampleCapture(credential.DomainWWW))
	if err := runEncode(cmd, nil); err != nil {
		t.Fatalf("runEncode failed: %v", err)
	}

	encoded := strings.TrimSpace(out.String())
	decoded := credential.DecodeCapture(encoded)
	c, err := credential.Validate(decoded)
	if err != nil {
		t.Fatalf("encoded output does not decode to a capture: %v", err)
	}
	if c.Domain != credential.DomainWWW {
		t.Errorf("domain = %q, want %q", c.Domain, credential.DomainWWW)
	}
	if got := credential.ExtractHeaders(decoded)["cookie"]; got != "_U=abc" {
		t.Errorf("cookie = %q, want %q", got, "_U=abc")
	}
}

func TestEncodeRejectsForeignCapture(t *testing.T) {
	cmd, out := testCmd("curl 'https://www.bing.com/search?q=x'")
	err := runEncode(cmd, []string{"-"})
	if !types.HasCode(err, types.CodeMalformedCredential) {
		t.Fatalf("runEncode error = %v, want %s", err, types.CodeMalformedCredential)
	}
	if out.Len() != 0 {
		t.Errorf("unexpected output %q", out.String())
	}
}

func TestInspectFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.txt")
	if err := os.WriteFile(path, []byte(credential.EncodeHeader(sampleCapture(credential.DomainCN))), 0o600); err != nil {
		t.Fatal(err)
	}

	cmd, out := testCmd("")
	if err := runInspect(cmd, []string{path}); err != nil {
		t.Fatalf("runInspect failed: %v", err)
	}
	got := out.String()
	for _, want := range []string{"cn.bing.com", "image only: true", "headers:    2", "cookie", "user-agent"} {
		if !strings.Contains(got, want) {
			t.Errorf("inspect output missing %q:\n%s", want, got)
		}
	}
	if strings.Contains(got, "_U=abc") {
		t.Errorf("inspect output leaks header values:\n%s", got)
	}
}

func TestCompressWritesDataURI(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "in.png")
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 40, 20))); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(src, buf.Bytes(), 0o600); err != nil {
		t.Fatal(err)
	}

	compressMaxEdge, compressQuality = 16, 70
	compressOut = filepath.Join(dir, "out.txt")
	defer func() { compressOut = "" }()

	cmd, _ := testCmd("")
	if err := runCompress(cmd, []string{src}); err != nil {
		t.Fatalf("runCompress failed: %v", err)
	}
	data, err := os.ReadFile(compressOut)
	if err != nil {
		t.Fatal(err)
	}
	mime, raw, err := compress.ParseDataURI(string(data))
	if err != nil {
		t.Fatalf("output is not a data uri: %v", err)
	}
	if mime != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", mime)
	}
	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("decode output: %v", err)
	}
	if cfg.Width != 16 || cfg.Height != 8 {
		t.Errorf("size = %dx%d, want 16x8", cfg.Width, cfg.Height)
	}
}

func TestCaptureRejectsUnknownDomain(t *testing.T) {
	captureDomain = "edge"
	defer func() { captureDomain = credential.DomainWWW }()

	cmd, _ := testCmd("")
	if err := runCapture(cmd, nil); err == nil {
		t.Fatal("runCapture accepted an unknown domain")
	}
}
