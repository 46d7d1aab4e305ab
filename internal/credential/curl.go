package credential

import (
	"encoding/base64"
	"regexp"
	"sort"
	"strings"

	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

const (
	DomainWWW = "www"
	DomainCN  = "cn"

	challengePath = "/turing/captcha/challenge"
)

var (
	captureRe = regexp.MustCompile(`^\s*curl ['"]https://(www|cn)\.bing\.com/turing/captcha/challenge['"]`)
	headerRe  = regexp.MustCompile(`(?:^|\s)(-H|--header|-b|--cookie|-A|--user-agent)\s+(?:\$'((?:[^'\\]|\\.)*)'|'([^']*)'|"((?:[^"\\]|\\.)*)")`)
)

// Capture is a validated challenge request.
type Capture struct {
	Text   string
	Domain string
}

// ChallengeURL returns the challenge endpoint for a sub-domain.
func ChallengeURL(domain string) string {
	if domain != DomainCN {
		domain = DomainWWW
	}
	return "https://" + domain + ".bing.com" + challengePath
}

// Validate checks that text is a curl capture of the challenge endpoint and
// reports which sub-domain it targets.
func Validate(text string) (Capture, error) {
	m := captureRe.FindStringSubmatch(text)
	if m == nil {
		return Capture{}, types.NewError(types.CodeMalformedCredential,
			"expected curl capture of "+ChallengeURL(DomainWWW), nil)
	}
	return Capture{Text: text, Domain: m[1]}, nil
}

// DecodeCapture accepts raw curl text or its base64 form. The decoded form
// is used only when it is itself a valid capture.
func DecodeCapture(text string) string {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" || captureRe.MatchString(trimmed) {
		return text
	}
	compact := strings.Join(strings.Fields(trimmed), "")
	for _, enc := range []*base64.Encoding{base64.StdEncoding, base64.RawStdEncoding, base64.URLEncoding} {
		raw, err := enc.DecodeString(compact)
		if err != nil {
			continue
		}
		if captureRe.Match(raw) {
			return string(raw)
		}
	}
	return text
}

// EncodeHeader returns the base64 BING_HEADER form of a capture.
func EncodeHeader(text string) string {
	return base64.StdEncoding.EncodeToString([]byte(text))
}

// ExtractHeaders pulls recognized headers out of curl text. Keys are
// lower-cased and values trimmed; later occurrences win.
func ExtractHeaders(text string) map[string]string {
	text = strings.ReplaceAll(text, "\\\r\n", " ")
	text = strings.ReplaceAll(text, "\\\n", " ")

	headers := make(map[string]string)
	for _, m := range headerRe.FindAllStringSubmatch(text, -1) {
		var raw string
		switch {
		case m[2] != "":
			raw = unescape(m[2], true)
		case m[3] != "":
			raw = m[3]
		default:
			raw = unescape(m[4], false)
		}

		var key, value string
		switch m[1] {
		case "-b", "--cookie":
			key, value = "cookie", raw
		case "-A", "--user-agent":
			key, value = "user-agent", raw
		default:
			k, v, ok := strings.Cut(raw, ":")
			if !ok {
				continue
			}
			key, value = k, v
		}
		key = strings.ToLower(strings.TrimSpace(key))
		if !IsRecognized(key) {
			continue
		}
		headers[key] = strings.TrimSpace(value)
	}
	return headers
}

// RenderCurl renders headers as a challenge capture for the given
// sub-domain. Output is stable across calls.
func RenderCurl(domain string, headers map[string]string) string {
	keys := make([]string, 0, len(headers))
	for k := range headers {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString("curl '")
	b.WriteString(ChallengeURL(domain))
	b.WriteString("'")
	for _, k := range keys {
		b.WriteString(" \\\n  -H ")
		b.WriteString(quote(k + ": " + headers[k]))
	}
	b.WriteString(" \\\n  --compressed")
	return b.String()
}

func quote(s string) string {
	if !strings.ContainsAny(s, "'\\") {
		return "'" + s + "'"
	}
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "$'" + r.Replace(s) + "'"
}

// unescape resolves backslash escapes. ansi enables the $'...' escapes curl
// exports use for control characters.
func unescape(s string, ansi bool) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i == len(s)-1 {
			b.WriteByte(c)
			continue
		}
		i++
		n := s[i]
		if ansi {
			switch n {
			case 'n':
				b.WriteByte('\n')
				continue
			case 't':
				b.WriteByte('\t')
				continue
			case 'r':
				b.WriteByte('\r')
				continue
			}
		}
		switch n {
		case '\\', '\'', '"':
			b.WriteByte(n)
		default:
			b.WriteByte('\\')
			b.WriteByte(n)
		}
	}
	return b.String()
}
