package storage

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"
)

// DefaultCookieLimit is the largest unescaped value a cookie slot holds.
const DefaultCookieLimit = 4000

// CookieStore persists entries as browser cookies for a single request.
// Bytes a cookie value cannot carry are percent-escaped; everything else is
// stored as is. A present cookie with an empty value is an empty entry, and
// deletes expire the cookie. Writes are visible to later reads on the same
// store.
type CookieStore struct {
	mu      sync.Mutex
	req     *http.Request
	w       http.ResponseWriter
	limit   int
	pending map[string]*string
}

// NewCookieStore binds a store to one request/response pair.
func NewCookieStore(r *http.Request, w http.ResponseWriter, limit int) *CookieStore {
	if limit <= 0 {
		limit = DefaultCookieLimit
	}
	return &CookieStore{req: r, w: w, limit: limit, pending: make(map[string]*string)}
}

func (s *CookieStore) MaxValueSize() int { return s.limit }

func (s *CookieStore) Get(_ context.Context, key string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.pending[key]; ok {
		if v == nil {
			return "", false, nil
		}
		return *v, true, nil
	}
	c, err := s.req.Cookie(key)
	if err != nil {
		return "", false, nil
	}
	v, ok := decodeCookieValue(c.Value)
	return v, ok, nil
}

func (s *CookieStore) Keys(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	seen := make(map[string]bool)
	for _, c := range s.req.Cookies() {
		if _, ok := decodeCookieValue(c.Value); ok {
			seen[c.Name] = true
		}
	}
	for k, v := range s.pending {
		seen[k] = v != nil
	}
	keys := make([]string, 0, len(seen))
	for k, ok := range seen {
		if ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	return keys, nil
}

func (s *CookieStore) Write(_ context.Context, b Batch) error {
	if err := CheckBatch(b, s.limit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	rewritten := make(map[string]bool, len(b.Set))
	for _, slot := range b.Set {
		rewritten[slot.Key] = true
	}
	for _, k := range b.Delete {
		if rewritten[k] {
			continue
		}
		http.SetCookie(s.w, s.cookie(k, "", -1))
		s.pending[k] = nil
	}
	maxAge := int(b.MaxAge / time.Second)
	for _, slot := range b.Set {
		http.SetCookie(s.w, s.cookie(slot.Key, escapeCookieValue(slot.Value), maxAge))
		v := slot.Value
		s.pending[slot.Key] = &v
	}
	return nil
}

func (s *CookieStore) cookie(name, value string, maxAge int) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		MaxAge:   maxAge,
		SameSite: http.SameSiteNoneMode,
		Secure:   true,
	}
}

func escapeCookieValue(v string) string {
	const hex = "0123456789ABCDEF"
	var b strings.Builder
	b.Grow(len(v))
	for i := 0; i < len(v); i++ {
		c := v[i]
		if c < 0x20 || c >= 0x7f || c == '"' || c == ';' || c == '\\' || c == '%' {
			b.WriteByte('%')
			b.WriteByte(hex[c>>4])
			b.WriteByte(hex[c&0x0f])
			continue
		}
		b.WriteByte(c)
	}
	return b.String()
}

func decodeCookieValue(raw string) (string, bool) {
	v, err := url.PathUnescape(raw)
	if err != nil {
		return "", false
	}
	return v, true
}
