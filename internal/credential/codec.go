package credential

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sort"
	"strings"

	"github.com/dgnsrekt/bingo_bridge/internal/storage"
	"github.com/dgnsrekt/bingo_bridge/internal/types"
)

// Result summarizes a successful Parse.
type Result struct {
	Domain    string   `json:"domain"`
	ImageOnly bool     `json:"image_only"`
	Keys      []string `json:"keys"`
	Slots     int      `json:"slots"`
}

// Codec converts captured requests to persisted credential slots and back.
// The store attached to the call context takes precedence over the default.
type Codec struct {
	store storage.Store
}

// NewCodec creates a codec. store may be nil when every call context carries
// its own store.
func NewCodec(store storage.Store) *Codec {
	return &Codec{store: store}
}

func (c *Codec) storeFor(ctx context.Context) (storage.Store, error) {
	if s, ok := storage.FromContext(ctx); ok {
		return s, nil
	}
	if c.store != nil {
		return c.store, nil
	}
	return nil, types.NewError(types.CodeStoreUnavailable, "no credential store bound", nil)
}

// ChunkSize returns the slot size used for s.
func ChunkSize(s storage.Store) int {
	if l, ok := s.(storage.Limiter); ok {
		if limit := l.MaxValueSize(); limit > 0 && limit < MaxChunkSize {
			return limit
		}
	}
	return MaxChunkSize
}

// Parse validates text, extracts recognized headers and persists them in one
// batch. Nothing is written when text is malformed.
func (c *Codec) Parse(ctx context.Context, text string, imageOnly bool) (Result, error) {
	capture, err := Validate(text)
	if err != nil {
		return Result{}, err
	}
	store, err := c.storeFor(ctx)
	if err != nil {
		return Result{}, err
	}

	headers := ExtractHeaders(capture.Text)
	size := ChunkSize(store)

	written := make([]string, 0, len(headers))
	for k := range headers {
		written = append(written, k)
	}
	sort.Strings(written)

	var batch storage.Batch
	batch.MaxAge = MaxAge
	for _, k := range written {
		v := headers[k]
		if !IsChunked(k) && len(v) > size {
			return Result{}, types.NewError(types.CodeMalformedCredential,
				fmt.Sprintf("header %s is %d bytes, limit %d", k, len(v), size), nil)
		}
		batch.Set = append(batch.Set, ChunkValue(k, v, size)...)
	}

	existing, err := store.Keys(ctx)
	if err != nil {
		return Result{}, storeErr("list slots", err)
	}
	for _, slot := range existing {
		base, _, ok := SplitSlotKey(slot)
		if ok && hasKey(headers, base) {
			batch.Delete = append(batch.Delete, slot)
		}
	}

	mode := capture.Domain == DomainCN || imageOnly
	batch.Set = append(batch.Set, storage.Slot{Key: ImageOnlyKey, Value: boolFlag(mode)})

	if err := store.Write(ctx, batch); err != nil {
		return Result{}, storeErr("write slots", err)
	}

	slog.Info("Credential parsed",
		"domain", capture.Domain,
		"keys", len(written),
		"slots", len(batch.Set)-1,
		"image_only", mode)

	return Result{Domain: capture.Domain, ImageOnly: mode, Keys: written, Slots: len(batch.Set) - 1}, nil
}

// Reconstruct reads every recognized slot and rejoins chunked values.
func (c *Codec) Reconstruct(ctx context.Context) (map[string]string, error) {
	store, err := c.storeFor(ctx)
	if err != nil {
		return nil, err
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return nil, storeErr("list slots", err)
	}
	slots := make(map[string]string, len(keys))
	for _, k := range keys {
		if _, _, ok := SplitSlotKey(k); !ok {
			continue
		}
		v, found, err := store.Get(ctx, k)
		if err != nil {
			return nil, storeErr("read slot", err)
		}
		if found {
			slots[k] = v
		}
	}
	return ReconstructSlots(slots), nil
}

// ReconstructSlots groups slot names by recognized key and concatenates
// values in ascending chunk order. Unrecognized slots are ignored.
func ReconstructSlots(slots map[string]string) map[string]string {
	type part struct {
		index int
		value string
	}
	groups := make(map[string][]part)
	for name, v := range slots {
		key, idx, ok := SplitSlotKey(name)
		if !ok {
			continue
		}
		groups[key] = append(groups[key], part{index: idx, value: v})
	}
	out := make(map[string]string, len(groups))
	for key, parts := range groups {
		sort.Slice(parts, func(i, j int) bool { return parts[i].index < parts[j].index })
		var b strings.Builder
		for _, p := range parts {
			b.WriteString(p.value)
		}
		out[key] = b.String()
	}
	return out
}

// Clear removes every recognized slot and the auxiliary keys in one batch.
func (c *Codec) Clear(ctx context.Context) error {
	store, err := c.storeFor(ctx)
	if err != nil {
		return err
	}
	keys, err := store.Keys(ctx)
	if err != nil {
		return storeErr("list slots", err)
	}
	seen := make(map[string]bool)
	var batch storage.Batch
	add := func(k string) {
		if !seen[k] {
			seen[k] = true
			batch.Delete = append(batch.Delete, k)
		}
	}
	for _, k := range ChunkedKeys {
		add(k)
	}
	for _, k := range SingletonKeys {
		add(k)
	}
	for _, k := range AuxiliaryKeys {
		add(k)
	}
	for _, k := range keys {
		if _, _, ok := SplitSlotKey(k); ok {
			add(k)
		}
	}
	if err := store.Write(ctx, batch); err != nil {
		return storeErr("clear slots", err)
	}
	slog.Info("Credential cleared", "slots", len(batch.Delete))
	return nil
}

// SetImageOnly persists the mode flag on its own.
func (c *Codec) SetImageOnly(ctx context.Context, on bool) error {
	store, err := c.storeFor(ctx)
	if err != nil {
		return err
	}
	err = store.Write(ctx, storage.Batch{
		Set:    []storage.Slot{{Key: ImageOnlyKey, Value: boolFlag(on)}},
		MaxAge: MaxAge,
	})
	if err != nil {
		return storeErr("write mode flag", err)
	}
	return nil
}

// ImageOnly reports the persisted mode flag.
func (c *Codec) ImageOnly(ctx context.Context) (bool, error) {
	store, err := c.storeFor(ctx)
	if err != nil {
		return false, err
	}
	v, _, err := store.Get(ctx, ImageOnlyKey)
	if err != nil {
		return false, storeErr("read mode flag", err)
	}
	return v == "1", nil
}

// Prefill renders the persisted credential as curl text, or "" when nothing
// is stored.
func (c *Codec) Prefill(ctx context.Context) (string, error) {
	headers, err := c.Reconstruct(ctx)
	if err != nil {
		return "", err
	}
	if len(headers) == 0 {
		return "", nil
	}
	return RenderCurl(DomainWWW, headers), nil
}

// Signature builds an outbound challenge request carrying the persisted
// headers.
func (c *Codec) Signature(ctx context.Context) (*http.Request, error) {
	headers, err := c.Reconstruct(ctx)
	if err != nil {
		return nil, err
	}
	if len(headers) == 0 {
		return nil, types.NewError(types.CodeNotFound, "no credential stored", nil)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ChallengeURL(DomainWWW), nil)
	if err != nil {
		return nil, fmt.Errorf("build challenge request: %w", err)
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	return req, nil
}

func hasKey(m map[string]string, k string) bool {
	_, ok := m[k]
	return ok
}

func boolFlag(on bool) string {
	if on {
		return "1"
	}
	return "0"
}

func storeErr(op string, err error) error {
	var coded *types.CodedError
	if errors.As(err, &coded) {
		return err
	}
	return types.NewError(types.CodeStoreUnavailable, op, err)
}
