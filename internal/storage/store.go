package storage

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrValueTooLarge is returned when a batch carries a value above the
	// store's per-entry ceiling. Nothing in the batch is applied.
	ErrValueTooLarge = errors.New("value exceeds store entry ceiling")
	// ErrUnavailable wraps transport failures of remote stores.
	ErrUnavailable = errors.New("store unavailable")
)

// Slot is a single key/value entry.
type Slot struct {
	Key   string
	Value string
}

// Batch groups deletes and sets that are applied together. Deletes run
// before sets so a key may be both cleared and rewritten in one batch.
type Batch struct {
	Delete []string
	Set    []Slot
	MaxAge time.Duration
}

// Empty reports whether the batch has nothing to apply.
func (b Batch) Empty() bool {
	return len(b.Delete) == 0 && len(b.Set) == 0
}

// Store is the small durable key/value state the credential codec persists to.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Keys(ctx context.Context) ([]string, error)
	Write(ctx context.Context, batch Batch) error
}

// Limiter is implemented by stores with a per-entry size ceiling.
type Limiter interface {
	MaxValueSize() int
}

// CheckBatch rejects batches that would overflow limit. A limit <= 0 means
// no ceiling.
func CheckBatch(b Batch, limit int) error {
	if limit <= 0 {
		return nil
	}
	for _, s := range b.Set {
		if len(s.Value) > limit {
			return fmt.Errorf("%w: %s is %d bytes, limit %d", ErrValueTooLarge, s.Key, len(s.Value), limit)
		}
	}
	return nil
}
