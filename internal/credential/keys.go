package credential

import (
	"strconv"
	"strings"
	"time"

	"github.com/dgnsrekt/bingo_bridge/internal/storage"
)

const (
	// MaxChunkSize is the largest value stored in a single slot.
	MaxChunkSize = 4000
	// MaxAge is how long persisted slots stay valid after a write.
	MaxAge = 30 * 24 * time.Hour
	// ImageOnlyKey holds "1" when the session is limited to image creation.
	ImageOnlyKey = "IMAGE_ONLY"
)

// ChunkedKeys may exceed the slot ceiling and are split across slots.
var ChunkedKeys = []string{
	"cookie",
	"user-agent",
	"sec-ch-ua",
	"sec-ch-ua-full-version-list",
}

// SingletonKeys always fit one slot.
var SingletonKeys = []string{
	"x-forwarded-for",
	"x-ms-useragent",
	"x-ms-client-request-id",
	"accept-language",
}

// AuxiliaryKeys are legacy entries removed on Clear.
var AuxiliaryKeys = []string{"BING_COOKIE", "BING_UA", "BING_IP", "_U"}

// IsChunked reports whether key belongs to the chunked set.
func IsChunked(key string) bool {
	return contains(ChunkedKeys, key)
}

// IsRecognized reports whether key is a chunked or singleton key.
func IsRecognized(key string) bool {
	return IsChunked(key) || contains(SingletonKeys, key)
}

// SplitSlotKey maps a storage slot name to its recognized key and chunk
// index. A bare key returns index -1. ok is false for slots outside the
// recognized namespace.
func SplitSlotKey(slot string) (key string, index int, ok bool) {
	if IsRecognized(slot) {
		return slot, -1, true
	}
	i := strings.LastIndexByte(slot, '-')
	if i <= 0 || i == len(slot)-1 {
		return "", 0, false
	}
	base, suffix := slot[:i], slot[i+1:]
	if !IsChunked(base) {
		return "", 0, false
	}
	n, err := strconv.Atoi(suffix)
	if err != nil || n < 0 || strconv.Itoa(n) != suffix {
		return "", 0, false
	}
	return base, n, true
}

// ChunkValue splits value into slots of at most size bytes. Values that fit
// are stored under the bare key.
func ChunkValue(key, value string, size int) []storage.Slot {
	if size <= 0 || len(value) <= size {
		return []storage.Slot{{Key: key, Value: value}}
	}
	slots := make([]storage.Slot, 0, (len(value)+size-1)/size)
	for i := 0; len(value) > 0; i++ {
		n := size
		if n > len(value) {
			n = len(value)
		}
		slots = append(slots, storage.Slot{Key: key + "-" + strconv.Itoa(i), Value: value[:n]})
		value = value[n:]
	}
	return slots
}

func contains(set []string, key string) bool {
	for _, k := range set {
		if k == key {
			return true
		}
	}
	return false
}
