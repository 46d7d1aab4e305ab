package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	ErrWriterClosed = errors.New("jsonl writer is closed")
	ErrBufferFull   = errors.New("jsonl buffer full")
)

// JSONLWriter appends JSON records to a size-rotated file from a single
// background goroutine.
type JSONLWriter struct {
	name    string
	writeCh chan any
	done    chan struct{}
	wg      sync.WaitGroup
	once    sync.Once
	mu      sync.Mutex
	out     *lumberjack.Logger
}

// NewJSONLWriter opens dir/name.jsonl for appending.
func NewJSONLWriter(dir, name string, bufferSize, maxSizeMB int) (*JSONLWriter, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("jsonl writer: mkdir %s: %w", dir, err)
	}
	if bufferSize <= 0 {
		bufferSize = 64
	}
	w := &JSONLWriter{
		name:    name,
		writeCh: make(chan any, bufferSize),
		done:    make(chan struct{}),
		out: &lumberjack.Logger{
			Filename:   filepath.Join(dir, name+".jsonl"),
			MaxSize:    maxSizeMB,
			MaxBackups: 10,
			MaxAge:     30,
		},
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w, nil
}

// Path returns the active file path.
func (w *JSONLWriter) Path() string { return w.out.Filename }

// Write queues a record. It never blocks; a full buffer drops the record.
func (w *JSONLWriter) Write(record any) error {
	select {
	case <-w.done:
		return ErrWriterClosed
	default:
	}
	select {
	case w.writeCh <- record:
		return nil
	default:
		slog.Warn("JSONL write buffer full, dropping record", "name", w.name)
		return ErrBufferFull
	}
}

// Close stops the writer after flushing queued records.
func (w *JSONLWriter) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		w.wg.Wait()

		timeout := time.After(5 * time.Second)
	drain:
		for {
			select {
			case record := <-w.writeCh:
				w.writeRecord(record)
			case <-timeout:
				slog.Warn("JSONL writer close timeout, some records may be lost", "name", w.name)
				break drain
			default:
				break drain
			}
		}

		w.mu.Lock()
		defer w.mu.Unlock()
		err = w.out.Close()
	})
	return err
}

func (w *JSONLWriter) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case record := <-w.writeCh:
			w.writeRecord(record)
		case <-w.done:
			return
		}
	}
}

func (w *JSONLWriter) writeRecord(record any) {
	data, err := json.Marshal(record)
	if err != nil {
		slog.Error("Failed to marshal record", "error", err, "name", w.name)
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(append(data, '\n')); err != nil {
		slog.Error("Failed to write record", "error", err, "name", w.name)
	}
}
