package log

import (
	"fmt"
	"io"
	"sync"
)

// Backlog is an [io.Writer] that retains the most recent log records while
// the terminal is owned by an interactive prompt. Once the prompt finishes,
// the retained records are flushed with [Backlog.WriteTo].
//
// When more than its capacity is written, the oldest records are dropped.
type Backlog struct {
	records [][]byte
	next    int
	dropped int
	limit   int
	mu      sync.Mutex
}

// NewBacklog creates a [Backlog] holding at most limit records.
// A non-positive limit defaults to 100.
func NewBacklog(limit int) *Backlog {
	if limit <= 0 {
		limit = 100
	}

	return &Backlog{
		records: make([][]byte, 0, limit),
		limit:   limit,
	}
}

// Write stores a copy of p as one record.
func (b *Backlog) Write(p []byte) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}

	rec := append([]byte(nil), p...)

	b.mu.Lock()
	defer b.mu.Unlock()

	if len(b.records) < b.limit {
		b.records = append(b.records, rec)
		return len(p), nil
	}

	b.records[b.next] = rec
	b.next = (b.next + 1) % b.limit
	b.dropped++

	return len(p), nil
}

// Records returns the retained records, oldest first.
func (b *Backlog) Records() [][]byte {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([][]byte, 0, len(b.records))
	out = append(out, b.records[b.next:]...)
	out = append(out, b.records[:b.next]...)

	return out
}

// Len returns the number of retained records.
func (b *Backlog) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.records)
}

// Dropped returns how many records were overwritten.
func (b *Backlog) Dropped() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.dropped
}

// WriteTo writes the retained records to w, oldest first.
func (b *Backlog) WriteTo(w io.Writer) (int64, error) {
	var total int64

	for _, rec := range b.Records() {
		n, err := w.Write(rec)
		total += int64(n)

		if err != nil {
			return total, fmt.Errorf("write record: %w", err)
		}
	}

	return total, nil
}
