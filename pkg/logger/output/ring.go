package output

import (
	"strings"
	"sync"
)

// Ring keeps the last lines written to it.
type Ring struct {
	mu    sync.Mutex
	lines []string
	next  int
	full  bool
}

func NewRing(limit int) *Ring {
	if limit < 1 {
		limit = 1
	}
	return &Ring{lines: make([]string, limit)}
}

func (r *Ring) Write(p []byte) (int, error) { // nolint:unparam // err is needed to implement io.Writer
	r.mu.Lock()
	defer r.mu.Unlock()

	r.lines[r.next] = strings.TrimRight(string(p), "\n")
	r.next = (r.next + 1) % len(r.lines)
	if r.next == 0 {
		r.full = true
	}

	return len(p), nil
}

// Lines returns the kept lines, oldest first.
func (r *Ring) Lines() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		return append([]string(nil), r.lines[:r.next]...)
	}

	out := make([]string, 0, len(r.lines))
	out = append(out, r.lines[r.next:]...)
	return append(out, r.lines[:r.next]...)
}
