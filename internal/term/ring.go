package term

import "sync"

// outputRing is a thread-safe circular byte buffer holding the most recent
// session output, replayed to subscribers that attach mid-session.
type outputRing struct {
	mu   sync.Mutex
	data []byte
	size int
	pos  int
	full bool
}

func newOutputRing(size int) *outputRing {
	return &outputRing{data: make([]byte, size), size: size}
}

func (r *outputRing) Write(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Only the trailing window of an oversized write matters.
	if len(p) >= r.size {
		copy(r.data, p[len(p)-r.size:])
		r.pos = 0
		r.full = true
		return
	}
	n := copy(r.data[r.pos:], p)
	if n < len(p) {
		copy(r.data, p[n:])
		r.full = true
	}
	r.pos = (r.pos + len(p)) % r.size
	if r.pos == 0 && n == len(p) {
		r.full = true
	}
}

func (r *outputRing) Snapshot() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.full {
		out := make([]byte, r.pos)
		copy(out, r.data[:r.pos])
		return out
	}
	out := make([]byte, r.size)
	copy(out, r.data[r.pos:])
	copy(out[r.size-r.pos:], r.data[:r.pos])
	return out
}
