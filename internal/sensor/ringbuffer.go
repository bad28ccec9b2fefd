package sensor

// sampleRing keeps the newest n readings. Not safe for concurrent use.
type sampleRing struct {
	buf  []Reading
	next int
	full bool
}

func newSampleRing(n int) *sampleRing {
	if n < 1 {
		n = 1
	}
	return &sampleRing{buf: make([]Reading, n)}
}

func (r *sampleRing) add(rd Reading) {
	r.buf[r.next] = rd
	r.next++
	if r.next == len(r.buf) {
		r.next = 0
		r.full = true
	}
}

func (r *sampleRing) len() int {
	if r.full {
		return len(r.buf)
	}
	return r.next
}

// samples returns a fresh slice, oldest first.
func (r *sampleRing) samples() []Reading {
	if !r.full {
		return append([]Reading{}, r.buf[:r.next]...)
	}
	out := make([]Reading, 0, len(r.buf))
	out = append(out, r.buf[r.next:]...)
	return append(out, r.buf[:r.next]...)
}
