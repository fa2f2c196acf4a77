package matcher

// Window keeps the trailing bytes of a stream so a backend that cannot
// carry state between chunks can re-examine them together with the next
// chunk. Its length never exceeds the longest pattern minus one, which is
// exactly enough for any occurrence that straddles a chunk boundary.
type Window struct {
	size int
	buf  []byte
}

// NewWindow returns a window for patterns up to maxLen bytes long.
func NewWindow(maxLen int) *Window {
	size := max(maxLen-1, 0)
	return &Window{size: size, buf: make([]byte, 0, size)}
}

// Size returns the carry capacity.
func (w *Window) Size() int {
	return w.size
}

// Carry returns the retained bytes.
func (w *Window) Carry() []byte {
	return w.buf
}

// Join returns the carry followed by chunk in a newly allocated slice.
func (w *Window) Join(chunk []byte) []byte {
	out := make([]byte, 0, len(w.buf)+len(chunk))
	out = append(out, w.buf...)
	return append(out, chunk...)
}

// Advance retains the last Size bytes of the logical stream after chunk.
func (w *Window) Advance(chunk []byte) {
	if w.size == 0 {
		return
	}
	if len(chunk) >= w.size {
		w.buf = append(w.buf[:0], chunk[len(chunk)-w.size:]...)
		return
	}
	keep := min(len(w.buf), w.size-len(chunk))
	w.buf = append(w.buf[:0], w.buf[len(w.buf)-keep:]...)
	w.buf = append(w.buf, chunk...)
}
