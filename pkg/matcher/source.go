package matcher

import (
	"errors"
	"io"
	"sync"

	"golang.org/x/exp/mmap"
)

// Source yields a target's bytes as successive chunks, oldest first. Next
// returns io.EOF once the target is exhausted. The returned slice is only
// valid until the following call to Next.
type Source interface {
	Next() ([]byte, error)
}

// BytesSource serves an in-memory buffer without copying.
type BytesSource struct {
	buf  []byte
	size int
	pos  int
}

// NewBytesSource splits buf into chunks of at most size bytes.
func NewBytesSource(buf []byte, size int) *BytesSource {
	if size <= 0 {
		size = DefaultChunkConfig().ChunkSize
	}
	return &BytesSource{buf: buf, size: size}
}

// Next returns the next chunk.
func (s *BytesSource) Next() ([]byte, error) {
	if s.pos >= len(s.buf) {
		return nil, io.EOF
	}
	end := min(s.pos+s.size, len(s.buf))
	chunk := s.buf[s.pos:end]
	s.pos = end
	return chunk, nil
}

// ReaderSource reads fixed-size chunks from an io.Reader into one reused
// buffer.
type ReaderSource struct {
	r   io.Reader
	buf []byte
	eof bool
}

// NewReaderSource wraps r. If r is an io.Closer, Close closes it.
func NewReaderSource(r io.Reader, size int) *ReaderSource {
	if size <= 0 {
		size = DefaultChunkConfig().ChunkSize
	}
	return &ReaderSource{r: r, buf: make([]byte, size)}
}

// Next fills the buffer and returns it. Short reads are only returned at
// the end of the stream.
func (s *ReaderSource) Next() ([]byte, error) {
	if s.eof {
		return nil, io.EOF
	}
	n, err := io.ReadFull(s.r, s.buf)
	switch {
	case err == nil:
		return s.buf[:n], nil
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.eof = true
		return s.buf[:n], nil
	case errors.Is(err, io.EOF):
		s.eof = true
		return nil, io.EOF
	default:
		return nil, err
	}
}

// Close closes the underlying reader when it supports closing.
func (s *ReaderSource) Close() error {
	if c, ok := s.r.(io.Closer); ok {
		return c.Close()
	}
	return nil
}

// MmapSource reads chunks from a memory-mapped file.
type MmapSource struct {
	r   *mmap.ReaderAt
	buf []byte
	off int64
}

// OpenMmap maps path read-only.
func OpenMmap(path string, size int) (*MmapSource, error) {
	r, err := mmap.Open(path)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultChunkConfig().ChunkSize
	}
	return &MmapSource{r: r, buf: make([]byte, min(size, max(r.Len(), 1)))}, nil
}

// Len returns the mapped size.
func (s *MmapSource) Len() int {
	return s.r.Len()
}

// Next copies the next chunk out of the mapping.
func (s *MmapSource) Next() ([]byte, error) {
	if s.off >= int64(s.r.Len()) {
		return nil, io.EOF
	}
	n, err := s.r.ReadAt(s.buf, s.off)
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if n == 0 {
		return nil, io.EOF
	}
	s.off += int64(n)
	return s.buf[:n], nil
}

// Close unmaps the file.
func (s *MmapSource) Close() error {
	return s.r.Close()
}

// Prefetch reads up to depth chunks ahead of the consumer on a separate
// goroutine. Ordering and error position are preserved: the consumer sees
// exactly the chunk sequence src would have produced.
func Prefetch(src Source, depth int) *PrefetchSource {
	if depth < 1 {
		depth = 1
	}
	p := &PrefetchSource{
		src:  src,
		ch:   make(chan prefetched, depth),
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go p.run()
	return p
}

// PrefetchSource is the Source returned by Prefetch.
type PrefetchSource struct {
	src  Source
	ch   chan prefetched
	stop chan struct{}
	done chan struct{}
	pool sync.Pool
	prev []byte
	err  error
	once sync.Once
}

type prefetched struct {
	buf []byte
	err error
}

func (p *PrefetchSource) run() {
	defer close(p.done)
	defer close(p.ch)
	for {
		chunk, err := p.src.Next()
		var item prefetched
		if err != nil {
			item.err = err
		} else {
			item.buf = p.copyOf(chunk)
		}
		select {
		case p.ch <- item:
		case <-p.stop:
			return
		}
		if err != nil {
			return
		}
	}
}

func (p *PrefetchSource) copyOf(chunk []byte) []byte {
	var buf []byte
	if v, ok := p.pool.Get().(*[]byte); ok && cap(*v) >= len(chunk) {
		buf = (*v)[:len(chunk)]
	} else {
		buf = make([]byte, len(chunk))
	}
	copy(buf, chunk)
	return buf
}

// Next returns the next prefetched chunk.
func (p *PrefetchSource) Next() ([]byte, error) {
	if p.prev != nil {
		prev := p.prev
		p.pool.Put(&prev)
		p.prev = nil
	}
	if p.err != nil {
		return nil, p.err
	}
	item, ok := <-p.ch
	if !ok {
		p.err = io.EOF
		return nil, io.EOF
	}
	if item.err != nil {
		p.err = item.err
		return nil, item.err
	}
	p.prev = item.buf
	return item.buf, nil
}

// Close stops the reader goroutine and closes the wrapped source.
func (p *PrefetchSource) Close() error {
	var err error
	p.once.Do(func() {
		close(p.stop)
		<-p.done
		err = CloseSource(p.src)
	})
	return err
}

// CloseSource closes src if it implements io.Closer.
func CloseSource(src Source) error {
	if c, ok := src.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
