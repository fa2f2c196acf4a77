package matcher

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// drain collects every chunk of src, copying because chunks may be reused.
func drain(t *testing.T, src Source) ([][]byte, error) {
	t.Helper()
	var chunks [][]byte
	for {
		chunk, err := src.Next()
		if errors.Is(err, io.EOF) {
			return chunks, nil
		}
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, append([]byte(nil), chunk...))
	}
}

func TestBytesSource(t *testing.T) {
	chunks, err := drain(t, NewBytesSource([]byte("abcdefg"), 3))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("abc"), []byte("def"), []byte("g")}, chunks)
}

func TestBytesSource_Empty(t *testing.T) {
	chunks, err := drain(t, NewBytesSource(nil, 3))
	require.NoError(t, err)
	assert.Empty(t, chunks)
}

func TestBytesSource_DefaultSize(t *testing.T) {
	chunks, err := drain(t, NewBytesSource([]byte("abc"), 0))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("abc")}, chunks)
}

func TestReaderSource(t *testing.T) {
	src := NewReaderSource(bytes.NewReader([]byte("abcdefgh")), 4)
	chunks, err := drain(t, src)
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("efgh")}, chunks)

	// Stays at EOF
	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestReaderSource_ShortFinalChunk(t *testing.T) {
	chunks, err := drain(t, NewReaderSource(bytes.NewReader([]byte("abcde")), 4))
	require.NoError(t, err)
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("e")}, chunks)
}

// failingReader returns data, then an error.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}

func TestReaderSource_Error(t *testing.T) {
	boom := errors.New("permission denied")
	src := NewReaderSource(&failingReader{data: []byte("abcd"), err: boom}, 4)

	chunks, err := drain(t, src)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, [][]byte{[]byte("abcd")}, chunks)
}

func TestReaderSource_CloseClosesUnderlying(t *testing.T) {
	path := filepath.Join(t.TempDir(), "f")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0644))
	f, err := os.Open(path)
	require.NoError(t, err)

	src := NewReaderSource(f, 4)
	require.NoError(t, src.Close())
	_, err = f.Read(make([]byte, 1))
	assert.Error(t, err)
}

func TestMmapSource(t *testing.T) {
	content := bytes.Repeat([]byte("0123456789"), 10)
	path := filepath.Join(t.TempDir(), "image.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))

	src, err := OpenMmap(path, 32)
	require.NoError(t, err)
	defer src.Close()

	assert.Equal(t, len(content), src.Len())

	chunks, err := drain(t, src)
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, content, bytes.Join(chunks, nil))
}

func TestMmapSource_Missing(t *testing.T) {
	_, err := OpenMmap(filepath.Join(t.TempDir(), "nope"), 32)
	assert.Error(t, err)
}

func TestPrefetch_PreservesOrder(t *testing.T) {
	content := []byte("the quick brown fox jumps over the lazy dog")
	src := Prefetch(NewBytesSource(content, 5), 3)
	defer src.Close()

	chunks, err := drain(t, src)
	require.NoError(t, err)
	assert.Equal(t, content, bytes.Join(chunks, nil))
	assert.Len(t, chunks, 9)
}

func TestPrefetch_PropagatesError(t *testing.T) {
	boom := errors.New("device vanished")
	src := Prefetch(NewReaderSource(&failingReader{data: []byte("abcdefgh"), err: boom}, 4), 1)
	defer src.Close()

	chunks, err := drain(t, src)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, [][]byte{[]byte("abcd"), []byte("efgh")}, chunks)

	// The error is sticky
	_, err = src.Next()
	assert.ErrorIs(t, err, boom)
}

func TestPrefetch_CloseEarly(t *testing.T) {
	src := Prefetch(NewBytesSource(bytes.Repeat([]byte("x"), 1000), 1), 2)
	_, err := src.Next()
	require.NoError(t, err)
	require.NoError(t, src.Close())
	require.NoError(t, src.Close())
}

func TestCloseSource(t *testing.T) {
	assert.NoError(t, CloseSource(NewBytesSource(nil, 1)))
}
