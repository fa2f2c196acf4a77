package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Delay = time.Millisecond
	return cfg
}

func TestLines(t *testing.T) {
	assert.Equal(t, []string{"a", "b c", "d"}, Lines("a\r\nb c\n\n  \r\nd\r"))
	assert.Empty(t, Lines(""))
	assert.Empty(t, Lines("\n\r\n"))
}

func TestIsRemote(t *testing.T) {
	assert.True(t, IsRemote("https://example.com/sigs.txt"))
	assert.True(t, IsRemote("HTTP://example.com"))
	assert.False(t, IsRemote("/etc/fdsec/sigs.txt"))
	assert.False(t, IsRemote("ftp://example.com"))
}

func TestFetch_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "hashes.txt")
	require.NoError(t, os.WriteFile(path, []byte("aa\r\n\r\nbb\n"), 0o644))

	lines, err := Fetch(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, []string{"aa", "bb"}, lines)

	_, err = Fetch(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.Error(t, err)
}

func TestFetch_HTTP(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("4D5A AND DEAD\r\nCAFEBABE\r\n"))
	}))
	defer srv.Close()

	lines, err := FetchWithConfig(context.Background(), srv.URL, testConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"4D5A AND DEAD", "CAFEBABE"}, lines)
}

func TestFetch_RetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	lines, err := FetchWithConfig(context.Background(), srv.URL, testConfig())
	require.NoError(t, err)
	assert.Equal(t, []string{"ok"}, lines)
	assert.Equal(t, int32(3), calls.Load())
}

func TestFetch_GivesUpAfterAttempts(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.Attempts = 2
	_, err := FetchWithConfig(context.Background(), srv.URL, cfg)

	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, http.StatusBadGateway, serr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestFetch_ClientErrorsAreNotRetried(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := FetchWithConfig(context.Background(), srv.URL, testConfig())
	var serr *StatusError
	require.ErrorAs(t, err, &serr)
	assert.False(t, serr.Temporary())
	assert.Equal(t, int32(1), calls.Load())
}

func TestFetch_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	cfg := testConfig()
	cfg.Delay = time.Hour
	_, err := FetchWithConfig(ctx, srv.URL, cfg)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetch_RejectsOversizedList(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte("4D5A90\r\nDEADBEEFCAFE\r\n"))
	}))
	defer srv.Close()

	cfg := testConfig()
	cfg.MaxBytes = 12
	lines, err := FetchWithConfig(context.Background(), srv.URL, cfg)
	assert.ErrorIs(t, err, ErrTooLarge)
	assert.Nil(t, lines)
	assert.Equal(t, int32(1), calls.Load(), "an oversized list is not retried")

	cfg.MaxBytes = int64(len("4D5A90\r\nDEADBEEFCAFE\r\n"))
	lines, err = FetchWithConfig(context.Background(), srv.URL, cfg)
	require.NoError(t, err)
	assert.Equal(t, []string{"4D5A90", "DEADBEEFCAFE"}, lines)
}
