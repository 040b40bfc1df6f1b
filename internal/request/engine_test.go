package request

import (
	"context"
	"errors"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tanq16/hreq/internal/ledger"
	"github.com/tanq16/hreq/internal/transport"
)

type fakeAdapter struct {
	status        int
	header        http.Header
	contentLength int64
	body          func() io.Reader
	err           error
	calls         []*transport.Call
}

func (f *fakeAdapter) Do(ctx context.Context, call *transport.Call) (*transport.Response, error) {
	f.calls = append(f.calls, call)
	if f.err != nil {
		return nil, f.err
	}
	header := f.header
	if header == nil {
		header = http.Header{}
	}
	return &transport.Response{
		StatusCode:    f.status,
		Header:        header,
		ContentLength: f.contentLength,
		Body:          io.NopCloser(f.body()),
	}, nil
}

func stringBody(s string) func() io.Reader {
	return func() io.Reader { return strings.NewReader(s) }
}

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, errors.New("disk full")
}

func TestShortBodyWithCleanEOF(t *testing.T) {
	final := filepath.Join(t.TempDir(), "short.bin")
	fake := &fakeAdapter{status: http.StatusOK, contentLength: 100, body: stringBody(strings.Repeat("a", 60))}

	req := New("http://example.com/file").DownloadTo(final).Transport(fake).MustBuild()
	err := req.Start(context.Background())

	var pe *PartialDownloadError
	require.True(t, errors.As(err, &pe))
	assert.Equal(t, int64(40), pe.BytesRemaining)
	assert.Equal(t, int64(60), pe.BytesOnDisk)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, StatePartiallyFailed, req.State())
}

func TestUnknownLength(t *testing.T) {
	dir := t.TempDir()

	t.Run("clean end is success", func(t *testing.T) {
		final := filepath.Join(dir, "unknown.bin")
		fake := &fakeAdapter{status: http.StatusOK, contentLength: -1, body: stringBody("streamed body")}
		req := New("http://example.com/file").DownloadTo(final).Transport(fake).MustBuild()
		require.NoError(t, req.Start(context.Background()))

		got, err := os.ReadFile(final)
		require.NoError(t, err)
		assert.Equal(t, "streamed body", string(got))
	})

	t.Run("read error is partial with unknown remainder", func(t *testing.T) {
		final := filepath.Join(dir, "unknown-broken.bin")
		boom := errors.New("connection reset")
		fake := &fakeAdapter{status: http.StatusOK, contentLength: -1, body: func() io.Reader {
			return io.MultiReader(strings.NewReader("abc"), iotest.ErrReader(boom))
		}}
		req := New("http://example.com/file").DownloadTo(final).Transport(fake).MustBuild()
		err := req.Start(context.Background())

		remaining, ok := BytesRemaining(err)
		require.True(t, ok)
		assert.Equal(t, int64(-1), remaining)
		assert.ErrorIs(t, err, boom)
		info, statErr := os.Stat(ledger.PartialPath(final))
		require.NoError(t, statErr)
		assert.Equal(t, int64(3), info.Size())
	})
}

func TestStreamWriteFailure(t *testing.T) {
	fake := &fakeAdapter{status: http.StatusOK, contentLength: 5, body: stringBody("hello")}
	var failed int
	req := New("http://example.com/").StreamTo(failingWriter{}).Transport(fake).
		OnFail(func(*Request) { failed++ }).
		MustBuild()
	err := req.Start(context.Background())

	assert.True(t, IsIOError(err))
	assert.False(t, IsTransportError(err))
	assert.Equal(t, 1, failed)
	assert.Equal(t, StateFailed, req.State())
	assert.Equal(t, int64(0), req.TotalBytesRead())
}

func TestResumeRangeMismatch(t *testing.T) {
	final := filepath.Join(t.TempDir(), "mismatch.bin")
	require.NoError(t, os.WriteFile(ledger.PartialPath(final), []byte("12345"), 0644))
	fake := &fakeAdapter{
		status:        http.StatusPartialContent,
		header:        http.Header{"Content-Range": {"bytes 0-9/10"}},
		contentLength: 10,
		body:          stringBody("0123456789"),
	}

	req := New("http://example.com/file").DownloadTo(final).AllowResume(true).Transport(fake).MustBuild()
	err := req.Start(context.Background())

	assert.True(t, IsTransportError(err))
	assert.ErrorIs(t, err, ErrRangeMismatch)
	require.Len(t, fake.calls, 1)
	assert.Equal(t, int64(5), fake.calls[0].RangeStart)
	got, readErr := os.ReadFile(ledger.PartialPath(final))
	require.NoError(t, readErr)
	assert.Equal(t, "12345", string(got))
}

func TestFormContentTypeDefault(t *testing.T) {
	fake := &fakeAdapter{status: http.StatusOK, contentLength: 0, body: stringBody("")}
	req := New("http://example.com/form").Method(http.MethodPut).Param("a", "1").Transport(fake).MustBuild()
	require.NoError(t, req.Start(context.Background()))

	require.Len(t, fake.calls, 1)
	assert.Equal(t, "application/x-www-form-urlencoded", fake.calls[0].Header.Get("Content-Type"))
	assert.Equal(t, "a=1", string(fake.calls[0].Body))

	fake.calls = nil
	req = New("http://example.com/form").Method(http.MethodPost).
		AddHeader("Content-Type", "text/plain").
		Parameters("raw").
		Transport(fake).MustBuild()
	require.NoError(t, req.Start(context.Background()))
	assert.Equal(t, "text/plain", fake.calls[0].Header.Get("Content-Type"))
}

func TestBuildValidation(t *testing.T) {
	tests := []struct {
		name    string
		builder *Builder
		field   string
	}{
		{"unparseable url", New("http://[::1"), "url"},
		{"unsupported scheme", New("ftp://example.com/file"), "url"},
		{"missing host", New("http:///path"), "url"},
		{"empty method", New("http://example.com").Method(" "), "method"},
		{"params on get", New("http://example.com").Param("a", "b"), "params"},
		{"raw params on head", New("http://example.com").Method("head").Parameters("a=b"), "params"},
		{"two destinations", New("http://example.com").DownloadTo("x").StreamTo(io.Discard), "destination"},
		{"empty path", New("http://example.com").DownloadTo(""), "destination"},
		{"nil stream", New("http://example.com").StreamTo(nil), "destination"},
		{"resume to memory", New("http://example.com").AllowResume(true), "resume"},
		{"resume to stream", New("http://example.com").StreamTo(io.Discard).AllowResume(true), "resume"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, err := tt.builder.Build()
			assert.Nil(t, req)
			var ce *ConfigurationError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestBuildFreezesConfiguration(t *testing.T) {
	b := New("http://example.com/a").Method("post").AddHeader("X-One", "1").Param("k", "v")
	req, err := b.Build()
	require.NoError(t, err)

	b.AddHeader("X-Two", "2").Param("k", "w")
	cfg := req.Config()
	assert.Equal(t, http.MethodPost, cfg.Method)
	assert.Empty(t, cfg.Header.Get("X-Two"))
	assert.Equal(t, []string{"v"}, cfg.Params["k"])
	assert.Equal(t, StateConfigured, req.State())
	assert.NotEmpty(t, req.ID())
	assert.True(t, cfg.FollowRedirects)
}

func TestConfigBody(t *testing.T) {
	assert.Nil(t, Config{}.Body())
	cfg := Config{RawParams: "a=1", Params: map[string][]string{"b": {"2 3"}}}
	assert.Equal(t, "a=1&b=2+3", string(cfg.Body()))
}

func TestParseContentRange(t *testing.T) {
	tests := []struct {
		value string
		start int64
		total int64
		ok    bool
	}{
		{"bytes 100-199/200", 100, 200, true},
		{"bytes 0-0/*", 0, -1, true},
		{"bytes */2048", -1, 2048, true},
		{" bytes 5-9/10 ", 5, 10, true},
		{"", 0, 0, false},
		{"items 0-1/2", 0, 0, false},
		{"bytes 1-2", 0, 0, false},
		{"bytes x-2/3", 0, 0, false},
		{"bytes 1-y/3", 0, 0, false},
		{"bytes 1-2/z", 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			start, total, ok := parseContentRange(tt.value)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.Equal(t, tt.start, start)
				assert.Equal(t, tt.total, total)
			}
		})
	}
}

func TestRedirectTarget(t *testing.T) {
	next, ok := redirectTarget("http://example.com/a/b", "../c", http.StatusFound)
	assert.True(t, ok)
	assert.Equal(t, "http://example.com/c", next)

	next, ok = redirectTarget("http://example.com/a", "https://other.org/x?y=1", http.StatusPermanentRedirect)
	assert.True(t, ok)
	assert.Equal(t, "https://other.org/x?y=1", next)

	_, ok = redirectTarget("http://example.com/a", "", http.StatusFound)
	assert.False(t, ok)
	_, ok = redirectTarget("http://example.com/a", "/b", http.StatusNotModified)
	assert.False(t, ok)
	_, ok = redirectTarget("http://example.com/a", "/b", http.StatusMultipleChoices)
	assert.False(t, ok)
}

func TestSwitchToGet(t *testing.T) {
	assert.True(t, switchToGet(http.MethodPost, http.StatusSeeOther))
	assert.True(t, switchToGet(http.MethodPut, http.StatusSeeOther))
	assert.False(t, switchToGet(http.MethodHead, http.StatusSeeOther))
	assert.True(t, switchToGet(http.MethodPost, http.StatusFound))
	assert.True(t, switchToGet(http.MethodPost, http.StatusMovedPermanently))
	assert.False(t, switchToGet(http.MethodPut, http.StatusFound))
	assert.False(t, switchToGet(http.MethodPost, http.StatusTemporaryRedirect))
	assert.False(t, switchToGet(http.MethodPost, http.StatusPermanentRedirect))
}

func TestErrorClassifiers(t *testing.T) {
	pe := &PartialDownloadError{BytesRemaining: 10, BytesOnDisk: 5, Err: io.ErrUnexpectedEOF}
	assert.Contains(t, pe.Error(), "10 bytes remaining")
	assert.Contains(t, (&PartialDownloadError{BytesRemaining: -1, Err: io.EOF}).Error(), "remaining unknown")
	_, ok := BytesRemaining(errors.New("plain"))
	assert.False(t, ok)

	te := &TransportError{Op: "status", URL: "http://x", StatusCode: 500, Err: errors.New("bad")}
	assert.Equal(t, "status http://x: bad", te.Error())
	assert.True(t, IsTransportError(te))
	assert.False(t, IsPartialDownload(te))

	ce := &ConfigurationError{Field: "url", Reason: "missing host"}
	assert.Equal(t, "invalid request configuration (url): missing host", ce.Error())

	ioe := &IOError{Op: "write", Path: "/tmp/x", Err: errors.New("full")}
	assert.True(t, IsIOError(ioe))
}
