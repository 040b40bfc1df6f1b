package request

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"sync"
	"testing"
	"time"
)

// mockServer mirrors the knobs of a scripted HTTP peer: status, body, content
// type, and the byte at which the connection is dropped.
type mockServer struct {
	*httptest.Server

	mu          sync.Mutex
	code        int
	data        []byte
	contentType string
	stopAt      int
	ignoreRange bool
	block       chan struct{}

	lastMethod string
	lastHeader http.Header
	lastForm   url.Values
	hits       int
}

func newMockServer(t *testing.T) *mockServer {
	t.Helper()
	s := &mockServer{code: http.StatusOK, stopAt: -1}
	mux := http.NewServeMux()
	mux.HandleFunc("/", s.serveMock)
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusFound)
	})
	mux.HandleFunc("/twice", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/redirect", http.StatusMovedPermanently)
	})
	mux.HandleFunc("/see-other", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
	})
	mux.HandleFunc("/temporary", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/", http.StatusTemporaryRedirect)
	})
	mux.HandleFunc("/loop", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/loop", http.StatusFound)
	})
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

func (s *mockServer) setCode(code int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.code = code
}

func (s *mockServer) setData(data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = data
}

func (s *mockServer) setContentType(ct string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contentType = ct
}

func (s *mockServer) setStopAt(n int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopAt = n
}

func (s *mockServer) setIgnoreRange(ignore bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ignoreRange = ignore
}

// setBlock makes the server hang after sending stopAt bytes until ch is closed or
// the client goes away.
func (s *mockServer) setBlock(ch chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.block = ch
}

func (s *mockServer) seen() (string, http.Header, url.Values, int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastMethod, s.lastHeader, s.lastForm, s.hits
}

func (s *mockServer) serveMock(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	code, data, ct, stopAt, ignoreRange, block := s.code, s.data, s.contentType, s.stopAt, s.ignoreRange, s.block
	s.lastMethod = r.Method
	s.lastHeader = r.Header.Clone()
	s.hits++
	if r.Method == http.MethodPost {
		r.ParseForm()
		s.lastForm = r.PostForm
	}
	s.mu.Unlock()

	if ct != "" {
		w.Header().Set("Content-Type", ct)
	}
	w.Header().Set("X-Mock", "final")

	if code == http.StatusNotModified || code == http.StatusNoContent {
		w.WriteHeader(code)
		return
	}
	if code == http.StatusOK && stopAt < 0 && !ignoreRange && r.Header.Get("Range") != "" {
		http.ServeContent(w, r, "", time.Time{}, bytes.NewReader(data))
		return
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(code)
	if stopAt >= 0 && stopAt < len(data) {
		w.Write(data[:stopAt])
		w.(http.Flusher).Flush()
		if block != nil {
			select {
			case <-block:
			case <-r.Context().Done():
			}
		}
		panic(http.ErrAbortHandler)
	}
	w.Write(data)
}

func fixtureData(n int) []byte {
	data := make([]byte, n)
	for i := range data {
		data[i] = byte(i*31 + i/256)
	}
	return data
}
