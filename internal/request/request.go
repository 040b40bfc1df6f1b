package request

import (
	"context"
	"net/http"
	"sync"

	"github.com/looplab/fsm"
	"github.com/rs/zerolog/log"
	"go.uber.org/atomic"

	"github.com/tanq16/hreq/internal/sink"
)

// Request is one configured HTTP exchange. Its configuration is fixed at Build;
// only the outcome fields change while it runs. A Request may be started again to
// retry the same transfer, but never concurrently.
type Request struct {
	id        string
	cfg       Config
	running   *atomic.Bool
	totalRead *atomic.Int64

	mu     sync.RWMutex
	state  *fsm.FSM
	cancel context.CancelFunc
	url    string
	code   int
	header http.Header
	body   []byte
	err    error
}

func newRequest(id string, cfg Config) *Request {
	return &Request{
		id:        id,
		cfg:       cfg,
		running:   atomic.NewBool(false),
		totalRead: atomic.NewInt64(0),
		state:     newStateMachine(id),
		url:       cfg.URL,
		header:    make(http.Header),
	}
}

func (r *Request) ID() string { return r.id }

// Config returns a copy of the frozen configuration.
func (r *Request) Config() Config {
	cfg := r.cfg
	cfg.Header = r.cfg.Header.Clone()
	return cfg
}

// URL is the effective URL: the configured one, or the latest redirect target.
func (r *Request) URL() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.url
}

func (r *Request) ResponseCode() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.code
}

// Header returns the response headers of the latest response.
func (r *Request) Header() http.Header {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.header.Clone()
}

// ResponseData is the buffered body. It is nil when the body went to a file or
// an output stream.
func (r *Request) ResponseData() []byte {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.body
}

func (r *Request) ResponseText() string {
	return string(r.ResponseData())
}

// TotalBytesRead counts body bytes accepted by the destination during the current
// or last execution. Bytes already on disk before a resume are not included.
func (r *Request) TotalBytesRead() int64 {
	return r.totalRead.Load()
}

// Err is the terminal error of the last execution, nil on success.
func (r *Request) Err() error {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.err
}

func (r *Request) State() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state.Current()
}

// Running reports whether an execution is in flight.
func (r *Request) Running() bool {
	return r.running.Load()
}

// Start runs the request on the calling goroutine and returns the same error the
// failed listener receives.
func (r *Request) Start(ctx context.Context) error {
	if !r.running.CAS(false, true) {
		return &ConfigurationError{Field: "state", Reason: "request already started", Err: ErrInProgress}
	}
	defer r.running.Store(false)
	return r.run(ctx)
}

// StartAsync runs the request on a new goroutine. Listeners are invoked on that
// goroutine, and the terminal error (nil on success) is sent on the returned
// channel, which is then closed.
func (r *Request) StartAsync(ctx context.Context) (<-chan error, error) {
	if !r.running.CAS(false, true) {
		return nil, &ConfigurationError{Field: "state", Reason: "request already started", Err: ErrInProgress}
	}
	done := make(chan error, 1)
	go func() {
		defer close(done)
		err := r.run(ctx)
		r.running.Store(false)
		done <- err
	}()
	return done, nil
}

// Abort cancels an in-flight execution. A file download keeps the bytes received
// so far for a later resume.
func (r *Request) Abort() {
	r.mu.RLock()
	cancel := r.cancel
	r.mu.RUnlock()
	if cancel != nil {
		cancel()
	}
}

func (r *Request) run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.reset(cancel)

	err := r.execute(ctx)

	r.mu.Lock()
	r.cancel = nil
	r.err = err
	r.mu.Unlock()

	if err != nil {
		if !IsPartialDownload(err) {
			r.transition(eventFail)
		}
		log.Error().Str("op", "request/run").Str("req", r.id).Err(err).Msgf("Request to %s failed", r.cfg.URL)
		r.notify("failed", r.cfg.OnFail)
		return err
	}
	log.Info().Str("op", "request/run").Str("req", r.id).Msgf("Request to %s finished with %d (%d bytes)", r.URL(), r.ResponseCode(), r.TotalBytesRead())
	r.notify("finished", r.cfg.OnFinish)
	return nil
}

func (r *Request) reset(cancel context.CancelFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.state = newStateMachine(r.id)
	r.cancel = cancel
	r.url = r.cfg.URL
	r.code = 0
	r.header = make(http.Header)
	r.body = nil
	r.err = nil
	r.totalRead.Store(0)
}

func (r *Request) transition(event string) {
	r.mu.RLock()
	state := r.state
	r.mu.RUnlock()
	if err := state.Event(event); err != nil {
		log.Warn().Str("op", "request/states").Str("req", r.id).Err(err).Msgf("Ignored %s in state %s", event, state.Current())
	}
}

func (r *Request) setResponse(url string, code int, header http.Header) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.url = url
	r.code = code
	if header == nil {
		header = make(http.Header)
	}
	r.header = header
}

func (r *Request) setBody(s sink.Sink) {
	mem, ok := s.(*sink.MemorySink)
	if !ok {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.body = mem.Bytes()
}

// notify runs a listener, recovering any panic so it cannot change the outcome.
func (r *Request) notify(kind string, l Listener) {
	if l == nil {
		return
	}
	defer func() {
		if p := recover(); p != nil {
			log.Error().Str("op", "request/listener").Str("req", r.id).Msgf("%s listener panicked: %v", kind, p)
		}
	}()
	l(r)
}
