package request

import (
	"context"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/tanq16/hreq/internal/sink"
	"github.com/tanq16/hreq/internal/transport"
)

// Listener observes a request. It receives the request itself so it can read the
// response code, headers and error at the time of the event.
type Listener func(*Request)

// ProgressFunc reports bytes present at the destination and the expected total,
// which is -1 when unknown.
type ProgressFunc func(downloaded, total int64)

// Config is the frozen configuration of a Request.
type Config struct {
	URL             string
	Method          string
	Header          http.Header
	Params          url.Values
	RawParams       string
	FollowRedirects bool
	AllowResume     bool
	Destination     sink.Destination
	OnRedirect      Listener
	OnFinish        Listener
	OnFail          Listener
	OnProgress      ProgressFunc
	Transport       transport.Adapter
}

// Body returns the URL-encoded request body built from the parameters.
func (c Config) Body() []byte {
	parts := make([]string, 0, 2)
	if c.RawParams != "" {
		parts = append(parts, c.RawParams)
	}
	if len(c.Params) > 0 {
		parts = append(parts, c.Params.Encode())
	}
	if len(parts) == 0 {
		return nil
	}
	return []byte(strings.Join(parts, "&"))
}

var defaultTransport = sync.OnceValue(func() transport.Adapter {
	return transport.NewClient(transport.Config{})
})

// Builder collects configuration through chained calls. Nothing is validated
// until Build.
type Builder struct {
	cfg      Config
	destSets int
}

func New(rawURL string) *Builder {
	return &Builder{cfg: Config{
		URL:             rawURL,
		Method:          http.MethodGet,
		Header:          make(http.Header),
		Params:          make(url.Values),
		FollowRedirects: true,
	}}
}

func (b *Builder) Method(method string) *Builder {
	b.cfg.Method = strings.ToUpper(strings.TrimSpace(method))
	return b
}

// AddHeader appends a value; repeated names keep every value in order.
func (b *Builder) AddHeader(name, value string) *Builder {
	b.cfg.Header.Add(name, value)
	return b
}

// Param adds one URL-encoded body parameter.
func (b *Builder) Param(key, value string) *Builder {
	b.cfg.Params.Add(key, value)
	return b
}

// Parameters sets an already encoded parameter string such as "a=1&b=2".
func (b *Builder) Parameters(raw string) *Builder {
	b.cfg.RawParams = raw
	return b
}

func (b *Builder) FollowRedirects(follow bool) *Builder {
	b.cfg.FollowRedirects = follow
	return b
}

func (b *Builder) AllowResume(allow bool) *Builder {
	b.cfg.AllowResume = allow
	return b
}

func (b *Builder) DownloadTo(path string) *Builder {
	b.destSets++
	b.cfg.Destination = sink.File(path)
	return b
}

func (b *Builder) StreamTo(w io.Writer) *Builder {
	b.destSets++
	b.cfg.Destination = sink.Stream(w)
	return b
}

func (b *Builder) OnRedirect(l Listener) *Builder {
	b.cfg.OnRedirect = l
	return b
}

func (b *Builder) OnFinish(l Listener) *Builder {
	b.cfg.OnFinish = l
	return b
}

func (b *Builder) OnFail(l Listener) *Builder {
	b.cfg.OnFail = l
	return b
}

func (b *Builder) OnProgress(fn ProgressFunc) *Builder {
	b.cfg.OnProgress = fn
	return b
}

func (b *Builder) Transport(a transport.Adapter) *Builder {
	b.cfg.Transport = a
	return b
}

// Build validates the configuration and freezes it into a Request.
func (b *Builder) Build() (*Request, error) {
	cfg := b.cfg
	u, err := url.Parse(cfg.URL)
	if err != nil {
		return nil, &ConfigurationError{Field: "url", Reason: "cannot parse URL", Err: err}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, &ConfigurationError{Field: "url", Reason: "unsupported scheme " + u.Scheme}
	}
	if u.Host == "" {
		return nil, &ConfigurationError{Field: "url", Reason: "missing host"}
	}
	if cfg.Method == "" || strings.ContainsAny(cfg.Method, " \t\r\n") {
		return nil, &ConfigurationError{Field: "method", Reason: "invalid method " + cfg.Method}
	}
	if (len(cfg.Params) > 0 || cfg.RawParams != "") && (cfg.Method == http.MethodGet || cfg.Method == http.MethodHead) {
		return nil, &ConfigurationError{Field: "params", Reason: "body parameters need a method with a body, not " + cfg.Method}
	}
	if b.destSets > 1 {
		return nil, &ConfigurationError{Field: "destination", Reason: "download path and output stream are exclusive"}
	}
	switch cfg.Destination.Kind() {
	case sink.KindFile:
		if cfg.Destination.Path() == "" {
			return nil, &ConfigurationError{Field: "destination", Reason: "empty download path"}
		}
	case sink.KindStream:
		if cfg.Destination.Writer() == nil {
			return nil, &ConfigurationError{Field: "destination", Reason: "nil output stream"}
		}
	}
	if cfg.AllowResume && !cfg.Destination.Resumable() {
		return nil, &ConfigurationError{Field: "resume", Reason: "resume needs a download path, destination is " + cfg.Destination.Kind().String()}
	}
	if cfg.Transport == nil {
		cfg.Transport = defaultTransport()
	}
	cfg.Header = cfg.Header.Clone()
	params := make(url.Values, len(cfg.Params))
	for k, v := range cfg.Params {
		params[k] = append([]string(nil), v...)
	}
	cfg.Params = params

	cfg.URL = u.String()
	return newRequest(uuid.NewString(), cfg), nil
}

// MustBuild is Build for configurations known to be valid.
func (b *Builder) MustBuild() *Request {
	r, err := b.Build()
	if err != nil {
		panic(err)
	}
	return r
}

// Start builds and runs the request synchronously. The request is returned even
// when the execution fails so its outcome can be inspected.
func (b *Builder) Start(ctx context.Context) (*Request, error) {
	r, err := b.Build()
	if err != nil {
		return nil, err
	}
	return r, r.Start(ctx)
}
