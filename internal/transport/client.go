package transport

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"syscall"
	"time"

	"github.com/go-http-utils/headers"
	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
)

const DefaultUserAgent = "hreq/1.0"

type Config struct {
	Timeout        time.Duration
	KATimeout      time.Duration
	ProxyURL       string
	ProxyUsername  string
	ProxyPassword  string
	UserAgent      string
	Headers        map[string]string
	BearerToken    string
	HighThreadMode bool // advanced socket options for high concurrency
}

// Call is one request issued through an Adapter.
type Call struct {
	Method string
	URL    string
	Header http.Header
	Body   []byte
	// RangeStart asks for the bytes from this offset to the end when positive.
	RangeStart int64
}

// Response is the status line, headers and unread body of a Call. Body must be
// closed by the caller.
type Response struct {
	StatusCode    int
	Status        string
	Header        http.Header
	ContentLength int64
	Body          io.ReadCloser
}

// Adapter sends a single request and never follows redirects on its own.
type Adapter interface {
	Do(ctx context.Context, call *Call) (*Response, error)
}

type Client struct {
	client *http.Client
	config Config
}

var _ Adapter = (*Client)(nil)

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.KATimeout == 0 {
		cfg.KATimeout = 60 * time.Second
	}
	if cfg.Headers == nil {
		cfg.Headers = make(map[string]string)
	}
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		IdleConnTimeout:     cfg.KATimeout,
		MaxIdleConns:        100,
		MaxIdleConnsPerHost: 100,
		DisableCompression:  true,
		MaxConnsPerHost:     0,
	}
	if cfg.HighThreadMode {
		transport.DialContext = (&net.Dialer{
			Timeout:   30 * time.Second,
			KeepAlive: 30 * time.Second,
			Control: func(network, address string, c syscall.RawConn) error {
				return c.Control(func(fd uintptr) {
					setSocketOptions(fd)
				})
			},
		}).DialContext
	}
	if cfg.ProxyURL != "" {
		proxyURL, err := url.Parse(cfg.ProxyURL)
		if err != nil {
			log.Error().Str("op", "transport/client").Err(err).Msg("Invalid proxy URL, proceeding without proxy")
		} else {
			if cfg.ProxyUsername != "" {
				if cfg.ProxyPassword != "" {
					proxyURL.User = url.UserPassword(cfg.ProxyUsername, cfg.ProxyPassword)
				} else {
					proxyURL.User = url.User(cfg.ProxyUsername)
				}
			}
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}
	var rt http.RoundTripper = transport
	if cfg.BearerToken != "" {
		rt = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.BearerToken, TokenType: "Bearer"}),
			Base:   transport,
		}
	}
	return &Client{
		client: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: rt,
			// redirects are followed hop by hop by the request engine
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		config: cfg,
	}
}

func (c *Client) Do(ctx context.Context, call *Call) (*Response, error) {
	var body io.Reader
	if len(call.Body) > 0 {
		body = bytes.NewReader(call.Body)
	}
	req, err := http.NewRequestWithContext(ctx, call.Method, call.URL, body)
	if err != nil {
		return nil, fmt.Errorf("error creating %s request: %w", call.Method, err)
	}
	if c.config.UserAgent != "" {
		req.Header.Set(headers.UserAgent, c.config.UserAgent)
	} else {
		req.Header.Set(headers.UserAgent, DefaultUserAgent)
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	// per-call headers win over client defaults
	for k, values := range call.Header {
		req.Header.Del(k)
		for _, v := range values {
			req.Header.Add(k, v)
		}
	}
	if call.RangeStart > 0 {
		req.Header.Set(headers.Range, fmt.Sprintf("bytes=%d-", call.RangeStart))
	}

	log.Debug().Str("op", "transport/client").Msgf("%s %s", call.Method, call.URL)
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error executing %s request: %w", call.Method, err)
	}
	return &Response{
		StatusCode:    resp.StatusCode,
		Status:        resp.Status,
		Header:        resp.Header,
		ContentLength: resp.ContentLength,
		Body:          resp.Body,
	}, nil
}
