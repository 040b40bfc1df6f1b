package request

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-http-utils/headers"
	"github.com/rs/zerolog/log"

	"github.com/tanq16/hreq/internal/ledger"
	"github.com/tanq16/hreq/internal/sink"
	"github.com/tanq16/hreq/internal/transport"
)

const (
	MaxRedirects   = 10
	copyBufferSize = 256 * 1024
)

// execute drives one execution from Configured to a terminal state and returns
// the classified error. Listeners for the terminal event are fired by run.
func (r *Request) execute(ctx context.Context) error {
	cfg := r.cfg
	dest := cfg.Destination

	var offset int64
	if cfg.AllowResume && dest.Resumable() {
		existing, err := ledger.CurrentLength(dest.Path())
		if err != nil {
			return err
		}
		offset = existing
		if offset > 0 {
			log.Debug().Str("op", "request/engine").Str("req", r.id).Msgf("Resuming %s from offset %d", dest.Path(), offset)
		}
	}

	r.transition(eventConnect)
	resp, err := r.connect(ctx, offset)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	code := resp.StatusCode
	rangeStart, rangeTotal, hasRange := parseContentRange(resp.Header.Get(headers.ContentRange))

	if offset > 0 {
		switch {
		case code == http.StatusRequestedRangeNotSatisfiable && hasRange && rangeTotal == offset:
			// the partial already holds everything
			r.transition(eventTransfer)
			if err := ledger.Promote(dest.Path()); err != nil {
				return err
			}
			r.transition(eventComplete)
			log.Info().Str("op", "request/engine").Str("req", r.id).Msgf("Partial file for %s was already complete", dest.Path())
			return nil
		case code == http.StatusPartialContent || (code == http.StatusOK && hasRange):
			if hasRange && rangeStart != offset {
				return &TransportError{Op: "resume", URL: r.URL(), StatusCode: code, Err: fmt.Errorf("%w: got start %d, want %d", ErrRangeMismatch, rangeStart, offset)}
			}
		case code == http.StatusOK:
			log.Warn().Str("op", "request/engine").Str("req", r.id).Msgf("Server does not support resume (status %d). Restarting download.", code)
			offset = 0
		}
	}

	if dest.Kind() != sink.KindMemory {
		if code < 200 || code > 399 {
			return &TransportError{Op: "status", URL: r.URL(), StatusCode: code, Err: fmt.Errorf("unexpected status code: %d", code)}
		}
		if code > 299 {
			// 3xx ends the request with nothing to store
			r.transition(eventTransfer)
			r.transition(eventComplete)
			log.Debug().Str("op", "request/engine").Str("req", r.id).Msgf("Status %d for %s, destination left untouched", code, r.URL())
			return nil
		}
	}

	expected := int64(-1)
	switch {
	case cfg.Method == http.MethodHead || code == http.StatusNoContent || code == http.StatusNotModified:
		expected = -1
	case resp.ContentLength >= 0:
		expected = offset + resp.ContentLength
	case hasRange && rangeTotal >= 0 && code == http.StatusPartialContent:
		expected = rangeTotal
	}

	s, err := sink.Open(dest, offset)
	if err != nil {
		if ledger.IsIOError(err) {
			return err
		}
		return &IOError{Op: "open", Path: dest.String(), Err: err}
	}

	r.transition(eventTransfer)
	res := r.copyBody(s, resp.Body, offset, expected)
	r.setBody(s)
	onDisk := offset + res.received
	readErr := res.readErr

	if res.writeErr != nil {
		s.Close()
		return res.writeErr
	}
	if readErr == nil && (expected < 0 || onDisk >= expected) {
		if err := s.Commit(); err != nil {
			return err
		}
		r.transition(eventComplete)
		return nil
	}

	if readErr == nil {
		readErr = io.ErrUnexpectedEOF
	}
	if err := s.Close(); err != nil {
		log.Warn().Str("op", "request/engine").Str("req", r.id).Err(err).Msg("Error closing partial destination")
	}
	if !dest.Resumable() {
		return &TransportError{Op: "transfer", URL: r.URL(), StatusCode: code, Err: readErr}
	}
	remaining := int64(-1)
	if expected >= 0 {
		remaining = expected - onDisk
	}
	r.transition(eventInterrupt)
	log.Warn().Str("op", "request/engine").Str("req", r.id).Msgf("Download of %s interrupted at %d bytes", dest.Path(), onDisk)
	return &PartialDownloadError{BytesRemaining: remaining, BytesOnDisk: onDisk, Err: readErr}
}

// connect issues the call and follows redirects hop by hop, firing the redirect
// listener once per 3xx response while following is enabled.
func (r *Request) connect(ctx context.Context, offset int64) (*transport.Response, error) {
	cfg := r.cfg
	method := cfg.Method
	target := cfg.URL
	header := cfg.Header.Clone()
	body := cfg.Body()
	if body != nil && header.Get(headers.ContentType) == "" {
		header.Set(headers.ContentType, "application/x-www-form-urlencoded")
	}

	for hops := 0; ; hops++ {
		resp, err := cfg.Transport.Do(ctx, &transport.Call{
			Method:     method,
			URL:        target,
			Header:     header.Clone(),
			Body:       body,
			RangeStart: offset,
		})
		if err != nil {
			return nil, &TransportError{Op: "connect", URL: target, Err: err}
		}
		r.setResponse(target, resp.StatusCode, resp.Header)
		if !cfg.FollowRedirects || resp.StatusCode < 300 || resp.StatusCode > 399 {
			return resp, nil
		}

		r.transition(eventRedirect)
		r.notify("redirected", cfg.OnRedirect)

		next, ok := redirectTarget(target, resp.Header.Get(headers.Location), resp.StatusCode)
		if !ok {
			// nothing to follow, e.g. 304
			return resp, nil
		}
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		if hops+1 >= MaxRedirects {
			return nil, &TransportError{Op: "redirect", URL: target, StatusCode: resp.StatusCode, Err: ErrTooManyRedirects}
		}
		if switchToGet(method, resp.StatusCode) {
			method = http.MethodGet
			body = nil
			header.Del(headers.ContentType)
			header.Del(headers.ContentLength)
		}
		log.Debug().Str("op", "request/engine").Str("req", r.id).Msgf("Following %d from %s to %s", resp.StatusCode, target, next)
		target = next
		r.transition(eventConnect)
	}
}

type copyResult struct {
	received int64
	readErr  error
	writeErr error
}

// copyBody streams src into s, counting only bytes the sink accepted. A clean
// end of stream leaves both errors nil.
func (r *Request) copyBody(s sink.Sink, src io.Reader, offset, expected int64) copyResult {
	buffer := make([]byte, copyBufferSize)
	var res copyResult
	for {
		bytesRead, readErr := src.Read(buffer)
		if bytesRead > 0 {
			written, writeErr := s.Write(buffer[:bytesRead])
			res.received += int64(written)
			r.totalRead.Add(int64(written))
			if r.cfg.OnProgress != nil {
				r.cfg.OnProgress(offset+res.received, expected)
			}
			if writeErr != nil {
				res.writeErr = writeErr
				return res
			}
		}
		if readErr != nil {
			if !errors.Is(readErr, io.EOF) {
				res.readErr = readErr
			}
			return res
		}
	}
}

func redirectTarget(current, location string, code int) (string, bool) {
	switch code {
	case http.StatusMovedPermanently, http.StatusFound, http.StatusSeeOther,
		http.StatusTemporaryRedirect, http.StatusPermanentRedirect:
	default:
		return "", false
	}
	if location == "" {
		return "", false
	}
	base, err := url.Parse(current)
	if err != nil {
		return "", false
	}
	next, err := base.Parse(location)
	if err != nil {
		return "", false
	}
	return next.String(), true
}

func switchToGet(method string, code int) bool {
	switch code {
	case http.StatusSeeOther:
		return method != http.MethodGet && method != http.MethodHead
	case http.StatusMovedPermanently, http.StatusFound:
		return method == http.MethodPost
	}
	return false
}

// parseContentRange reads "bytes start-end/total" or "bytes */total". total is -1
// when the server sent "*".
func parseContentRange(value string) (start, total int64, ok bool) {
	value = strings.TrimSpace(value)
	if !strings.HasPrefix(value, "bytes ") {
		return 0, 0, false
	}
	parts := strings.SplitN(strings.TrimPrefix(value, "bytes "), "/", 2)
	if len(parts) != 2 {
		return 0, 0, false
	}
	total = -1
	if parts[1] != "*" {
		t, err := strconv.ParseInt(parts[1], 10, 64)
		if err != nil {
			return 0, 0, false
		}
		total = t
	}
	if parts[0] == "*" {
		return -1, total, true
	}
	bounds := strings.SplitN(parts[0], "-", 2)
	if len(bounds) != 2 {
		return 0, 0, false
	}
	start, err := strconv.ParseInt(bounds[0], 10, 64)
	if err != nil {
		return 0, 0, false
	}
	if _, err := strconv.ParseInt(bounds[1], 10, 64); err != nil {
		return 0, 0, false
	}
	return start, total, true
}
