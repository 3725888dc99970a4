// Package session provides the pooled HTTP client shared by every task of a run.
package session

import (
	"compress/flate"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/andybalholm/brotli"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "nesfetch/0.1"

// ErrStatus is wrapped by every StatusError so callers can match non-2xx responses.
var ErrStatus = errors.New("unexpected response status")

// ErrBodyTooLarge is returned when a body exceeds Options.MaxBodyBytes.
var ErrBodyTooLarge = errors.New("response body exceeds limit")

// StatusError reports a response whose status code was not 2xx.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: status %d", e.URL, e.StatusCode)
}

func (e *StatusError) Unwrap() error {
	return ErrStatus
}

// Options controls the shared transport.
type Options struct {
	UserAgent string
	// Timeout bounds a whole request. Zero means no timeout.
	Timeout time.Duration
	// MaxConnsPerHost limits open connections to a single host. Zero means unlimited.
	MaxConnsPerHost int
	// MaxBodyBytes caps a response body. Zero means unlimited.
	MaxBodyBytes int64
}

// Response is a fetched body together with its status code.
type Response struct {
	StatusCode int
	Body       []byte
}

// OK reports whether the status code is 2xx.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode <= 299
}

// Session is a connection-pooling HTTP client shared by every task of one run.
// It is safe for concurrent use.
type Session struct {
	client       *http.Client
	transport    *http.Transport
	userAgent    string
	maxBodyBytes int64
}

// New creates a session with its own pooled transport.
func New(opts Options) *Session {
	if opts.UserAgent == "" {
		opts.UserAgent = DefaultUserAgent
	}

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   100,
		MaxConnsPerHost:       opts.MaxConnsPerHost,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Session{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		transport:    transport,
		userAgent:    opts.UserAgent,
		maxBodyBytes: opts.MaxBodyBytes,
	}
}

// Do fetches url and returns the decoded body whatever the status code.
// Only transport and decoding failures are errors.
func (s *Session) Do(ctx context.Context, url string) (*Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept-Encoding", "gzip, deflate, br")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http fetch failed: %w", err)
	}

	body, err := s.readBody(resp)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", url, err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}

// Get fetches url and returns the body, refusing any non-2xx response with a StatusError.
func (s *Session) Get(ctx context.Context, url string) ([]byte, error) {
	resp, err := s.Do(ctx, url)
	if err != nil {
		return nil, err
	}
	if !resp.OK() {
		return nil, &StatusError{URL: url, StatusCode: resp.StatusCode}
	}
	return resp.Body, nil
}

// GetPage fetches url and returns the body as text whatever the status code.
// An error page is still a page to scan.
func (s *Session) GetPage(ctx context.Context, url string) (string, error) {
	resp, err := s.Do(ctx, url)
	if err != nil {
		return "", err
	}
	return string(resp.Body), nil
}

// Close releases every pooled connection. Calling Close more than once is harmless.
func (s *Session) Close() {
	if s == nil {
		return
	}
	s.transport.CloseIdleConnections()
}

// readBody drains and closes resp.Body, decoding the content encoding we asked for.
func (s *Session) readBody(resp *http.Response) ([]byte, error) {
	if resp == nil || resp.Body == nil {
		return nil, errors.New("empty response body")
	}

	reader := io.Reader(resp.Body)
	closers := []io.Closer{resp.Body}

	encoding := strings.ToLower(strings.TrimSpace(resp.Header.Get("Content-Encoding")))
	switch encoding {
	case "gzip":
		gz, err := gzip.NewReader(resp.Body)
		if err != nil {
			_ = resp.Body.Close()
			return nil, fmt.Errorf("gzip decode: %w", err)
		}
		reader = gz
		closers = append(closers, gz)
	case "br":
		reader = brotli.NewReader(resp.Body)
	case "deflate":
		fl := flate.NewReader(resp.Body)
		reader = fl
		closers = append(closers, fl)
	}

	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i].Close()
		}
	}()

	if s.maxBodyBytes <= 0 {
		body, err := io.ReadAll(reader)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}

	body, err := io.ReadAll(io.LimitReader(reader, s.maxBodyBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if int64(len(body)) > s.maxBodyBytes {
		return nil, fmt.Errorf("%w of %d bytes", ErrBodyTooLarge, s.maxBodyBytes)
	}
	return body, nil
}
