package avanza

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseBody = 16 << 20
)

var errBodyTooLarge = errors.New("response body exceeds limit")

// Request is a logical API request. Path is relative to the base URL.
type Request struct {
	Method  string
	Path    string
	Query   url.Values
	Header  http.Header
	Cookies []*http.Cookie
	// Body is JSON encoded when non-nil.
	Body any

	// generation of the session attached to this request, zero if none.
	generation uint64
}

// NewRequest returns a request with an empty header set.
func NewRequest(method, path string) *Request {
	return &Request{Method: method, Path: path, Header: make(http.Header)}
}

// Response is a raw API response. Body is the undecoded payload.
type Response struct {
	StatusCode int
	Header     http.Header
	Cookies    []*http.Cookie
	Body       []byte
	Request    *Request
}

// Transport sends a logical request and returns the raw response. Any
// non-2xx status comes back as a *TransportError with the response attached.
// Implementations must not retry.
type Transport interface {
	Send(ctx context.Context, req *Request) (*Response, error)
}

// Limiter paces outgoing requests. *rate.Limiter satisfies it.
type Limiter interface {
	Wait(ctx context.Context) error
}

// HTTPTransport is the net/http backed Transport.
type HTTPTransport struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	// Limiter is optional; when set every request waits on it first.
	Limiter Limiter
	Logger  zerolog.Logger
	// MaxResponseBody caps the bytes read from a response. Zero means 16 MiB.
	MaxResponseBody int64
}

// NewHTTPTransport returns a transport with a finite default timeout.
func NewHTTPTransport(baseURL string) *HTTPTransport {
	return &HTTPTransport{
		BaseURL:    strings.TrimRight(baseURL, "/"),
		UserAgent:  DefaultUserAgent,
		HTTPClient: &http.Client{Timeout: defaultTimeout},
		Logger:     zerolog.Nop(),
	}
}

func (t *HTTPTransport) Send(ctx context.Context, req *Request) (*Response, error) {
	fail := func(err error) error {
		return &TransportError{Method: req.Method, Path: req.Path, Err: err}
	}

	if t.Limiter != nil {
		if err := t.Limiter.Wait(ctx); err != nil {
			return nil, fail(fmt.Errorf("rate limiter: %w", err))
		}
	}

	// Never hang on an unresponsive server, even with a caller supplied
	// client that has no timeout of its own.
	if _, ok := ctx.Deadline(); !ok && t.HTTPClient.Timeout == 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, defaultTimeout)
		defer cancel()
	}

	httpReq, err := t.build(ctx, req)
	if err != nil {
		return nil, fail(err)
	}

	start := time.Now()
	resp, err := t.HTTPClient.Do(httpReq)
	if err != nil {
		t.Logger.Debug().Err(err).Str("method", req.Method).Str("path", req.Path).Msg("request failed")
		return nil, fail(err)
	}
	defer resp.Body.Close()

	limit := t.MaxResponseBody
	if limit <= 0 {
		limit = maxResponseBody
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, fail(fmt.Errorf("failed to read response: %w", err))
	}
	if int64(len(body)) > limit {
		return nil, &TransportError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("%w (%d bytes)", errBodyTooLarge, limit),
		}
	}

	t.Logger.Debug().
		Str("method", req.Method).
		Str("path", req.Path).
		Int("status_code", resp.StatusCode).
		Dur("duration", time.Since(start)).
		Msg("request completed")

	out := &Response{
		StatusCode: resp.StatusCode,
		Header:     resp.Header,
		Cookies:    resp.Cookies(),
		Body:       body,
		Request:    req,
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		t.Logger.Warn().
			Int("status_code", resp.StatusCode).
			Str("path", req.Path).
			Str("response_body", truncate(string(body))).
			Msg("API returned non-2xx status")
		return nil, &TransportError{
			Method:     req.Method,
			Path:       req.Path,
			StatusCode: resp.StatusCode,
			Body:       body,
			Err:        fmt.Errorf("unexpected status %s", resp.Status),
			Response:   out,
		}
	}
	return out, nil
}

func (t *HTTPTransport) build(ctx context.Context, req *Request) (*http.Request, error) {
	u, err := url.Parse(t.BaseURL + req.Path)
	if err != nil {
		return nil, fmt.Errorf("invalid request path: %w", err)
	}
	if len(req.Query) > 0 {
		q := u.Query()
		for k, vs := range req.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}

	var body io.Reader
	if req.Body != nil {
		b, err := json.Marshal(req.Body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, u.String(), body)
	if err != nil {
		return nil, err
	}
	for k, vs := range req.Header {
		for _, v := range vs {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("User-Agent", t.UserAgent)
	httpReq.Header.Set("Accept", "application/json")
	if req.Body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for _, c := range req.Cookies {
		httpReq.AddCookie(c)
	}
	return httpReq, nil
}
