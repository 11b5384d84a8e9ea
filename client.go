package avanza

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// Client is the entry point to the Avanza API. One Client holds at most one
// session; create several clients for several logins.
type Client struct {
	transport Transport
	sessions  *SessionManager
	retry     RetryPolicy
	log       zerolog.Logger
}

type clientOptions struct {
	baseURL            string
	userAgent          string
	httpClient         *http.Client
	timeout            time.Duration
	logger             zerolog.Logger
	debug              bool
	limiter            Limiter
	retry              RetryPolicy
	transport          Transport
	maxInactiveMinutes int
	secondFactorWindow time.Duration
}

// Option configures a Client.
type Option func(*clientOptions)

// WithBaseURL points the client at another host, e.g. a test server.
func WithBaseURL(u string) Option { return func(o *clientOptions) { o.baseURL = u } }

// WithUserAgent overrides the User-Agent header.
func WithUserAgent(ua string) Option { return func(o *clientOptions) { o.userAgent = ua } }

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option { return func(o *clientOptions) { o.httpClient = hc } }

// WithTimeout sets the per request timeout. Non-positive values are ignored.
func WithTimeout(d time.Duration) Option { return func(o *clientOptions) { o.timeout = d } }

// WithLogger sets the logger. The default discards everything.
func WithLogger(l zerolog.Logger) Option { return func(o *clientOptions) { o.logger = l } }

// WithDebug lowers the logger level to debug.
func WithDebug(debug bool) Option { return func(o *clientOptions) { o.debug = debug } }

// WithRateLimit paces requests to rps per second with the given burst.
func WithRateLimit(rps float64, burst int) Option {
	return func(o *clientOptions) { o.limiter = rate.NewLimiter(rate.Limit(rps), burst) }
}

// WithLimiter installs a custom request pacer.
func WithLimiter(l Limiter) Option { return func(o *clientOptions) { o.limiter = l } }

// WithRetry installs a retry policy for API operations. The handshake is
// never retried.
func WithRetry(p RetryPolicy) Option { return func(o *clientOptions) { o.retry = p } }

// WithTransport replaces the HTTP transport entirely. Transport related
// options are ignored when set.
func WithTransport(t Transport) Option { return func(o *clientOptions) { o.transport = t } }

// WithMaxInactiveMinutes sets the inactivity timeout requested at login.
func WithMaxInactiveMinutes(n int) Option { return func(o *clientOptions) { o.maxInactiveMinutes = n } }

// WithSecondFactorWindow bounds how long the second factor provider may take.
func WithSecondFactorWindow(d time.Duration) Option {
	return func(o *clientOptions) { o.secondFactorWindow = d }
}

// NewClient creates a new unauthenticated client.
func NewClient(opts ...Option) *Client {
	o := clientOptions{
		baseURL:            DefaultBaseURL,
		userAgent:          DefaultUserAgent,
		logger:             zerolog.Nop(),
		retry:              NoRetry{},
		maxInactiveMinutes: defaultMaxInactiveMinutes,
		secondFactorWindow: defaultSecondFactorWindow,
	}
	for _, opt := range opts {
		opt(&o)
	}

	log := o.logger
	if o.debug {
		log = log.Level(zerolog.DebugLevel)
	}

	t := o.transport
	if t == nil {
		ht := NewHTTPTransport(o.baseURL)
		ht.UserAgent = o.userAgent
		ht.Limiter = o.limiter
		ht.Logger = log.With().Str("component", "transport").Logger()
		if o.httpClient != nil {
			ht.HTTPClient = o.httpClient
		}
		if o.timeout > 0 {
			hc := *ht.HTTPClient
			hc.Timeout = o.timeout
			ht.HTTPClient = &hc
		}
		t = ht
	}

	sm := NewSessionManager(t, log)
	if o.maxInactiveMinutes > 0 {
		sm.maxInactiveMinutes = o.maxInactiveMinutes
	}
	if o.secondFactorWindow > 0 {
		sm.secondFactorWindow = o.secondFactorWindow
	}

	return &Client{
		transport: t,
		sessions:  sm,
		retry:     o.retry,
		log:       log.With().Str("component", "client").Logger(),
	}
}

// Authenticate logs in with creds, asking provider for the second factor.
// Errors are *AuthError; match them with errors.Is against ErrInvalidCredentials,
// ErrSecondFactorRejected, ErrSecondFactorExpired or ErrUnsupportedSecondFactor,
// or errors.As against *TransportError.
func (c *Client) Authenticate(ctx context.Context, creds Credentials, provider SecondFactorProvider) error {
	if err := c.sessions.Authenticate(ctx, creds, provider); err != nil {
		c.log.Warn().Err(err).Msg("authentication failed")
		return err
	}
	c.log.Info().Msg("authenticated")
	return nil
}

// Logout forgets the session.
func (c *Client) Logout() { c.sessions.Logout() }

// State returns the session state.
func (c *Client) State() State { return c.sessions.State() }

// IsAuthenticated reports whether a live session is held.
func (c *Client) IsAuthenticated() bool { return c.sessions.State() == StateAuthenticated }

// CustomerID returns the customer id bound to the session.
func (c *Client) CustomerID() (string, bool) { return c.sessions.CustomerID() }

// do sends an authenticated request, classifying failures into the APIError
// taxonomy and applying the retry policy.
func (c *Client) do(ctx context.Context, op string, req *Request) (*Response, error) {
	for attempt := 1; ; attempt++ {
		r := req.clone()
		if err := c.sessions.Attach(r); err != nil {
			return nil, &APIError{Op: op, Err: err}
		}

		resp, err := c.transport.Send(ctx, r)
		if err == nil {
			return resp, nil
		}

		var te *TransportError
		if errors.As(err, &te) && c.sessions.MarkExpiredIf(te.Response) {
			return nil, &APIError{Op: op, Err: fmt.Errorf("%w (status %d)", ErrSessionExpired, te.StatusCode)}
		}

		wait, ok := c.retry.Retry(ctx, r, attempt, err)
		if !ok {
			return nil, &APIError{Op: op, Err: err}
		}
		c.log.Debug().Err(err).Int("attempt", attempt).Dur("wait", wait).Str("op", op).Msg("retrying request")
		if serr := sleep(ctx, wait); serr != nil {
			return nil, &APIError{Op: op, Err: err}
		}
	}
}

// clone copies req so per-attempt session data does not accumulate.
func (r *Request) clone() *Request {
	out := *r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	out.Cookies = append([]*http.Cookie(nil), r.Cookies...)
	return &out
}

// fetch runs an operation and decodes its body.
func fetch[T any](ctx context.Context, c *Client, op string, req *Request, decode func([]byte) (T, error)) (T, error) {
	var zero T
	resp, err := c.do(ctx, op, req)
	if err != nil {
		return zero, err
	}
	v, err := decode(resp.Body)
	if err != nil {
		return zero, &APIError{Op: op, Err: err}
	}
	return v, nil
}
