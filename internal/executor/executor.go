// Package executor sends one HTTP request to a target and captures the
// exchange as domain values. Retries, redirects and timeouts are applied per
// call.
package executor

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-cleanhttp"
	"github.com/hashicorp/go-retryablehttp"

	"github.com/soyeahso/witness/internal/domain"
	"github.com/soyeahso/witness/internal/logging"
	"github.com/soyeahso/witness/internal/version"
)

// Config holds the defaults applied to calls that do not override them.
type Config struct {
	Timeout         time.Duration
	FollowRedirects bool
	MaxRedirects    int
	RetryMax        int
	RetryWaitMin    time.Duration
	RetryWaitMax    time.Duration
}

// DefaultConfig returns the stock executor settings.
func DefaultConfig() Config {
	return Config{
		Timeout:         30 * time.Second,
		FollowRedirects: true,
		MaxRedirects:    5,
		RetryMax:        2,
		RetryWaitMin:    100 * time.Millisecond,
		RetryWaitMax:    400 * time.Millisecond,
	}
}

// Options are per-call overrides. Zero values fall back to Config.
type Options struct {
	TimeoutMs       int
	FollowRedirects *bool
	MaxRedirects    int
}

// Call describes one request to send.
type Call struct {
	Target  string
	Method  string
	Path    string
	Headers map[string]string
	Body    any
	Options Options
}

// Result is the captured exchange. Request.Body is the caller's body even for
// methods that do not send one, so ids minted from it stay reproducible.
type Result struct {
	Request    domain.HTTPRequest
	Response   domain.HTTPResponse
	DurationMs int64
	Attempts   int
}

// Executor performs calls. It is safe for concurrent use.
type Executor struct {
	cfg       Config
	transport http.RoundTripper
	log       *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithTransport replaces the pooled transport, e.g. with a recorder in tests.
func WithTransport(rt http.RoundTripper) Option {
	return func(e *Executor) { e.transport = rt }
}

// New creates an Executor.
func New(cfg Config, log *logging.Logger, opts ...Option) *Executor {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = DefaultConfig().MaxRedirects
	}
	if cfg.RetryMax < 0 {
		cfg.RetryMax = 0
	}
	e := &Executor{
		cfg:       cfg,
		transport: cleanhttp.DefaultPooledTransport(),
		log:       log.Sub("executor"),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Execute sends the call and returns the captured exchange. Non-2xx statuses
// are returned as data. Failures are *ExecError values wrapping one of
// domain.ErrTimeout, domain.ErrCancelled or domain.ErrNetwork; bad input
// fails with domain.ErrInvalidArgument before any I/O.
func (e *Executor) Execute(ctx context.Context, call Call) (Result, error) {
	method := strings.ToUpper(strings.TrimSpace(call.Method))
	if !domain.IsKnownMethod(method) {
		return Result{}, fmt.Errorf("%w: unsupported method %q", domain.ErrInvalidArgument, call.Method)
	}
	fullURL, path, err := joinURL(call.Target, call.Path)
	if err != nil {
		return Result{}, err
	}

	headers := domain.MergeHeaders(nil, call.Headers)
	var payload []byte
	if domain.CarriesBody(method) && call.Body != nil {
		var isJSON bool
		payload, isJSON, err = encodeBody(call.Body)
		if err != nil {
			return Result{}, err
		}
		if _, ok := domain.HeaderValue(headers, "Content-Type"); isJSON && !ok {
			headers["Content-Type"] = "application/json"
		}
	}
	timeout := e.cfg.Timeout
	if call.Options.TimeoutMs > 0 {
		timeout = time.Duration(call.Options.TimeoutMs) * time.Millisecond
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var raw interface{}
	if len(payload) > 0 {
		raw = payload
	}
	req, err := retryablehttp.NewRequestWithContext(callCtx, method, fullURL, raw)
	if err != nil {
		return Result{}, fmt.Errorf("%w: %v", domain.ErrInvalidArgument, err)
	}
	for k, v := range headers {
		if strings.EqualFold(k, "Host") {
			req.Host = v
			continue
		}
		req.Header.Set(k, v)
	}
	// Sent but not recorded: stored headers are what the caller supplied.
	if _, ok := domain.HeaderValue(headers, "User-Agent"); !ok {
		req.Header.Set("User-Agent", version.UserAgent())
	}

	attempts := 0
	client := e.client(call.Options, &attempts)

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return Result{}, e.fail(ctx, callCtx, method, fullURL, start, attempts, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, e.fail(ctx, callCtx, method, fullURL, start, attempts, err)
	}
	duration := time.Since(start).Milliseconds()

	contentType := resp.Header.Get("Content-Type")
	result := Result{
		Request: domain.HTTPRequest{
			Method:  method,
			URL:     fullURL,
			Path:    path,
			Headers: headers,
			Body:    call.Body,
		},
		Response: domain.HTTPResponse{
			StatusCode:  resp.StatusCode,
			Headers:     flattenHeaders(resp.Header),
			Body:        decodeBody(contentType, data),
			ContentType: contentType,
			DurationMs:  duration,
		},
		DurationMs: duration,
		Attempts:   attempts,
	}
	if ct, ok := domain.HeaderValue(headers, "Content-Type"); ok {
		result.Request.ContentType = ct
	}

	e.log.Debug().
		Str("method", method).
		Str("url", fullURL).
		Int("status", resp.StatusCode).
		Int64("durationMs", duration).
		Int("attempts", attempts).
		Msg("request completed")

	return result, nil
}

// client builds a per-call retrying client sharing the executor's transport.
// Redirect policy and attempt counting are call-scoped.
func (e *Executor) client(opts Options, attempts *int) *retryablehttp.Client {
	follow := e.cfg.FollowRedirects
	if opts.FollowRedirects != nil {
		follow = *opts.FollowRedirects
	}
	maxRedirects := e.cfg.MaxRedirects
	if opts.MaxRedirects > 0 {
		maxRedirects = opts.MaxRedirects
	}

	rc := retryablehttp.NewClient()
	rc.HTTPClient = &http.Client{
		Transport:     e.transport,
		CheckRedirect: redirectPolicy(follow, maxRedirects),
	}
	rc.Logger = retryLogger{log: e.log}
	rc.RetryMax = e.cfg.RetryMax
	rc.RetryWaitMin = e.cfg.RetryWaitMin
	rc.RetryWaitMax = e.cfg.RetryWaitMax
	rc.CheckRetry = checkRetry
	rc.Backoff = exponentialBackoff
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	rc.RequestLogHook = func(_ retryablehttp.Logger, _ *http.Request, attempt int) {
		*attempts = attempt + 1
	}
	return rc
}

func (e *Executor) fail(parent, callCtx context.Context, method, fullURL string, start time.Time, attempts int, err error) error {
	execErr := &ExecError{
		Kind:     classify(parent, callCtx, err),
		Method:   method,
		URL:      fullURL,
		Elapsed:  time.Since(start),
		Attempts: attempts,
		Err:      err,
	}
	e.log.Warn().Err(err).
		Str("method", method).
		Str("url", fullURL).
		Str("kind", domain.Kind(execErr)).
		Dur("elapsed", execErr.Elapsed).
		Msg("request failed")
	return execErr
}

// joinURL concatenates target and path with exactly one slash between them.
// It returns the full URL and the path as sent.
func joinURL(target, path string) (string, string, error) {
	target = strings.TrimSpace(target)
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", "", fmt.Errorf("%w: target %q must be an absolute http(s) URL", domain.ErrInvalidArgument, target)
	}
	if strings.TrimSpace(path) == "" {
		return "", "", fmt.Errorf("%w: path is required", domain.ErrInvalidArgument)
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	return strings.TrimRight(target, "/") + path, path, nil
}

func redirectPolicy(follow bool, maxRedirects int) func(*http.Request, []*http.Request) error {
	return func(_ *http.Request, via []*http.Request) error {
		if !follow {
			return http.ErrUseLastResponse
		}
		if len(via) > maxRedirects {
			return fmt.Errorf("%w after %d redirects", errTooManyRedirects, maxRedirects)
		}
		return nil
	}
}

func flattenHeaders(h http.Header) map[string]string {
	out := make(map[string]string, len(h))
	for k, vs := range h {
		out[k] = strings.Join(vs, ", ")
	}
	return out
}
