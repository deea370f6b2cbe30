// Package chat talks to the remote chat platform on behalf of a user.
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"sort"
	"strings"
	"time"

	"github.com/VidhuSarwal/chatshare/internal/chaterr"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

const (
	DefaultTimeout   = 30 * time.Second
	DefaultRateLimit = 10 // requests per second
	DefaultUserAgent = "chatshare/1.0"

	maxResponseSize = 32 << 20
)

// TokenSource hands out a valid access token, refreshing it first if needed.
type TokenSource interface {
	AccessToken(ctx context.Context, userID string) (string, error)
}

// BaseURLFunc returns the API base URL, which may depend on admin settings.
type BaseURLFunc func(ctx context.Context) (string, error)

// Request is one authenticated API call.
type Request struct {
	UserID   string
	Method   string
	Endpoint string // appended to the base URL
	// Params go to the query string for GET and for raw Body or JSON
	// requests; otherwise they form a URL-encoded body.
	Params      map[string]any
	JSON        any
	Body        io.Reader
	ContentType string
}

// Response is a successful API reply.
type Response struct {
	Status      int
	ContentType string
	Body        []byte
}

// Client executes bearer-authenticated requests against the chat API.
type Client struct {
	httpClient *http.Client
	tokens     TokenSource
	baseURL    BaseURLFunc
	userAgent  string
	limiter    *rate.Limiter
	logger     *zap.Logger
}

// ClientOption configures the client
type ClientOption func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the HTTP timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit sets the rate limit. Zero or less disables it.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithUserAgent sets the fixed User-Agent header
func WithUserAgent(ua string) ClientOption {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

// WithLogger sets the logger
func WithLogger(logger *zap.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

func NewClient(tokens TokenSource, baseURL BaseURLFunc, opts ...ClientOption) *Client {
	c := &Client{
		httpClient: &http.Client{Timeout: DefaultTimeout},
		tokens:     tokens,
		baseURL:    baseURL,
		userAgent:  DefaultUserAgent,
		limiter:    rate.NewLimiter(rate.Limit(DefaultRateLimit), DefaultRateLimit),
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func validMethod(m string) bool {
	switch m {
	case http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete:
		return true
	}
	return false
}

// Do runs req. The method is checked before anything else, then the user's
// token is refreshed if needed. Any remote status >= 400 is reported as
// ErrBadCredentials.
func (c *Client) Do(ctx context.Context, req Request) (*Response, error) {
	method := strings.ToUpper(req.Method)
	if !validMethod(method) {
		return nil, fmt.Errorf("%w: %s", chaterr.ErrBadHTTPMethod, req.Method)
	}

	token, err := c.tokens.AccessToken(ctx, req.UserID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: not connected", chaterr.ErrBadCredentials)
	}

	base, err := c.baseURL(ctx)
	if err != nil {
		return nil, err
	}
	target := base + req.Endpoint

	var body io.Reader
	contentType := req.ContentType
	switch {
	case method == http.MethodGet:
		target = withQuery(target, encodeQuery(req.Params))
	case req.Body != nil:
		target = withQuery(target, encodeQuery(req.Params))
		body = req.Body
		if contentType == "" {
			contentType = "application/octet-stream"
		}
	case req.JSON != nil:
		target = withQuery(target, encodeQuery(req.Params))
		b, err := json.Marshal(req.JSON)
		if err != nil {
			return nil, chaterr.NewTransport(fmt.Errorf("encode request: %w", err))
		}
		body = bytes.NewReader(b)
		contentType = "application/json; charset=utf-8"
	default:
		body = strings.NewReader(encodeQuery(req.Params))
		contentType = "application/x-www-form-urlencoded"
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, chaterr.NewTransport(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}
	return c.send(ctx, httpReq, req.Endpoint)
}

// DoJSON runs req and decodes the reply into out.
func (c *Client) DoJSON(ctx context.Context, req Request, out any) error {
	resp, err := c.Do(ctx, req)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Body, out); err != nil {
		return chaterr.NewTransport(fmt.Errorf("decode %s response: %w", req.Endpoint, err))
	}
	return nil
}

// Download fetches an absolute URL with the user's credentials.
func (c *Client) Download(ctx context.Context, userID, rawURL string) (*Response, error) {
	token, err := c.tokens.AccessToken(ctx, userID)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, fmt.Errorf("%w: not connected", chaterr.ErrBadCredentials)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, chaterr.NewTransport(err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	return c.send(ctx, httpReq, rawURL)
}

func (c *Client) send(ctx context.Context, httpReq *http.Request, endpoint string) (*Response, error) {
	httpReq.Header.Set("User-Agent", c.userAgent)
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, chaterr.NewTransport(fmt.Errorf("rate limit wait: %w", err))
	}

	c.logger.Debug("chat api request", zap.String("method", httpReq.Method), zap.String("endpoint", endpoint))
	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, chaterr.NewTransport(err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, chaterr.NewTransport(err)
	}
	if resp.StatusCode >= 400 {
		c.logger.Warn("chat api returned an error status",
			zap.String("endpoint", endpoint),
			zap.Int("status", resp.StatusCode))
		return nil, fmt.Errorf("%w: %s returned %d", chaterr.ErrBadCredentials, endpoint, resp.StatusCode)
	}
	return &Response{Status: resp.StatusCode, ContentType: resp.Header.Get("Content-Type"), Body: b}, nil
}

func withQuery(target, query string) string {
	if query == "" {
		return target
	}
	if strings.Contains(target, "?") {
		return target + "&" + query
	}
	return target + "?" + query
}

// encodeQuery serializes params. Slice values come first as repeated
// key[]=value pairs (keys sorted, brackets left unescaped), followed by the
// scalar values in url.Values order.
func encodeQuery(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	var arrayKeys []string
	scalars := url.Values{}
	for k, v := range params {
		if v == nil {
			continue
		}
		if isList(v) {
			arrayKeys = append(arrayKeys, k)
			continue
		}
		scalars.Set(k, scalarString(v))
	}
	sort.Strings(arrayKeys)

	var parts []string
	for _, k := range arrayKeys {
		rv := reflect.ValueOf(params[k])
		for i := 0; i < rv.Len(); i++ {
			parts = append(parts, url.QueryEscape(k)+"[]="+url.QueryEscape(scalarString(rv.Index(i).Interface())))
		}
	}
	if enc := scalars.Encode(); enc != "" {
		parts = append(parts, enc)
	}
	return strings.Join(parts, "&")
}

func isList(v any) bool {
	if _, ok := v.([]byte); ok {
		return false
	}
	k := reflect.TypeOf(v).Kind()
	return k == reflect.Slice || k == reflect.Array
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return fmt.Sprint(t)
	}
}
