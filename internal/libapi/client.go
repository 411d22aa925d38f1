package libapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// DefaultBaseURL is the seat reservation frontend of the SDU library.
const DefaultBaseURL = "http://seatwx.lib.sdu.edu.cn"

// The provider only serves the in-app WeChat browser.
const userAgent = "Mozilla/5.0 (Linux; Android 10; SM-G975F) AppleWebKit/537.36 " +
	"(KHTML, like Gecko) Version/4.0 Chrome/88.0.4324.181 Mobile Safari/537.36 MicroMessenger/8.0.58"

// Client is a minimal client for the library's seat API. All calls go
// through do, which sets the browser headers the provider checks.
type Client struct {
	hc      *http.Client
	base    string
	retries int
	log     *zap.Logger
}

type Option func(*Client)

// WithBaseURL points the client at a different host (tests).
func WithBaseURL(u string) Option {
	return func(c *Client) { c.base = strings.TrimRight(u, "/") }
}

// WithTimeout overrides the per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.hc.Timeout = d }
}

// WithRetries sets how often transient booking-call failures are re-issued.
func WithRetries(n int) Option {
	return func(c *Client) { c.retries = n }
}

func New(log *zap.Logger, opts ...Option) *Client {
	jar, _ := cookiejar.New(nil)
	c := &Client{
		hc:      &http.Client{Timeout: 5 * time.Second, Jar: jar},
		base:    DefaultBaseURL,
		retries: 2,
		log:     log,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// SetCookies injects session cookies for the client's host, replacing any
// jar state. Used to restore a WeChat session from configuration.
func (c *Client) SetCookies(cookies map[string]string) error {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return err
	}
	u, err := url.Parse(c.base)
	if err != nil {
		return err
	}
	cs := make([]*http.Cookie, 0, len(cookies))
	for name, value := range cookies {
		if value == "" {
			continue
		}
		cs = append(cs, &http.Cookie{Name: name, Value: value, Path: "/"})
	}
	jar.SetCookies(u, cs)
	c.hc.Jar = jar
	return nil
}

// ClearCookies drops all cached cookies before a forced re-login.
func (c *Client) ClearCookies() {
	jar, _ := cookiejar.New(nil)
	c.hc.Jar = jar
}

// envelope is the provider's uniform response wrapper. The shape of data
// varies by API version and is decoded per call site.
type envelope struct {
	Status int             `json:"status"`
	Msg    string          `json:"msg"`
	Data   json.RawMessage `json:"data"`
}

// do issues one request and returns the HTTP status and raw body. query may
// be nil; a non-nil form turns the request into a urlencoded POST.
func (c *Client) do(ctx context.Context, method, path, referer string, query, form url.Values) (int, []byte, error) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", "application/json, text/plain, */*")
	req.Header.Set("Accept-Language", "zh-CN,zh;q=0.9")
	req.Header.Set("X-Requested-With", "XMLHttpRequest")
	if referer == "" {
		referer = c.base + "/"
	}
	req.Header.Set("Referer", referer)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if query != nil {
		req.URL.RawQuery = query.Encode()
	}

	res, err := c.hc.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer res.Body.Close()
	b, err := io.ReadAll(res.Body)
	if err != nil {
		return res.StatusCode, nil, err
	}
	return res.StatusCode, b, nil
}

// doJSON performs do and decodes the provider envelope.
func (c *Client) doJSON(ctx context.Context, method, path, referer string, query, form url.Values) (envelope, error) {
	httpStatus, body, err := c.do(ctx, method, path, referer, query, form)
	if err != nil {
		return envelope{}, err
	}
	if httpStatus >= 400 {
		return envelope{}, fmt.Errorf("%s: http %d", path, httpStatus)
	}
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return envelope{}, fmt.Errorf("%s: decode response: %w", path, err)
	}
	return env, nil
}
