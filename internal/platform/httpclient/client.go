// Package httpclient is the HTTP capability used by the recorder: GET with
// browser-like headers and an optional cookie string, with response status
// classified into sentinel errors.
package httpclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
)

// DefaultUserAgent is sent when Options.UserAgent is empty.
const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36"

const (
	defaultTimeout        = 30 * time.Second
	defaultConnectTimeout = 10 * time.Second

	// maxBodySize is the default response cap; segments are a few MB at most.
	maxBodySize = 64 << 20
)

var (
	// ErrNotFound is returned for HTTP 404 responses.
	ErrNotFound = errors.New("not found")

	// ErrForbidden is returned for HTTP 403 responses (private or restricted content).
	ErrForbidden = errors.New("forbidden")

	// ErrBlocked is returned when the response is a Cloudflare challenge page,
	// usually because the cf_clearance cookie expired or the User-Agent does not match it.
	ErrBlocked = errors.New("blocked by cloudflare challenge")

	// ErrAgeVerification is returned when the site demands age verification.
	ErrAgeVerification = errors.New("age verification required")

	// ErrBodyTooLarge is returned when a response exceeds Options.MaxBodySize.
	ErrBodyTooLarge = errors.New("response body too large")
)

// StatusError reports any other non-2xx response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status code %d for %s", e.Code, e.URL)
}

// Options configures a Client.
type Options struct {
	UserAgent      string
	Cookies        string
	Headers        map[string]string
	Timeout        time.Duration
	ConnectTimeout time.Duration
	// MaxBodySize caps a response body; zero means 64 MiB.
	MaxBodySize int64
}

// Client performs GET requests. It holds no per-room state and is safe for
// concurrent use.
type Client struct {
	http    *http.Client
	maxBody int64
}

// New returns a Client configured from opts.
func New(opts Options) *Client {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = defaultConnectTimeout
	}
	if opts.MaxBodySize <= 0 {
		opts.MaxBodySize = maxBodySize
	}

	headers := browserHeaders(opts.UserAgent)
	for k, v := range opts.Headers {
		headers[k] = v
	}
	if opts.Cookies != "" {
		headers["Cookie"] = opts.Cookies
	}

	base := &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   opts.ConnectTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &Client{
		http: &http.Client{
			Timeout:   opts.Timeout,
			Transport: &HeaderTransport{Headers: headers, Base: base},
		},
		maxBody: opts.MaxBodySize,
	}
}

// Get fetches url and returns the response body.
func (c *Client) Get(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "build request")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "get %s", url)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, errors.Wrapf(ErrNotFound, "get %s", url)
	case resp.StatusCode == http.StatusForbidden:
		return nil, errors.Wrapf(ErrForbidden, "get %s", url)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, errors.Wrapf(err, "read body of %s", url)
	}
	if int64(len(body)) > c.maxBody {
		return nil, errors.Wrapf(ErrBodyTooLarge, "get %s: over %d bytes", url, c.maxBody)
	}

	if strings.HasPrefix(resp.Header.Get("Content-Type"), "text/html") {
		if err := checkInterstitial(body); err != nil {
			return nil, errors.Wrapf(err, "get %s", url)
		}
	}

	return body, nil
}

func checkInterstitial(body []byte) error {
	page := string(body)
	if strings.Contains(page, "<title>Just a moment...</title>") {
		return ErrBlocked
	}
	if strings.Contains(page, "Verify your age") {
		return ErrAgeVerification
	}
	return nil
}
