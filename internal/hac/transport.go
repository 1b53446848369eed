package hac

import (
	"context"
	"crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
)

const csrfHeader = "X-CSRF-TOKEN"

// transport issues all HTTP traffic for one portal. It owns the cookie jar,
// the TLS configuration and the default headers; buffered calls go through a
// deadline-bounded client while archive streaming uses a client without an
// overall deadline so long downloads are not cut off mid-body.
type transport struct {
	api    *http.Client
	stream *http.Client

	mu        sync.RWMutex
	csrfToken string
}

func newTransport(insecureSkipVerify bool, timeout time.Duration) (*transport, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	base := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}
	if insecureSkipVerify {
		base.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &transport{
		api: &http.Client{
			Jar:       jar,
			Timeout:   timeout,
			Transport: base,
		},
		stream: &http.Client{
			Jar:       jar,
			Transport: base,
		},
	}, nil
}

// SetCSRFToken installs the active CSRF token. The auth negotiator replaces
// it twice per login cycle; this is the only mutation of transport state
// performed from outside.
func (t *transport) SetCSRFToken(token string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.csrfToken = token
}

// CSRFToken returns the active CSRF token, if any.
func (t *transport) CSRFToken() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.csrfToken
}

func (t *transport) applyHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	t.mu.RLock()
	if t.csrfToken != "" {
		req.Header.Set(csrfHeader, t.csrfToken)
	}
	t.mu.RUnlock()
}

// Get issues a buffered GET.
func (t *transport) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	t.applyHeaders(req)
	return t.api.Do(req)
}

// PostForm issues a form-encoded POST.
func (t *transport) PostForm(ctx context.Context, url string, form url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	t.applyHeaders(req)
	return t.api.Do(req)
}

// GetStream issues a GET whose body is streamed by the caller. The response
// body is not subject to the API deadline.
func (t *transport) GetStream(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	t.applyHeaders(req)
	return t.stream.Do(req)
}

// drainAndClose releases a response body so the connection can be reused.
func drainAndClose(body io.ReadCloser) {
	io.Copy(io.Discard, io.LimitReader(body, 4096))
	body.Close()
}
