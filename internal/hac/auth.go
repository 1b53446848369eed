package hac

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/net/html"

	"github.com/yunusemregul/hacmanager/internal/metrics"
)

// csrfTimeout bounds each CSRF document fetch. The portals serve the login
// page quickly or not at all.
const csrfTimeout = 3 * time.Second

// ObtainCSRF fetches the document at rawURL, extracts the `_csrf` token and
// installs it as the active CSRF header for all subsequent requests.
func (c *Client) ObtainCSRF(ctx context.Context, rawURL string) error {
	ctx, cancel := context.WithTimeout(ctx, csrfTimeout)
	defer cancel()

	c.log.Debug("obtaining csrf token", logURL(rawURL))

	resp, err := c.transport.Get(ctx, rawURL)
	if err != nil {
		return &CSRFError{URL: rawURL, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		return &CSRFError{URL: rawURL, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}

	token, err := extractCSRFToken(resp.Body)
	if err != nil {
		return &CSRFError{URL: rawURL, Err: err}
	}

	c.transport.SetCSRFToken(token)
	c.mu.Lock()
	c.csrfToken = token
	c.mu.Unlock()

	c.log.Debug("got csrf token")
	return nil
}

// extractCSRFToken scans an HTML document for an element named `_csrf` and
// returns its content (meta tag) or value (hidden input) attribute.
func extractCSRFToken(r io.Reader) (string, error) {
	z := html.NewTokenizer(r)
	for {
		switch z.Next() {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				return "", fmt.Errorf("parse document: %w", err)
			}
			return "", errors.New("no _csrf element in document")
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			var name, content, value string
			for _, attr := range tok.Attr {
				switch attr.Key {
				case "name":
					name = attr.Val
				case "content":
					content = attr.Val
				case "value":
					value = attr.Val
				}
			}
			if name != "_csrf" {
				continue
			}
			if content != "" {
				return content, nil
			}
			if value != "" {
				return value, nil
			}
			return "", errors.New("_csrf element has no token attribute")
		}
	}
}

// Login performs the two-phase CSRF + form-login sequence: pre-login token,
// credentialed POST, then a fresh post-login token required by all
// authenticated endpoints. A failure in either CSRF phase leaves the session
// unauthenticated. Calling Login while already authenticated re-runs the full
// sequence; callers gate on IsLoggedIn.
func (c *Client) Login(ctx context.Context) error {
	if err := c.ObtainCSRF(ctx, c.urls.csrfPreLogin); err != nil {
		metrics.RecordLoginAttempt(c.name, false)
		return err
	}

	c.log.Info("logging in")

	form := url.Values{
		"j_username": {c.creds.Username},
		"j_password": {c.creds.Password},
		"_csrf":      {c.transport.CSRFToken()},
	}
	resp, err := c.transport.PostForm(ctx, c.urls.login, form)
	if err != nil {
		metrics.RecordLoginAttempt(c.name, false)
		return fmt.Errorf("login request: %w", err)
	}
	drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		metrics.RecordLoginAttempt(c.name, false)
		return &LoginError{Status: resp.StatusCode}
	}

	// The post-login token differs from the pre-login one and is required
	// for the catalog and zip endpoints. Treat a failure here the same as a
	// pre-login failure: the session is not usable.
	if err := c.ObtainCSRF(ctx, c.urls.csrfPostLogin); err != nil {
		metrics.RecordLoginAttempt(c.name, false)
		return err
	}

	c.mu.Lock()
	c.loggedIn = true
	c.mu.Unlock()

	metrics.RecordLoginAttempt(c.name, true)
	c.log.Info("logged in")
	return nil
}

// IsLoggedIn reports whether the two-phase login has completed for this
// session. It is never reset automatically.
func (c *Client) IsLoggedIn() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.loggedIn
}
