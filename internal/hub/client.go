package hub

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
)

const csrfCookie = "csrftoken"

// Credentials authenticate a Client. A token takes precedence over the
// username and password, which are used for a UI session login.
type Credentials struct {
	Username string
	Password string
	Token    string
}

// Client talks to the Automation Hub (galaxy_ng) REST API.
type Client struct {
	host    string // scheme://host[:port]
	apiRoot string // host + /api/<prefix>
	creds   Credentials
	client  *http.Client
	session bool // UI session established by Authenticate
}

// NewClient creates a new Automation Hub client rooted at host with the
// given API path prefix (usually "galaxy").
// If httpClient is nil, a default client is used. A cookie jar is attached
// when the client has none because session login relies on cookies.
func NewClient(host, pathPrefix string, creds Credentials, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if httpClient.Jar == nil {
		jar, _ := cookiejar.New(nil)
		httpClient.Jar = jar
	}
	host = strings.TrimRight(host, "/")
	return &Client{
		host:    host,
		apiRoot: host + "/api/" + strings.Trim(pathPrefix, "/"),
		creds:   creds,
		client:  httpClient,
	}
}

// Authenticate establishes the credentials for subsequent calls. Token auth
// is verified with a request to the API root; otherwise a UI session is
// opened with a CSRF protected login. Failures are returned as-is.
func (c *Client) Authenticate(ctx context.Context) error {
	if c.creds.Token != "" {
		if _, err := c.do(ctx, http.MethodGet, c.apiRoot+"/", nil); err != nil {
			return fmt.Errorf("authentication failed: %w", err)
		}
		return nil
	}

	loginURL := c.apiRoot + "/_ui/v1/auth/login/"

	// The GET only seeds the csrftoken cookie.
	if _, err := c.do(ctx, http.MethodGet, loginURL, nil); err != nil {
		return fmt.Errorf("fetching csrf token: %w", err)
	}

	login := map[string]string{
		"username": c.creds.Username,
		"password": c.creds.Password,
	}
	if _, err := c.do(ctx, http.MethodPost, loginURL, login); err != nil {
		return fmt.Errorf("authentication failed: %w", err)
	}
	c.session = true
	slog.Debug("hub session established", "host", c.host, "username", c.creds.Username)
	return nil
}

// Logout closes the UI session opened by Authenticate, if any.
func (c *Client) Logout(ctx context.Context) error {
	if !c.session {
		return nil
	}
	if _, err := c.do(ctx, http.MethodPost, c.apiRoot+"/_ui/v1/auth/logout/", map[string]any{}); err != nil {
		return fmt.Errorf("logging out: %w", err)
	}
	c.session = false
	return nil
}

// ServerVersion returns the version string the hub reports at its API root.
func (c *Client) ServerVersion(ctx context.Context) (string, error) {
	respBody, err := c.do(ctx, http.MethodGet, c.apiRoot+"/", nil)
	if err != nil {
		return "", fmt.Errorf("fetching server version: %w", err)
	}

	var root struct {
		ServerVersion string `json:"server_version"`
	}
	if err := json.Unmarshal(respBody, &root); err != nil {
		return "", fmt.Errorf("decoding server version: %w", err)
	}
	if root.ServerVersion == "" {
		return "", fmt.Errorf("%s did not report a server_version", c.apiRoot)
	}
	return root.ServerVersion, nil
}

// do executes a request and returns the response body. Non-2xx responses
// are returned as *HTTPStatusError.
func (c *Client) do(ctx context.Context, method, reqURL string, payload any) ([]byte, error) {
	var body io.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("marshaling request body: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, body)
	if err != nil {
		return nil, fmt.Errorf("creating %s request: %w", method, err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	c.setAuth(req)

	slog.Debug("hub request", "method", method, "url", reqURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing %s %s: %w", method, reqURL, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading response from %s: %w", reqURL, err)
	}

	if resp.StatusCode >= 400 {
		return nil, &HTTPStatusError{
			StatusCode: resp.StatusCode,
			URL:        reqURL,
			Body:       string(respBody),
		}
	}
	return respBody, nil
}

func (c *Client) setAuth(req *http.Request) {
	if c.creds.Token != "" {
		req.Header.Set("Authorization", "Token "+c.creds.Token)
		return
	}
	if isUnsafe(req.Method) {
		if token := c.csrfToken(req.URL); token != "" {
			req.Header.Set("X-CSRFToken", token)
		}
		// Django checks the referer of unsafe requests over HTTPS.
		req.Header.Set("Referer", c.host+"/")
	}
}

func (c *Client) csrfToken(u *url.URL) string {
	if c.client.Jar == nil {
		return ""
	}
	for _, cookie := range c.client.Jar.Cookies(u) {
		if cookie.Name == csrfCookie {
			return cookie.Value
		}
	}
	return ""
}

func isUnsafe(method string) bool {
	switch method {
	case http.MethodGet, http.MethodHead, http.MethodOptions:
		return false
	}
	return true
}
