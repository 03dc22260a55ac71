// Package jira provides the session-resilient client for the tracker's REST
// API: cookie-session authentication, transparent re-authentication on
// session expiry, and the raw search/mutation primitives the domain layer
// builds on.
package jira

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pkg/browser"
	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"

	"github.com/ternarybob/tabula/internal/common"
	"github.com/ternarybob/tabula/internal/models"
)

const (
	// DefaultRateLimit is the default request rate (requests per second).
	DefaultRateLimit = 5

	sessionPath = "/rest/auth/1/session"

	// kerberosProbePath is fetched right after a negotiated handshake.
	// Some servers return 401 to legitimate follow-up calls issued before
	// a session cookie is set; a 200 here confirms the cookie took.
	kerberosProbePath = "/step-auth-gss"

	captchaMarker = "CAPTCHA_CHALLENGE"
)

// Client talks to the tracker over an authenticated cookie session. It owns
// its transport outright; re-authentication replaces the session cookies in
// place, never the Client itself.
type Client struct {
	config     common.ServerConfig
	baseURL    string
	httpClient *http.Client
	logger     arbor.ILogger
	limiter    *rate.Limiter

	promptPassword func() (string, error)
	confirm        func(prompt string) bool
	openBrowser    func(url string) error

	// reauthMu serializes re-authentication: one re-auth covers the
	// triggering request before its retry is issued.
	reauthMu sync.Mutex

	userMu   sync.Mutex
	user     *models.User
	password string // remembered after the first prompt so re-auth reuses it
}

// ClientOption configures the Client.
type ClientOption func(*Client)

// WithLogger sets a logger.
func WithLogger(logger arbor.ILogger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithHTTPClient sets a custom HTTP client. The caller is responsible for
// its cookie jar and TLS settings.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithRateLimit sets a custom rate limit.
func WithRateLimit(requestsPerSecond int) ClientOption {
	return func(c *Client) {
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), requestsPerSecond)
	}
}

// WithPasswordPrompt sets the interactive password prompt used when the
// configuration carries no password.
func WithPasswordPrompt(prompt func() (string, error)) ClientOption {
	return func(c *Client) {
		c.promptPassword = prompt
	}
}

// WithConfirm sets the yes/no prompt used by the CAPTCHA flow.
func WithConfirm(confirm func(prompt string) bool) ClientOption {
	return func(c *Client) {
		c.confirm = confirm
	}
}

// WithBrowserOpener overrides how the CAPTCHA flow opens the login page.
func WithBrowserOpener(open func(url string) error) ClientOption {
	return func(c *Client) {
		c.openBrowser = open
	}
}

// NewClient creates a tracker client from the server configuration. The
// transport is built lazily on the first Connect.
func NewClient(config common.ServerConfig, opts ...ClientOption) *Client {
	rateLimit := config.RateLimit
	if rateLimit <= 0 {
		rateLimit = DefaultRateLimit
	}

	c := &Client{
		config:      config,
		baseURL:     strings.TrimRight(config.URL, "/"),
		limiter:     rate.NewLimiter(rate.Limit(rateLimit), rateLimit),
		password:    config.Password,
		openBrowser: browser.OpenURL,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// BaseURL returns the server base URL the client was configured with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

var insecureWarnOnce sync.Once

// buildHTTPClient constructs the transport: cookie jar for the session
// cookies plus the configured TLS policy.
func (c *Client) buildHTTPClient() (*http.Client, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create cookie jar: %w", err)
	}

	tlsConfig := &tls.Config{}
	if c.config.CABundle != "" {
		pem, err := os.ReadFile(c.config.CABundle)
		if err != nil {
			return nil, fmt.Errorf("failed to read CA bundle %s: %w", c.config.CABundle, err)
		}
		pool := x509.NewCertPool()
		if !pool.AppendCertsFromPEM(pem) {
			return nil, fmt.Errorf("no certificates found in CA bundle %s", c.config.CABundle)
		}
		tlsConfig.RootCAs = pool
	}
	if c.config.InsecureSkipVerify {
		tlsConfig.InsecureSkipVerify = true
		insecureWarnOnce.Do(func() {
			fmt.Fprintln(os.Stderr, "Warning: SSL certificate verification is disabled!")
		})
	}

	var transport http.RoundTripper = &http.Transport{
		TLSClientConfig: tlsConfig,
	}
	if c.config.Auth == "kerberos" {
		transport, err = newKerberosTransport(transport)
		if err != nil {
			return nil, fmt.Errorf("kerberos initialization failed: %w", err)
		}
	}

	return &http.Client{
		Timeout:   c.config.RequestTimeout(),
		Transport: transport,
		Jar:       jar,
	}, nil
}

// Connect establishes the authenticated session using the configured auth
// mode. Re-running Connect replaces the session cookies in place.
func (c *Client) Connect(ctx context.Context) error {
	c.reauthMu.Lock()
	defer c.reauthMu.Unlock()
	return c.connectLocked(ctx)
}

// connectLocked performs the handshake. Callers hold reauthMu.
func (c *Client) connectLocked(ctx context.Context) error {
	if c.httpClient == nil {
		httpClient, err := c.buildHTTPClient()
		if err != nil {
			return err
		}
		c.httpClient = httpClient
	}

	if c.logger != nil {
		c.logger.Info().Str("url", c.baseURL).Str("auth", c.config.Auth).Msg("Connecting to tracker")
	}

	switch c.config.Auth {
	case "kerberos":
		return c.connectKerberos(ctx)
	default:
		return c.connectBasic(ctx)
	}
}

// connectBasic creates a cookie session from username and password. A
// CAPTCHA challenge is resolved by a guided browser login, then the
// handshake is retried exactly once.
func (c *Client) connectBasic(ctx context.Context) error {
	if c.config.Username == "" {
		return &AuthenticationError{Message: "basic auth requires a username in the configuration"}
	}
	if c.password == "" {
		if c.promptPassword == nil {
			return &AuthenticationError{Message: "no password configured and no interactive prompt available"}
		}
		password, err := c.promptPassword()
		if err != nil {
			return fmt.Errorf("failed to read password: %w", err)
		}
		c.password = password
	}

	err := c.createSession(ctx)
	var captchaErr *CaptchaError
	if !errors.As(err, &captchaErr) {
		return err
	}

	fmt.Println("Too many failed login attempts, answering a CAPTCHA is required")
	if c.confirm == nil {
		return captchaErr
	}
	if c.confirm(fmt.Sprintf("Open a browser to log in to '%s'?", c.baseURL)) {
		if err := c.openBrowser(captchaErr.LoginURL); err != nil && c.logger != nil {
			c.logger.Warn().Err(err).Msg("Failed to open browser")
		}
	}
	if !c.confirm("Have you logged in via the web browser?") {
		return captchaErr
	}

	// One retry after the manual step, never a loop.
	return c.createSession(ctx)
}

func (c *Client) createSession(ctx context.Context) error {
	payload, err := json.Marshal(map[string]string{
		"username": c.config.Username,
		"password": c.password,
	})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+sessionPath, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create session request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode == http.StatusOK {
		if c.logger != nil {
			c.logger.Info().Str("user", c.config.Username).Msg("Session established")
		}
		return nil
	}

	if denied := resp.Header.Get("X-Authentication-Denied-Reason"); strings.Contains(denied, captchaMarker) ||
		strings.Contains(string(body), captchaMarker) {
		return &CaptchaError{LoginURL: c.baseURL + "/login.jsp?nosso"}
	}

	return &AuthenticationError{
		Message: fmt.Sprintf("server returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body))),
	}
}

// connectKerberos issues the probe that coaxes the server into setting a
// session cookie; the transport attaches the negotiated SPNEGO token on the
// way out. A 200 confirms the session; anything else is a soft warning, the
// negotiated handshake result stands.
func (c *Client) connectKerberos(ctx context.Context) error {
	fmt.Println("Attempting to authenticate with kerberos...")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+kerberosProbePath, nil)
	if err != nil {
		return fmt.Errorf("failed to create probe request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))

	if resp.StatusCode == http.StatusOK {
		fmt.Println("Authenticated successfully")
	} else if c.logger != nil {
		c.logger.Warn().Int("status", resp.StatusCode).Msg("Kerberos probe did not confirm the session")
	}

	return nil
}

// reauthenticate re-runs the handshake with the same configured
// credentials and mode. Serialized so concurrent 401s share one attempt.
func (c *Client) reauthenticate(ctx context.Context) error {
	c.reauthMu.Lock()
	defer c.reauthMu.Unlock()

	if c.logger != nil {
		c.logger.Info().Msg("Session expired, re-authenticating")
	}
	return c.connectLocked(ctx)
}

// Me returns the authenticated user, memoized for the process lifetime.
func (c *Client) Me(ctx context.Context) (*models.User, error) {
	c.userMu.Lock()
	defer c.userMu.Unlock()

	if c.user != nil {
		return c.user, nil
	}

	var user models.User
	if err := c.do(ctx, http.MethodGet, "/rest/api/2/myself", nil, &user); err != nil {
		return nil, err
	}
	c.user = &user
	return c.user, nil
}

// CurrentUsername returns the cached login name, empty before the first Me.
func (c *Client) CurrentUsername() string {
	c.userMu.Lock()
	defer c.userMu.Unlock()
	if c.user == nil {
		return ""
	}
	return c.user.Name
}

// do executes one API request. A 401 triggers one re-authentication and one
// retry of the original request; a second 401 surfaces as an authentication
// failure rather than another retry.
func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	if c.httpClient == nil {
		if err := c.Connect(ctx); err != nil {
			return err
		}
	}

	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	status, err := c.doOnce(ctx, method, path, payload, result)
	if err != nil || status != http.StatusUnauthorized {
		return err
	}

	if reauthErr := c.reauthenticate(ctx); reauthErr != nil {
		return reauthErr
	}

	status, err = c.doOnce(ctx, method, path, payload, result)
	if status == http.StatusUnauthorized {
		return &AuthenticationError{Message: "request unauthorized after re-authentication"}
	}
	return err
}

// doOnce executes a single attempt. A 401 is reported through the returned
// status with a nil error so the caller decides whether to retry.
func (c *Client) doOnce(ctx context.Context, method, path string, payload []byte, result any) (int, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, fmt.Errorf("rate limiter interrupted: %w", err)
	}

	var bodyReader io.Reader
	if payload != nil {
		bodyReader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if c.logger != nil {
		c.logger.Debug().Str("method", method).Str("path", path).Msg("Tracker API request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return resp.StatusCode, nil
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return resp.StatusCode, &RateLimitError{RetryAfter: retryAfter(resp)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
		return resp.StatusCode, &APIError{
			StatusCode: resp.StatusCode,
			Message:    strings.TrimSpace(string(body)),
			Endpoint:   path,
		}
	}

	if result == nil || resp.StatusCode == http.StatusNoContent {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return resp.StatusCode, nil
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return resp.StatusCode, fmt.Errorf("failed to decode response from %s: %w", path, err)
	}

	return resp.StatusCode, nil
}

func retryAfter(resp *http.Response) time.Duration {
	if header := resp.Header.Get("Retry-After"); header != "" {
		if seconds, err := strconv.Atoi(header); err == nil && seconds > 0 {
			return time.Duration(seconds) * time.Second
		}
	}
	return time.Second
}
