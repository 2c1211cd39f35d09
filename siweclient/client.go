package siweclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/layer-3/axiom/core"
	"github.com/layer-3/axiom/wallet"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	messageTTL      = 5 * time.Minute
	rejectedMessage = "Signature request was rejected. Please approve the signature to verify your wallet."
)

// Signer signs a text message with the wallet's key. *wallet.Session is a Signer.
type Signer interface {
	Sign(ctx context.Context, message string) (string, error)
}

// Result is the outcome of a sign-in attempt. Failures are reported here
// rather than as errors.
type Result struct {
	Success bool
	Address string
	ChainID int64
	Error   string
}

// SessionInfo mirrors the server's session endpoint
type SessionInfo struct {
	Authenticated   bool      `json:"authenticated"`
	Address         string    `json:"address,omitempty"`
	ChainID         int64     `json:"chainId,omitempty"`
	AuthenticatedAt time.Time `json:"authenticatedAt"`
}

// Client drives the SIWE exchange against an Axiom server and caches the
// resulting session state
type Client struct {
	base      *url.URL
	http      *http.Client
	log       *zap.Logger
	statement string
	now       func() time.Time

	group  singleflight.Group
	mu     sync.Mutex
	cached *SessionInfo
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. A cookie jar is added when the
// client has none.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the client logger
func WithLogger(log *zap.Logger) Option {
	return func(c *Client) { c.log = log }
}

// WithStatement overrides the statement embedded in sign-in messages
func WithStatement(statement string) Option {
	return func(c *Client) { c.statement = statement }
}

// New creates a client for the server at baseURL
func New(baseURL string, opts ...Option) (*Client, error) {
	base, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid base url %q", baseURL)
	}

	c := &Client{
		base:      base,
		http:      &http.Client{Timeout: 30 * time.Second},
		log:       zap.NewNop(),
		statement: DefaultStatement,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}

	if c.http.Jar == nil {
		jar, err := cookiejar.New(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to create cookie jar: %w", err)
		}
		c.http.Jar = jar
	}
	return c, nil
}

// SignIn proves ownership of address by having signer sign a fresh SIWE
// message and exchanging it for a session cookie
func (c *Client) SignIn(ctx context.Context, signer Signer, address string, chainID int64) Result {
	if signer == nil {
		return Result{Error: "No signing method available"}
	}

	checksummed, err := core.NormalizeAddress(address)
	if err != nil {
		return Result{Error: "Invalid wallet address"}
	}

	nonce, err := c.fetchNonce(ctx)
	if err != nil {
		c.log.Warn("failed to fetch siwe nonce", zap.Error(err))
		return Result{Error: "Failed to start sign-in"}
	}

	message, err := BuildMessage(MessageParams{
		Domain:    c.base.Host,
		URI:       c.base.String(),
		Address:   checksummed,
		ChainID:   chainID,
		Nonce:     nonce,
		Statement: c.statement,
		IssuedAt:  c.now(),
		TTL:       messageTTL,
	})
	if err != nil {
		return Result{Error: err.Error()}
	}

	signature, err := signer.Sign(ctx, message)
	if err != nil {
		if errors.Is(err, wallet.ErrUserRejected) {
			return Result{Error: rejectedMessage}
		}
		c.log.Warn("siwe signing failed", zap.Error(err))
		return Result{Error: err.Error()}
	}

	var verified struct {
		Success bool   `json:"success"`
		Address string `json:"address"`
		ChainID int64  `json:"chainId"`
		Error   string `json:"error"`
	}
	status, err := c.do(ctx, http.MethodPost, "/api/auth/siwe/verify", map[string]string{
		"message":   message,
		"signature": signature,
	}, &verified)
	if err != nil {
		c.log.Warn("siwe verify request failed", zap.Error(err))
		return Result{Error: "Sign-in failed"}
	}
	if status != http.StatusOK || !verified.Success {
		if verified.Error == "" {
			verified.Error = "Verification failed"
		}
		return Result{Error: verified.Error}
	}

	c.mu.Lock()
	c.cached = &SessionInfo{
		Authenticated:   true,
		Address:         verified.Address,
		ChainID:         verified.ChainID,
		AuthenticatedAt: c.now(),
	}
	c.mu.Unlock()

	return Result{Success: true, Address: verified.Address, ChainID: verified.ChainID}
}

// Session returns the server's view of the current session. A cached answer
// is used unless force is set; concurrent checks share one request.
func (c *Client) Session(ctx context.Context, force bool) (*SessionInfo, error) {
	if !force {
		c.mu.Lock()
		cached := c.cached
		c.mu.Unlock()
		if cached != nil {
			info := *cached
			return &info, nil
		}
	}

	v, err, _ := c.group.Do("session", func() (interface{}, error) {
		var info SessionInfo
		status, err := c.do(ctx, http.MethodGet, "/api/auth/siwe/session", nil, &info)
		if err != nil {
			return nil, err
		}
		if status != http.StatusOK {
			return nil, fmt.Errorf("session check failed with status %d", status)
		}

		c.mu.Lock()
		c.cached = &info
		c.mu.Unlock()
		return info, nil
	})
	if err != nil {
		return &SessionInfo{}, err
	}

	info := v.(SessionInfo)
	return &info, nil
}

// Logout ends the server session and forgets the cached state
func (c *Client) Logout(ctx context.Context) error {
	defer c.ClearCache()

	status, err := c.do(ctx, http.MethodPost, "/api/auth/siwe/logout", nil, nil)
	if err != nil {
		return fmt.Errorf("logout failed: %w", err)
	}
	if status != http.StatusOK {
		return fmt.Errorf("logout failed with status %d", status)
	}
	return nil
}

// IsAuthenticated reports the cached session state without a request
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cached != nil && c.cached.Authenticated
}

// AuthenticatedAddress returns the cached session address, or ""
func (c *Client) AuthenticatedAddress() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cached == nil || !c.cached.Authenticated {
		return ""
	}
	return c.cached.Address
}

// ClearCache drops the cached session state
func (c *Client) ClearCache() {
	c.mu.Lock()
	c.cached = nil
	c.mu.Unlock()
}

// HTTPClient returns the underlying client, which carries the session cookie
func (c *Client) HTTPClient() *http.Client {
	return c.http
}

func (c *Client) fetchNonce(ctx context.Context) (string, error) {
	var body struct {
		Nonce string `json:"nonce"`
	}
	status, err := c.do(ctx, http.MethodGet, "/api/auth/siwe/nonce", nil, &body)
	if err != nil {
		return "", err
	}
	if status != http.StatusOK || body.Nonce == "" {
		return "", fmt.Errorf("nonce request failed with status %d", status)
	}
	return body.Nonce, nil
}

// do sends a JSON request and decodes the JSON response into out when out is
// non-nil. Non-2xx responses are decoded too and reported through the status.
func (c *Client) do(ctx context.Context, method, path string, in, out any) (int, error) {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return 0, fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base.String()+path, body)
	if err != nil {
		return 0, fmt.Errorf("failed to create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil && !errors.Is(err, io.EOF) {
			return resp.StatusCode, fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return resp.StatusCode, nil
}
