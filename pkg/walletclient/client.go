/**
 * @description
 * This package is the remote fetch gateway of the wallet console. It wraps
 * every walletd endpoint, unwraps the uniform response envelope, attaches the
 * CSRF token to mutating requests, and reports each failure exactly once
 * through a notifier.
 */
package walletclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/transfa/wallet-desk/internal/domain"
	"github.com/transfa/wallet-desk/internal/notify"
)

const (
	// CSRFHeader carries the anti-forgery token on mutating requests.
	CSRFHeader = "X-CSRF-TOKEN"

	defaultTimeout  = 15 * time.Second
	maxResponseSize = 4 << 20
	genericFailure  = "Request failed"
)

// Client is a client for the walletd API.
type Client struct {
	baseURL    string
	token      string
	csrf       CSRFSource
	notifier   notify.Notifier
	httpClient *http.Client
	timeout    time.Duration
	logger     *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithCSRF sets the CSRF token source. By default the token is fetched from /session.
func WithCSRF(source CSRFSource) Option {
	return func(c *Client) { c.csrf = source }
}

// WithNotifier sets where failures are reported.
func WithNotifier(n notify.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

// WithTimeout bounds every request.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// NewClient creates a new walletd client authenticated with a session token.
func NewClient(baseURL, token string, opts ...Option) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		token:    strings.TrimSpace(token),
		notifier: notify.Discard{},
		timeout:  defaultTimeout,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{Timeout: c.timeout}
	}
	if c.csrf == nil {
		c.csrf = NewSessionCSRF(c.FetchCSRFToken)
	}
	return c
}

// Do performs one request and unwraps the envelope into out. Every failure is
// reported to the notifier, except cancellations requested by the caller.
func (c *Client) Do(ctx context.Context, method, path string, body, out interface{}) (*domain.Envelope, error) {
	envelope, err := c.roundTrip(ctx, method, path, body, out)
	if err != nil {
		c.report(ctx, err)
	}
	return envelope, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body, out interface{}) (*domain.Envelope, error) {
	op := method + " " + path
	if c.baseURL == "" {
		return nil, &TransportError{Op: op, Err: errors.New("wallet api base url is empty")}
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to marshal request: %w", err)}
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(reqCtx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, &TransportError{Op: op, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if isMutating(method) {
		token, err := c.csrf.Token(reqCtx)
		if err != nil {
			return nil, err
		}
		req.Header.Set(CSRFHeader, token)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: op, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: err}
	}
	c.logger.Debug("wallet api call",
		zap.String("op", op),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)),
	)

	if resp.StatusCode == 419 {
		c.csrf.Invalidate()
	}

	var envelope domain.Envelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode response: %w", err)}
	}
	if !envelope.Success {
		message := strings.TrimSpace(envelope.Message)
		if message == "" {
			message = genericFailure
		}
		return &envelope, &BusinessError{Status: resp.StatusCode, Message: message}
	}
	if out != nil && len(envelope.Data) > 0 {
		if err := json.Unmarshal(envelope.Data, out); err != nil {
			return &envelope, &TransportError{Op: op, Status: resp.StatusCode, Err: fmt.Errorf("failed to decode data: %w", err)}
		}
	}
	return &envelope, nil
}

func (c *Client) report(ctx context.Context, err error) {
	if errors.Is(ctx.Err(), context.Canceled) {
		c.logger.Debug("wallet api call cancelled", zap.NamedError("cause", context.Cause(ctx)))
		return
	}

	var business *BusinessError
	if errors.As(err, &business) {
		c.notifier.Notify(ctx, notify.Error(business.Message))
		return
	}
	c.logger.Warn("wallet api call failed", zap.Error(err))
	c.notifier.Notify(ctx, notify.Error(TransportMessage))
}

func isMutating(method string) bool {
	switch method {
	case http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete:
		return true
	}
	return false
}

// FetchCSRFToken reads the CSRF token of the current session without notifying.
func (c *Client) FetchCSRFToken(ctx context.Context) (string, error) {
	var info domain.SessionInfo
	if _, err := c.roundTrip(ctx, http.MethodGet, "/session", nil, &info); err != nil {
		return "", err
	}
	return info.CSRFToken, nil
}

// GetSession returns the authenticated team member and their CSRF token.
func (c *Client) GetSession(ctx context.Context) (*domain.SessionInfo, error) {
	var info domain.SessionInfo
	if _, err := c.Do(ctx, http.MethodGet, "/session", nil, &info); err != nil {
		return nil, err
	}
	return &info, nil
}

// GetWallet returns the balance snapshot of a contact.
func (c *Client) GetWallet(ctx context.Context, contactID int64) (*domain.WalletSnapshot, error) {
	var snapshot domain.WalletSnapshot
	if _, err := c.Do(ctx, http.MethodGet, walletPath(contactID, "balance"), nil, &snapshot); err != nil {
		return nil, err
	}
	return &snapshot, nil
}

// ListTransactions returns a contact's transactions on date (YYYY-MM-DD).
func (c *Client) ListTransactions(ctx context.Context, contactID int64, date string) ([]domain.Transaction, error) {
	path := walletPath(contactID, "transactions")
	if date != "" {
		path += "?" + url.Values{"date": {date}}.Encode()
	}
	var transactions []domain.Transaction
	if _, err := c.Do(ctx, http.MethodGet, path, nil, &transactions); err != nil {
		return nil, err
	}
	return transactions, nil
}

// AddFunds credits a contact's wallet.
func (c *Client) AddFunds(ctx context.Context, contactID int64, req domain.FundsRequest) (*domain.Transaction, error) {
	var result domain.MutationResult
	if _, err := c.Do(ctx, http.MethodPost, walletPath(contactID, "add-funds"), req, &result); err != nil {
		return nil, err
	}
	return &result.Transaction, nil
}

// DeductFunds debits a contact's wallet.
func (c *Client) DeductFunds(ctx context.Context, contactID int64, req domain.FundsRequest) (*domain.Transaction, error) {
	var result domain.MutationResult
	if _, err := c.Do(ctx, http.MethodPost, walletPath(contactID, "deduct-funds"), req, &result); err != nil {
		return nil, err
	}
	return &result.Transaction, nil
}

// Transfer moves funds between two contacts.
func (c *Client) Transfer(ctx context.Context, req domain.TransferRequest) (*domain.TransferResult, error) {
	var result domain.TransferResult
	if _, err := c.Do(ctx, http.MethodPost, "/contacts/wallets/transfer", req, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// ListContacts returns the contact directory.
func (c *Client) ListContacts(ctx context.Context) ([]domain.Contact, error) {
	var contacts []domain.Contact
	if _, err := c.Do(ctx, http.MethodGet, "/contacts/list", nil, &contacts); err != nil {
		return nil, err
	}
	return contacts, nil
}

func walletPath(contactID int64, action string) string {
	return fmt.Sprintf("/contacts/%d/wallet/%s", contactID, action)
}
