package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"casino-round-settlement/internal/models"
)

type Client struct {
	baseURL string
	token   string
	http    *http.Client

	mu      sync.Mutex
	balance Balance
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		http:    &http.Client{Timeout: 10 * time.Second},
	}
}

type balanceEnvelope struct {
	Balance models.BalanceResponse `json:"balance"`
}

type errorEnvelope struct {
	Error   string `json:"error"`
	Details string `json:"details"`
}

// PlaceBet debits the stake. The local view drops immediately and is
// corrected once the backend answers.
func (c *Client) PlaceBet(ctx context.Context, stake models.Stake) error {
	c.applyDelta(-stake.Amount)

	resp, err := c.do(ctx, http.MethodPost, "/api/wallet/bet", stake)
	if err != nil {
		c.applyDelta(stake.Amount)
		return fmt.Errorf("place bet: %w", err)
	}

	c.confirm(resp.Balance.Balance, stake.Amount)
	return nil
}

func (c *Client) AddWinnings(ctx context.Context, roundID string, amount int64) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/wallet/win", models.SettleRequest{
		RoundID: roundID,
		Amount:  amount,
	})
	if err != nil {
		return fmt.Errorf("add winnings: %w", err)
	}

	c.confirm(resp.Balance.Balance, 0)
	return nil
}

func (c *Client) MarkLoss(ctx context.Context, roundID string) error {
	resp, err := c.do(ctx, http.MethodPost, "/api/wallet/loss", models.SettleRequest{
		RoundID: roundID,
	})
	if err != nil {
		return fmt.Errorf("mark loss: %w", err)
	}

	c.confirm(resp.Balance.Balance, 0)
	return nil
}

func (c *Client) Refresh(ctx context.Context) error {
	resp, err := c.do(ctx, http.MethodGet, "/api/wallet/balance", nil)
	if err != nil {
		return fmt.Errorf("refresh balance: %w", err)
	}

	c.confirm(resp.Balance.Balance, 0)
	return nil
}

// AvailableBalance is a synchronous read of the cached figure.
func (c *Client) AvailableBalance() int64 {
	return c.Balance().Available()
}

func (c *Client) Balance() Balance {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.balance
}

func (c *Client) applyDelta(delta int64) {
	c.mu.Lock()
	c.balance.PendingDelta += delta
	c.mu.Unlock()
}

// confirm stores the backend figure and releases the settled part of the
// pending delta.
func (c *Client) confirm(balance, released int64) {
	c.mu.Lock()
	c.balance.Confirmed = balance
	c.balance.PendingDelta += released
	c.mu.Unlock()
}

func (c *Client) do(ctx context.Context, method, path string, body any) (*balanceEnvelope, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp)
	}

	var out balanceEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &out, nil
}

func statusError(resp *http.Response) error {
	var e errorEnvelope
	_ = json.NewDecoder(resp.Body).Decode(&e)

	detail := e.Error
	if e.Details != "" {
		detail += ": " + e.Details
	}

	switch resp.StatusCode {
	case http.StatusPaymentRequired:
		return fmt.Errorf("%w (%s)", ErrInsufficientBalance, detail)
	case http.StatusConflict:
		return fmt.Errorf("%w (%s)", ErrRoundSettled, detail)
	case http.StatusUnauthorized:
		return fmt.Errorf("%w (%s)", ErrUnauthorized, detail)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w (%s)", ErrRateLimited, detail)
	default:
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, detail)
	}
}
