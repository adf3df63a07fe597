// Package cardclient is the HTTP implementation of the orchestrator's card
// gateway, speaking to the card service's internal API.
package cardclient

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

	"github.com/CrestPayLabs/cardledger/internal/svcauth"
	"github.com/CrestPayLabs/cardledger/pkg/txn"
	"github.com/sethvargo/go-retry"
)

const (
	defaultCallTimeout = 5 * time.Second
	retryBaseDelay     = 100 * time.Millisecond
	retryJitter        = 25 * time.Millisecond
	maxReadRetries     = 2
)

// Client implements txn.CardGateway over the card service's REST API.
//
// Read calls (GetCard, CardExists) carry bounded retry with backoff;
// ApplyBalanceDelta is dispatched exactly once so a delta is never applied
// twice for one request.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	signer      *svcauth.Signer
	callTimeout time.Duration
}

// New wires a Client for the card service at baseURL.
func New(baseURL string, signer *svcauth.Signer, callTimeout time.Duration) (*Client, error) {
	trimmed := strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if trimmed == "" {
		return nil, fmt.Errorf("%w: empty card service url", txn.ErrInvalidServiceConfig)
	}
	if signer == nil {
		return nil, fmt.Errorf("%w: signer dependency is nil", txn.ErrInvalidServiceConfig)
	}
	if callTimeout <= 0 {
		callTimeout = defaultCallTimeout
	}
	return &Client{
		baseURL:     trimmed,
		httpClient:  &http.Client{Timeout: callTimeout},
		signer:      signer,
		callTimeout: callTimeout,
	}, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

type cardPayload struct {
	CardID               string `json:"cardId"`
	CustomerID           string `json:"customerId"`
	Status               string `json:"status"`
	CreditLimitCents     int64  `json:"creditLimitCents"`
	AvailableCreditCents int64  `json:"availableCreditCents"`
	DailyLimitCents      int64  `json:"dailyLimitCents"`
}

func (payload cardPayload) toCard() txn.Card {
	return txn.Card{
		CardID:               payload.CardID,
		CustomerID:           payload.CustomerID,
		Status:               txn.CardStatus(payload.Status),
		CreditLimitCents:     txn.AmountCents(payload.CreditLimitCents),
		AvailableCreditCents: txn.AmountCents(payload.AvailableCreditCents),
		DailyLimitCents:      txn.AmountCents(payload.DailyLimitCents),
	}
}

// GetCard fetches the card snapshot, retrying transient failures.
func (client *Client) GetCard(ctx context.Context, cardID string) (txn.Card, error) {
	var payload cardPayload
	err := client.doWithRetry(ctx, http.MethodGet, "/internal/v1/cards/"+url.PathEscape(cardID), nil, &payload)
	if err != nil {
		return txn.Card{}, err
	}
	return payload.toCard(), nil
}

// CardExists checks a card's existence, retrying transient failures.
func (client *Client) CardExists(ctx context.Context, cardID string) (bool, error) {
	var exists bool
	err := client.doWithRetry(ctx, http.MethodGet, "/internal/v1/cards/"+url.PathEscape(cardID)+"/exists", nil, &exists)
	if err != nil {
		return false, err
	}
	return exists, nil
}

// ApplyBalanceDelta dispatches the delta exactly once; transient failures are
// surfaced, never retried, because the ledger may already have applied it.
func (client *Client) ApplyBalanceDelta(ctx context.Context, cardID string, amount txn.AmountCents, isDebit bool) (txn.Card, error) {
	body := struct {
		AmountCents int64 `json:"amountCents"`
		IsDebit     bool  `json:"isDebit"`
	}{
		AmountCents: amount.Int64(),
		IsDebit:     isDebit,
	}
	var payload cardPayload
	if err := client.do(ctx, http.MethodPost, "/internal/v1/cards/"+url.PathEscape(cardID)+"/balance", body, &payload); err != nil {
		return txn.Card{}, err
	}
	return payload.toCard(), nil
}

func (client *Client) doWithRetry(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	backoff := retry.NewExponential(retryBaseDelay)
	backoff = retry.WithJitter(retryJitter, backoff)
	backoff = retry.WithMaxRetries(maxReadRetries, backoff)
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		err := client.do(ctx, method, path, body, out)
		if isRetryable(err) {
			return retry.RetryableError(err)
		}
		return err
	})
}

func (client *Client) do(ctx context.Context, method string, path string, body interface{}, out interface{}) error {
	callCtx, cancel := context.WithTimeout(ctx, client.callTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	request, err := http.NewRequestWithContext(callCtx, method, client.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	token, err := client.signer.Token()
	if err != nil {
		return fmt.Errorf("sign service token: %w", err)
	}
	request.Header.Set("Authorization", "Bearer "+token)
	if body != nil {
		request.Header.Set("Content-Type", "application/json")
	}

	response, err := client.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("%w: %v", txn.ErrServiceUnavailable, err)
	}
	defer func() { _ = response.Body.Close() }()

	payload, err := io.ReadAll(io.LimitReader(response.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("%w: read response: %v", txn.ErrServiceUnavailable, err)
	}

	var parsed envelope
	if len(payload) > 0 {
		if decodeErr := json.Unmarshal(payload, &parsed); decodeErr != nil && response.StatusCode < http.StatusInternalServerError {
			return fmt.Errorf("%w: malformed response: %v", txn.ErrServiceUnavailable, decodeErr)
		}
	}

	if statusErr := mapStatus(response.StatusCode, parsed.Message); statusErr != nil {
		return statusErr
	}
	if out != nil {
		if err := json.Unmarshal(parsed.Data, out); err != nil {
			return fmt.Errorf("%w: decode card payload: %v", txn.ErrServiceUnavailable, err)
		}
	}
	return nil
}

func mapStatus(statusCode int, message string) error {
	switch {
	case statusCode >= http.StatusOK && statusCode < http.StatusMultipleChoices:
		return nil
	case statusCode == http.StatusNotFound:
		return fmt.Errorf("%w: %s", txn.ErrCardNotFound, message)
	case statusCode == http.StatusPaymentRequired:
		return fmt.Errorf("%w: %s", txn.ErrInsufficientBalance, message)
	case statusCode == http.StatusBadRequest:
		return fmt.Errorf("%w: %s", txn.ErrInvalidTransaction, message)
	default:
		return fmt.Errorf("%w: card service returned status %d: %s", txn.ErrServiceUnavailable, statusCode, message)
	}
}

func isRetryable(err error) bool {
	// Only transport-level unavailability is worth another read attempt.
	return errors.Is(err, txn.ErrServiceUnavailable)
}
