// Package ledgerclient talks to the ledger's HTTP API. Every failure to reach the ledger, including exhausted
// retries and 5xx answers, is reported as ledger.ErrUnreachable; validation failures come back as the ledger's own
// error kinds.
package ledgerclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/sirupsen/logrus"

	restapi "github.com/hedisam/txledger/api/rest"
	"github.com/hedisam/txledger/internal/ledger"
)

const (
	transactionsPath = "/api/v1/transactions"
	countPath        = "/api/v1/transactions/count"
)

var errServer = errors.New("ledger server error")

type Client struct {
	logger         *logrus.Logger
	httpClient     *http.Client
	ledgerAddr     string
	maxElapsedTime time.Duration
}

type Option func(*Client)

// WithMaxElapsedTime bounds the total time spent retrying a single request.
func WithMaxElapsedTime(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.maxElapsedTime = d
		}
	}
}

func New(logger *logrus.Logger, httpClient *http.Client, ledgerAddr string, opts ...Option) *Client {
	c := &Client{
		logger:         logger,
		httpClient:     httpClient,
		ledgerAddr:     strings.TrimSuffix(ledgerAddr, "/"),
		maxElapsedTime: time.Second * 3,
	}
	for opt := range slices.Values(opts) {
		opt(c)
	}
	return c
}

// Append submits a signed transfer and returns the record the ledger appended for it. Retrying is safe: the ledger
// appends a submission id at most once.
func (c *Client) Append(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error) {
	var resp restapi.AppendTransactionResponse
	err := c.call(ctx, "append", http.MethodPost, transactionsPath, restapi.NewAppendTransactionRequest(st), &resp)
	if err != nil {
		return nil, err
	}
	if resp.Transaction == nil {
		return nil, fmt.Errorf("%w: append response has no transaction", ledger.ErrUnreachable)
	}

	rec, err := resp.Transaction.Record()
	if err != nil {
		return nil, fmt.Errorf("%w: decode appended record: %w", ledger.ErrUnreachable, err)
	}
	return rec, nil
}

// Count returns the ledger's current record count.
func (c *Client) Count(ctx context.Context) (uint64, error) {
	var resp restapi.GetCountResponse
	err := c.call(ctx, "count", http.MethodGet, countPath, nil, &resp)
	if err != nil {
		return 0, err
	}
	return resp.Count, nil
}

// All returns every record in append order.
func (c *Client) All(ctx context.Context) ([]*ledger.Record, error) {
	var resp restapi.ListTransactionsResponse
	err := c.call(ctx, "all", http.MethodGet, transactionsPath, nil, &resp)
	if err != nil {
		return nil, err
	}
	if resp.Count != uint64(len(resp.Transactions)) {
		return nil, fmt.Errorf("%w: listed %d transactions but count is %d", ledger.ErrUnreachable, len(resp.Transactions), resp.Count)
	}

	records := make([]*ledger.Record, 0, len(resp.Transactions))
	for i, tx := range resp.Transactions {
		rec, err := tx.Record()
		if err != nil {
			return nil, fmt.Errorf("%w: decode record: %w", ledger.ErrUnreachable, err)
		}
		if rec.Index != uint64(i) {
			return nil, fmt.Errorf("%w: record at position %d has index %d", ledger.ErrUnreachable, i, rec.Index)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (c *Client) call(ctx context.Context, op, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return fmt.Errorf("could not marshal request body: %w", err)
		}
	}

	resp, err := c.doRequestWithRetry(ctx, op, method, path, payload)
	if err != nil {
		failedRequests.WithLabelValues(op).Inc()
		return fmt.Errorf("%w: %s: %w", ledger.ErrUnreachable, op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.decodeErr(op, resp)
	}

	err = json.NewDecoder(resp.Body).Decode(out)
	if err != nil {
		failedRequests.WithLabelValues(op).Inc()
		return fmt.Errorf("%w: %s: decode response body: %w", ledger.ErrUnreachable, op, err)
	}
	return nil
}

func (c *Client) decodeErr(op string, resp *http.Response) error {
	body, _ := io.ReadAll(resp.Body)
	apiErr := &restapi.Err{StatusCode: resp.StatusCode}
	if err := json.Unmarshal(body, apiErr); err != nil || apiErr.Message == "" {
		apiErr.Message = resp.Status
	}

	var kind error
	switch apiErr.Code {
	case restapi.CodeInvalidReceiver:
		kind = ledger.ErrInvalidReceiver
	case restapi.CodeInvalidAmount:
		kind = ledger.ErrInvalidAmount
	case restapi.CodeInvalidSignature:
		kind = ledger.ErrInvalidSignature
	case restapi.CodeInvalidInput:
		kind = ledger.ErrInvalidInput
	case restapi.CodeNotFound:
		kind = ledger.ErrNotFound
	default:
		failedRequests.WithLabelValues(op).Inc()
		c.logger.WithFields(logrus.Fields{
			"op":       op,
			"status":   resp.StatusCode,
			"response": string(body),
		}).Error("Ledger answered with an unexpected status")
		kind = ledger.ErrUnreachable
	}
	return fmt.Errorf("%w: %s", kind, apiErr.Message)
}

func (c *Client) doRequestWithRetry(ctx context.Context, op, method, path string, payload []byte) (*http.Response, error) {
	bk := backoff.WithContext(c.newExponentialBackoffConfig(), ctx)
	return backoff.RetryWithData(func() (*http.Response, error) {
		// a fresh request per attempt, the previous body has been consumed
		req, err := c.newRequest(ctx, method, path, payload)
		if err != nil {
			return nil, backoff.Permanent(err)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
				return nil, backoff.Permanent(fmt.Errorf("could not make http call: %w", err))
			}
			c.logger.WithField("op", op).WithError(err).Warn("Failed to make http request, retrying...")
			retriedRequests.WithLabelValues(op).Inc()
			return nil, fmt.Errorf("http request failed: %w", err)
		}

		if resp.StatusCode >= http.StatusInternalServerError {
			body, _ := io.ReadAll(resp.Body)
			resp.Body.Close()
			c.logger.WithFields(logrus.Fields{
				"op":       op,
				"status":   resp.StatusCode,
				"response": string(body),
			}).Warn("Ledger server error, retrying...")
			retriedRequests.WithLabelValues(op).Inc()
			return nil, fmt.Errorf("%w: %s", errServer, resp.Status)
		}

		return resp, nil
	}, bk)
}

func (c *Client) newRequest(ctx context.Context, method, path string, payload []byte) (*http.Request, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.ledgerAddr+path, body)
	if err != nil {
		return nil, fmt.Errorf("could not make new request with context: %w", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Content-Length", strconv.Itoa(len(payload)))
	}

	return req, nil
}

func (c *Client) newExponentialBackoffConfig() *backoff.ExponentialBackOff {
	return backoff.NewExponentialBackOff(
		backoff.WithMaxElapsedTime(c.maxElapsedTime),
		backoff.WithMaxInterval(time.Second),
		backoff.WithInitialInterval(time.Millisecond*100),
		backoff.WithMultiplier(2),
		backoff.WithRandomizationFactor(0.2),
	)
}
