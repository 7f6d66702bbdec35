package rest_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	restapi "github.com/hedisam/txledger/api/rest"
	"github.com/hedisam/txledger/api/rest/mocks"
	"github.com/hedisam/txledger/internal/ledger"
)

//go:generate moq -out mocks/ledger.go -pkg mocks -skip-ensure . Ledger

const (
	sender   = "0x7a250d5630b4cf539739df2c5dacb4c659f2488d"
	receiver = "0x00000000219ab540356cbb839cbe05303d7705fa"
)

func TestAppendTransaction(t *testing.T) {
	ts := time.Unix(1700000000, 0).UTC()

	tests := map[string]struct {
		req                 *restapi.AppendTransactionRequest
		ledgerErr           error
		expectedLedgerCalls int
		expectedResp        *restapi.AppendTransactionResponse
		expectedErr         *restapi.Err
	}{
		"success": {
			req: &restapi.AppendTransactionRequest{
				SubmissionID: "sub-1",
				Receiver:     receiver,
				Amount:       "1000000000000000000",
				Message:      "Hello",
				Keyword:      "Test1",
				PublicKey:    "abcd",
				Signature:    "ef01",
			},
			expectedLedgerCalls: 1,
			expectedResp: &restapi.AppendTransactionResponse{
				Transaction: &restapi.Transaction{
					Index:        7,
					Sender:       sender,
					Receiver:     receiver,
					Amount:       "1000000000000000000",
					Message:      "Hello",
					Keyword:      "Test1",
					Timestamp:    ts.Unix(),
					SubmissionID: "sub-1",
				},
			},
		},
		"fractional wei": {
			req: &restapi.AppendTransactionRequest{
				Receiver: receiver,
				Amount:   "1.5",
			},
			expectedErr: &restapi.Err{
				StatusCode: http.StatusBadRequest,
				Code:       restapi.CodeInvalidAmount,
				Message:    "Invalid amount. Expected a non-negative integer number of wei",
			},
		},
		"negative amount": {
			req: &restapi.AppendTransactionRequest{
				Receiver: receiver,
				Amount:   "-1",
			},
			expectedErr: &restapi.Err{
				StatusCode: http.StatusBadRequest,
				Code:       restapi.CodeInvalidAmount,
				Message:    "Invalid amount. Expected a non-negative integer number of wei",
			},
		},
		"signature not hex": {
			req: &restapi.AppendTransactionRequest{
				Receiver:  receiver,
				Amount:    "1",
				PublicKey: "abcd",
				Signature: "zz",
			},
			expectedErr: &restapi.Err{
				StatusCode: http.StatusBadRequest,
				Code:       restapi.CodeInvalidSignature,
				Message:    "Transfer signature does not match its public key",
			},
		},
		"ledger rejects receiver": {
			req: &restapi.AppendTransactionRequest{
				Receiver: "0x1234",
				Amount:   "1",
			},
			ledgerErr:           fmt.Errorf("%w: %q", ledger.ErrInvalidReceiver, "0x1234"),
			expectedLedgerCalls: 1,
			expectedErr: &restapi.Err{
				StatusCode: http.StatusBadRequest,
				Code:       restapi.CodeInvalidReceiver,
				Message:    "Invalid receiver address. Expected a 40-character hex string, with or without '0x' prefix",
			},
		},
		"ledger failure": {
			req: &restapi.AppendTransactionRequest{
				Receiver: receiver,
				Amount:   "1",
			},
			ledgerErr:           errors.New("disk full"),
			expectedLedgerCalls: 1,
			expectedErr: &restapi.Err{
				StatusCode: http.StatusInternalServerError,
				Code:       restapi.CodeInternal,
				Message:    "Could not append transaction",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ledgerMock := &mocks.LedgerMock{
				AppendFunc: func(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error) {
					if test.ledgerErr != nil {
						return nil, test.ledgerErr
					}
					return &ledger.Record{
						Index:        7,
						Sender:       sender,
						Receiver:     st.Receiver,
						Amount:       st.Amount,
						Message:      st.Message,
						Keyword:      st.Keyword,
						Timestamp:    ts,
						SubmissionID: st.SubmissionID,
					}, nil
				},
			}
			s := restapi.NewServer(logrus.New(), ledgerMock)
			resp, err := s.AppendTransaction(context.Background(), test.req)
			assert.Equal(t, test.expectedLedgerCalls, len(ledgerMock.AppendCalls()))
			if test.expectedErr != nil {
				require.Error(t, err)
				castedErr := &restapi.Err{}
				require.ErrorAs(t, err, &castedErr)
				assert.Equal(t, test.expectedErr, castedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expectedResp, resp)
		})
	}
}

func TestListTransactions(t *testing.T) {
	tests := map[string]struct {
		records      []*ledger.Record
		ledgerErr    error
		expectedResp *restapi.ListTransactionsResponse
		expectedErr  *restapi.Err
	}{
		"empty ledger": {
			records: []*ledger.Record{},
			expectedResp: &restapi.ListTransactionsResponse{
				Transactions: []*restapi.Transaction{},
				Count:        0,
			},
		},
		"records in append order": {
			records: []*ledger.Record{
				{Index: 0, Sender: sender, Receiver: receiver, Amount: uint256.NewInt(100), Message: "Hello", Keyword: "Test1", Timestamp: time.Unix(10, 0)},
				{Index: 1, Sender: sender, Receiver: receiver, Amount: uint256.NewInt(200), Message: "Hey", Keyword: "Test2", Timestamp: time.Unix(12, 0)},
			},
			expectedResp: &restapi.ListTransactionsResponse{
				Transactions: []*restapi.Transaction{
					{Index: 0, Sender: sender, Receiver: receiver, Amount: "100", Message: "Hello", Keyword: "Test1", Timestamp: 10},
					{Index: 1, Sender: sender, Receiver: receiver, Amount: "200", Message: "Hey", Keyword: "Test2", Timestamp: 12},
				},
				Count: 2,
			},
		},
		"ledger failure": {
			ledgerErr: errors.New("dummy error"),
			expectedErr: &restapi.Err{
				StatusCode: http.StatusInternalServerError,
				Code:       restapi.CodeInternal,
				Message:    "Could not list transactions",
			},
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			ledgerMock := &mocks.LedgerMock{
				AllFunc: func(ctx context.Context) ([]*ledger.Record, error) {
					return test.records, test.ledgerErr
				},
			}
			s := restapi.NewServer(logrus.New(), ledgerMock)
			resp, err := s.ListTransactions(context.Background(), &restapi.ListTransactionsRequest{})
			assert.Equal(t, 1, len(ledgerMock.AllCalls()))
			if test.expectedErr != nil {
				castedErr := &restapi.Err{}
				require.ErrorAs(t, err, &castedErr)
				assert.Equal(t, test.expectedErr, castedErr)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, test.expectedResp, resp)
		})
	}
}

func TestGetTransaction(t *testing.T) {
	ledgerMock := &mocks.LedgerMock{
		GetFunc: func(ctx context.Context, index uint64) (*ledger.Record, error) {
			if index > 0 {
				return nil, ledger.ErrNotFound
			}
			return &ledger.Record{Sender: sender, Receiver: receiver, Amount: uint256.NewInt(1), Timestamp: time.Unix(1, 0)}, nil
		},
	}
	s := restapi.NewServer(logrus.New(), ledgerMock)

	resp, err := s.GetTransaction(context.Background(), &restapi.GetTransactionRequest{Index: 0})
	require.NoError(t, err)
	assert.Equal(t, "1", resp.Transaction.Amount)

	_, err = s.GetTransaction(context.Background(), &restapi.GetTransactionRequest{Index: 1})
	castedErr := &restapi.Err{}
	require.ErrorAs(t, err, &castedErr)
	assert.Equal(t, http.StatusNotFound, castedErr.StatusCode)
	assert.Equal(t, restapi.CodeNotFound, castedErr.Code)
}

func TestRoutes(t *testing.T) {
	ledgerMock := &mocks.LedgerMock{
		CountFunc: func(ctx context.Context) (uint64, error) {
			return 42, nil
		},
		GetFunc: func(ctx context.Context, index uint64) (*ledger.Record, error) {
			return nil, ledger.ErrNotFound
		},
	}
	mux := http.NewServeMux()
	restapi.NewServer(logrus.New(), ledgerMock).Register(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tests := map[string]struct {
		method         string
		path           string
		body           string
		expectedStatus int
		expectedBody   string
	}{
		"count": {
			method:         http.MethodGet,
			path:           "/api/v1/transactions/count",
			expectedStatus: http.StatusOK,
			expectedBody:   `{"count":42}`,
		},
		"unknown index": {
			method:         http.MethodGet,
			path:           "/api/v1/transactions/3",
			expectedStatus: http.StatusNotFound,
			expectedBody:   `{"code":"not_found","message":"Transaction 3 does not exist"}`,
		},
		"index not a number": {
			method:         http.MethodGet,
			path:           "/api/v1/transactions/abc",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"code":"invalid_input","message":"invalid transaction index \"abc\""}`,
		},
		"malformed body": {
			method:         http.MethodPost,
			path:           "/api/v1/transactions",
			body:           "{not json",
			expectedStatus: http.StatusBadRequest,
			expectedBody:   `{"code":"invalid_input","message":"Invalid request body"}`,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			req, err := http.NewRequest(test.method, srv.URL+test.path, strings.NewReader(test.body))
			require.NoError(t, err)
			resp, err := srv.Client().Do(req)
			require.NoError(t, err)
			defer resp.Body.Close()

			assert.Equal(t, test.expectedStatus, resp.StatusCode)
			assert.NotEmpty(t, resp.Header.Get(restapi.RequestIDHeader))
			var body bytes.Buffer
			_, err = body.ReadFrom(resp.Body)
			require.NoError(t, err)
			assert.JSONEq(t, test.expectedBody, body.String())
		})
	}
}
