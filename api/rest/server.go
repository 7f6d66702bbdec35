package rest

import (
	"context"
	"errors"
	"net/http"
	"slices"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/txledger/internal/ledger"
)

type Ledger interface {
	Append(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error)
	Count(ctx context.Context) (uint64, error)
	All(ctx context.Context) ([]*ledger.Record, error)
	Get(ctx context.Context, index uint64) (*ledger.Record, error)
}

type Server struct {
	logger *logrus.Logger
	ledger Ledger
}

func NewServer(logger *logrus.Logger, ledger Ledger) *Server {
	return &Server{
		logger: logger,
		ledger: ledger,
	}
}

// Register wires every ledger endpoint into mux.
func (s *Server) Register(mux *http.ServeMux) {
	RegisterFunc(s.logger, mux, http.MethodPost, "/api/v1/transactions", s.AppendTransaction)
	RegisterFunc(s.logger, mux, http.MethodGet, "/api/v1/transactions", s.ListTransactions)
	RegisterFunc(s.logger, mux, http.MethodGet, "/api/v1/transactions/count", s.GetCount)
	RegisterFunc(s.logger, mux, http.MethodGet, "/api/v1/transactions/{index}", s.GetTransaction)
}

func (s *Server) AppendTransaction(ctx context.Context, req *AppendTransactionRequest) (*AppendTransactionResponse, error) {
	logger := s.logger.WithContext(ctx).WithFields(logrus.Fields{
		"submission_id": req.SubmissionID,
		"receiver":      req.Receiver,
	})

	st, err := req.SignedTransfer()
	if err != nil {
		logger.WithError(err).Warn("Malformed append request")
		return nil, ledgerErrToAPIErr(err)
	}

	rec, err := s.ledger.Append(ctx, st)
	if err != nil {
		apiErr := ledgerErrToAPIErr(err)
		if apiErr.StatusCode == http.StatusInternalServerError {
			logger.WithError(err).Error("Failed to append transaction to ledger")
		} else {
			logger.WithError(err).Warn("Ledger rejected transaction")
		}
		return nil, apiErr
	}

	return &AppendTransactionResponse{
		Transaction: convertRecordToAPITransaction(rec),
	}, nil
}

func (s *Server) ListTransactions(ctx context.Context, _ *ListTransactionsRequest) (*ListTransactionsResponse, error) {
	logger := s.logger.WithContext(ctx)

	records, err := s.ledger.All(ctx)
	if err != nil {
		logger.WithError(err).Error("Failed to list transactions from ledger")
		return nil, NewErrf(http.StatusInternalServerError, "Could not list transactions").WithCode(CodeInternal)
	}

	txs := make([]*Transaction, 0, len(records))
	for rec := range slices.Values(records) {
		txs = append(txs, convertRecordToAPITransaction(rec))
	}

	// count is derived from the same snapshot so the two always agree
	return &ListTransactionsResponse{
		Transactions: txs,
		Count:        uint64(len(txs)),
	}, nil
}

func (s *Server) GetCount(ctx context.Context, _ *GetCountRequest) (*GetCountResponse, error) {
	count, err := s.ledger.Count(ctx)
	if err != nil {
		s.logger.WithContext(ctx).WithError(err).Error("Failed to count ledger transactions")
		return nil, NewErrf(http.StatusInternalServerError, "Could not count transactions").WithCode(CodeInternal)
	}

	return &GetCountResponse{
		Count: count,
	}, nil
}

func (s *Server) GetTransaction(ctx context.Context, req *GetTransactionRequest) (*GetTransactionResponse, error) {
	logger := s.logger.WithContext(ctx).WithField("index", req.Index)

	rec, err := s.ledger.Get(ctx, req.Index)
	if err != nil {
		if errors.Is(err, ledger.ErrNotFound) {
			return nil, NewErrf(http.StatusNotFound, "Transaction %d does not exist", req.Index).WithCode(CodeNotFound)
		}
		logger.WithError(err).Error("Failed to get transaction from ledger")
		return nil, NewErrf(http.StatusInternalServerError, "Could not get transaction").WithCode(CodeInternal)
	}

	return &GetTransactionResponse{
		Transaction: convertRecordToAPITransaction(rec),
	}, nil
}

func ledgerErrToAPIErr(err error) *Err {
	switch {
	case errors.Is(err, ledger.ErrInvalidReceiver):
		return NewErrf(http.StatusBadRequest, "Invalid receiver address. Expected a 40-character hex string, with or without '0x' prefix").WithCode(CodeInvalidReceiver)
	case errors.Is(err, ledger.ErrInvalidAmount):
		return NewErrf(http.StatusBadRequest, "Invalid amount. Expected a non-negative integer number of wei").WithCode(CodeInvalidAmount)
	case errors.Is(err, ledger.ErrInvalidSignature):
		return NewErrf(http.StatusBadRequest, "Transfer signature does not match its public key").WithCode(CodeInvalidSignature)
	case errors.Is(err, ledger.ErrInvalidInput):
		return NewErrf(http.StatusBadRequest, "%s", err.Error()).WithCode(CodeInvalidInput)
	default:
		return NewErrf(http.StatusInternalServerError, "Could not append transaction").WithCode(CodeInternal)
	}
}
