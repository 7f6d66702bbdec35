package rest

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"time"

	"github.com/hedisam/txledger/internal/ledger"
	"github.com/hedisam/txledger/internal/units"
)

// BindPath reads the {index} path parameter.
func (r *GetTransactionRequest) BindPath(pathValue func(string) string) error {
	idx, err := strconv.ParseUint(pathValue("index"), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid transaction index %q", pathValue("index"))
	}
	r.Index = idx
	return nil
}

// NewAppendTransactionRequest encodes a signed transfer for the wire.
func NewAppendTransactionRequest(st *ledger.SignedTransfer) *AppendTransactionRequest {
	amount := ""
	if st.Amount != nil {
		amount = st.Amount.Dec()
	}
	return &AppendTransactionRequest{
		SubmissionID: st.SubmissionID,
		Receiver:     st.Receiver,
		Amount:       amount,
		Message:      st.Message,
		Keyword:      st.Keyword,
		PublicKey:    hex.EncodeToString(st.PublicKey),
		Signature:    hex.EncodeToString(st.Signature),
	}
}

// SignedTransfer decodes the request. Amount errors wrap ledger.ErrInvalidAmount, key and signature encoding errors
// wrap ledger.ErrInvalidSignature.
func (r *AppendTransactionRequest) SignedTransfer() (*ledger.SignedTransfer, error) {
	amount, err := units.ParseWei(r.Amount)
	if err != nil {
		return nil, err
	}
	pub, err := hex.DecodeString(r.PublicKey)
	if err != nil {
		return nil, fmt.Errorf("%w: public key is not hex", ledger.ErrInvalidSignature)
	}
	sig, err := hex.DecodeString(r.Signature)
	if err != nil {
		return nil, fmt.Errorf("%w: signature is not hex", ledger.ErrInvalidSignature)
	}

	return &ledger.SignedTransfer{
		Transfer: ledger.Transfer{
			SubmissionID: r.SubmissionID,
			Receiver:     r.Receiver,
			Amount:       amount,
			Message:      r.Message,
			Keyword:      r.Keyword,
		},
		PublicKey: pub,
		Signature: sig,
	}, nil
}

func convertRecordToAPITransaction(rec *ledger.Record) *Transaction {
	return &Transaction{
		Index:        rec.Index,
		Sender:       rec.Sender,
		Receiver:     rec.Receiver,
		Amount:       rec.Amount.Dec(),
		Message:      rec.Message,
		Keyword:      rec.Keyword,
		Timestamp:    rec.Timestamp.Unix(),
		SubmissionID: rec.SubmissionID,
	}
}

// Record converts an api transaction back into a ledger record.
func (t *Transaction) Record() (*ledger.Record, error) {
	amount, err := units.ParseWei(t.Amount)
	if err != nil {
		return nil, fmt.Errorf("transaction %d: %w", t.Index, err)
	}
	return &ledger.Record{
		Index:        t.Index,
		Sender:       t.Sender,
		Receiver:     t.Receiver,
		Amount:       amount,
		Message:      t.Message,
		Keyword:      t.Keyword,
		Timestamp:    time.Unix(t.Timestamp, 0).UTC(),
		SubmissionID: t.SubmissionID,
	}, nil
}
