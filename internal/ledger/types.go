package ledger

import (
	"crypto/ed25519"
	"encoding/json"
	"errors"
	"time"

	"github.com/holiman/uint256"

	"github.com/hedisam/txledger/internal/units"
)

// MaxTextLen bounds the number of runes in a record's message and keyword.
const MaxTextLen = 280

var (
	// ErrInvalidReceiver is returned when the receiver is not a valid address.
	ErrInvalidReceiver = errors.New("invalid receiver")
	// ErrInvalidAmount is returned when the amount is missing or cannot be represented exactly in base units.
	ErrInvalidAmount = units.ErrInvalidAmount
	// ErrInvalidSignature is returned when a transfer is not signed by the key it carries.
	ErrInvalidSignature = errors.New("invalid signature")
	// ErrInvalidInput is returned for malformed free-form fields, e.g. an oversized message.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound is returned when a record at the requested index does not exist.
	ErrNotFound = errors.New("not found")
	// ErrUnreachable is returned by remote ledger clients when the ledger could not be reached or failed to answer.
	ErrUnreachable = errors.New("ledger unreachable")
)

// Transfer is the payload an identity signs to move value to a receiver.
type Transfer struct {
	// SubmissionID identifies a single user initiated submission. The ledger appends a submission at most once.
	SubmissionID string
	Receiver     string
	// Amount in wei.
	Amount  *uint256.Int
	Message string
	Keyword string
}

// SigningBytes returns the canonical encoding of the transfer that gets signed and verified.
func (t *Transfer) SigningBytes() []byte {
	amount := ""
	if t.Amount != nil {
		amount = t.Amount.Dec()
	}
	// struct field order keeps the encoding stable
	data, _ := json.Marshal(struct {
		SubmissionID string `json:"submissionId"`
		Receiver     string `json:"receiver"`
		Amount       string `json:"amount"`
		Message      string `json:"message"`
		Keyword      string `json:"keyword"`
	}{t.SubmissionID, t.Receiver, amount, t.Message, t.Keyword})
	return data
}

// SignedTransfer is what reaches the ledger. The sender is never part of the payload; it's derived from PublicKey
// once the signature checks out.
type SignedTransfer struct {
	Transfer
	PublicKey ed25519.PublicKey
	Signature []byte
}

// Record is an immutable, appended ledger entry.
type Record struct {
	Index        uint64
	Sender       string
	Receiver     string
	Amount       *uint256.Int
	Message      string
	Keyword      string
	Timestamp    time.Time
	SubmissionID string
}

// Clone returns a deep copy so callers can never mutate stored records.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	c := *r
	if r.Amount != nil {
		c.Amount = new(uint256.Int).Set(r.Amount)
	}
	return &c
}

// CloneAll deep copies a slice of records.
func CloneAll(records []*Record) []*Record {
	out := make([]*Record, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
