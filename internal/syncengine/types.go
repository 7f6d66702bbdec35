package syncengine

import (
	"context"
	"errors"

	"github.com/hedisam/txledger/internal/identity"
	"github.com/hedisam/txledger/internal/ledger"
)

type State int

const (
	Unbound State = iota
	Bootstrapping
	Synced
	Submitting
	Reconciling
)

func (s State) String() string {
	switch s {
	case Unbound:
		return "unbound"
	case Bootstrapping:
		return "bootstrapping"
	case Synced:
		return "synced"
	case Submitting:
		return "submitting"
	case Reconciling:
		return "reconciling"
	default:
		return "unknown"
	}
}

// Every error returned by the engine matches exactly one of these with errors.Is.
var (
	ErrNotConnected         = identity.ErrNotConnected
	ErrUserRejected         = identity.ErrUserRejected
	ErrInvalidInput         = ledger.ErrInvalidInput
	ErrSubmissionInProgress = errors.New("a submission is already in progress")
	ErrLedgerUnreachable    = ledger.ErrUnreachable
	ErrInvalidReceiver      = ledger.ErrInvalidReceiver
	ErrInvalidAmount        = ledger.ErrInvalidAmount
	ErrInvalidSignature     = ledger.ErrInvalidSignature
	// ErrNotSynced is returned when an identity is bound but its bootstrap hasn't completed.
	ErrNotSynced = errors.New("ledger view is not synced yet")
	// ErrIdentityChanged is returned when the result of an in-flight operation was discarded because the active
	// identity changed before it resumed.
	ErrIdentityChanged = errors.New("active identity changed while the operation was in flight")
)

// Ledger is the read side of the ledger the engine mirrors.
type Ledger interface {
	Count(ctx context.Context) (uint64, error)
	All(ctx context.Context) ([]*ledger.Record, error)
}

type IdentityProvider interface {
	ActiveIdentities(ctx context.Context) ([]string, error)
	RequestIdentity(ctx context.Context) (string, error)
	OnIdentityChanged(fn func(identities []string)) (unsubscribe func())
	SignAndSubmit(ctx context.Context, from string, transfer *ledger.Transfer) (identity.PendingHandle, error)
}

// HintStore persists the advisory ledger count between runs.
type HintStore interface {
	Load(ctx context.Context) (uint64, bool, error)
	Save(ctx context.Context, count uint64) error
}

// TransferForm is a transfer as entered by the user. Amount is in ether.
type TransferForm struct {
	Receiver string
	Amount   string
	Message  string
	Keyword  string
}

// PendingSubmission describes the single submission in flight.
type PendingSubmission struct {
	ID        string
	Form      TransferForm
	Transfer  *ledger.Transfer
	IsLoading bool
}

// View is a read-only snapshot of the engine's local cache.
type View struct {
	State    State
	Identity string
	Entries  []*ledger.Record
	// Count is the last ledger count seen under Identity. It's only meaningful once State reached Synced.
	Count uint64
	// CountHint is the advisory count persisted by a previous run or by the last count poll.
	CountHint    uint64
	HasCountHint bool
	Pending      *PendingSubmission
}
