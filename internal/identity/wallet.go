// Package identity implements the identity provider used by clients: a wallet holding signing accounts, exposing
// the connected identity, notifying subscribers when it changes, and signing and submitting transfers.
package identity

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/txledger/internal/account"
	"github.com/hedisam/txledger/internal/ledger"
)

var (
	// ErrUserRejected is returned when the user declines a connection or signing request.
	ErrUserRejected = errors.New("user rejected the request")
	// ErrNotConnected is returned when an operation needs a connected identity and there is none.
	ErrNotConnected = errors.New("no connected identity")
	// ErrUnknownAccount is returned when switching to an account the wallet doesn't hold.
	ErrUnknownAccount = errors.New("unknown account")
	// ErrIdentityMismatch is returned when asked to sign for an identity other than the connected one.
	ErrIdentityMismatch = errors.New("identity is not the connected one")
)

// Submitter delivers signed transfers to the ledger.
type Submitter interface {
	Append(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error)
}

// PendingHandle tracks a submitted transfer until the ledger confirms it.
type PendingHandle interface {
	// Wait blocks until the transfer is confirmed and returns its ledger index.
	Wait(ctx context.Context) (uint64, error)
}

type ApprovalKind int

const (
	ApproveConnect ApprovalKind = iota
	ApproveSign
)

// ApprovalRequest is shown to the user before connecting or signing.
type ApprovalRequest struct {
	Kind     ApprovalKind
	Address  string
	Transfer *ledger.Transfer
}

// Approver asks the user to accept a request. Returning false rejects it.
type Approver func(ctx context.Context, req ApprovalRequest) bool

// AutoApprove accepts every request.
func AutoApprove(context.Context, ApprovalRequest) bool { return true }

type Wallet struct {
	logger    *logrus.Logger
	submitter Submitter
	approve   Approver

	mu           sync.Mutex
	accounts     []*Account
	active       int
	connected    bool
	listeners    map[uint64]func([]string)
	nextListener uint64
}

type WalletOption func(*Wallet)

func WithApprover(approve Approver) WalletOption {
	return func(w *Wallet) {
		if approve != nil {
			w.approve = approve
		}
	}
}

func NewWallet(logger *logrus.Logger, submitter Submitter, accounts []*Account, opts ...WalletOption) *Wallet {
	w := &Wallet{
		logger:    logger,
		submitter: submitter,
		approve:   AutoApprove,
		accounts:  accounts,
		listeners: make(map[uint64]func([]string)),
	}
	for opt := range slices.Values(opts) {
		opt(w)
	}
	return w
}

// ActiveIdentities returns the connected identity, or nothing if the wallet isn't connected.
func (w *Wallet) ActiveIdentities(_ context.Context) ([]string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.identitiesLocked(), nil
}

// RequestIdentity asks the user to connect the currently selected account.
func (w *Wallet) RequestIdentity(ctx context.Context) (string, error) {
	w.mu.Lock()
	if len(w.accounts) == 0 {
		w.mu.Unlock()
		return "", fmt.Errorf("%w: wallet holds no accounts", ErrNotConnected)
	}
	addr := w.accounts[w.active].Address()
	w.mu.Unlock()

	if !w.approve(ctx, ApprovalRequest{Kind: ApproveConnect, Address: addr}) {
		w.logger.WithField("address", addr).Info("Connection request rejected")
		return "", ErrUserRejected
	}

	w.mu.Lock()
	// the selection may have moved while the user was deciding
	addr = w.accounts[w.active].Address()
	changed := !w.connected
	w.connected = true
	w.mu.Unlock()

	if changed {
		w.notify()
	}
	return addr, nil
}

// SwitchAccount selects the account with the given name or address.
func (w *Wallet) SwitchAccount(nameOrAddr string) error {
	w.mu.Lock()
	idx := w.findLocked(nameOrAddr)
	if idx < 0 {
		w.mu.Unlock()
		return fmt.Errorf("%w: %q", ErrUnknownAccount, nameOrAddr)
	}
	changed := w.connected && idx != w.active
	w.active = idx
	w.mu.Unlock()

	if changed {
		w.notify()
	}
	return nil
}

// Disconnect unbinds the connected identity.
func (w *Wallet) Disconnect() {
	w.mu.Lock()
	changed := w.connected
	w.connected = false
	w.mu.Unlock()

	if changed {
		w.notify()
	}
}

// OnIdentityChanged registers fn to be called with the new identity list whenever it changes. The returned func
// unsubscribes fn.
func (w *Wallet) OnIdentityChanged(fn func(identities []string)) (unsubscribe func()) {
	w.mu.Lock()
	defer w.mu.Unlock()

	id := w.nextListener
	w.nextListener++
	w.listeners[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			defer w.mu.Unlock()
			delete(w.listeners, id)
		})
	}
}

// SignAndSubmit signs transfer with the account of from and hands it to the ledger. from must be the connected
// identity. Cancelling ctx after SignAndSubmit returns doesn't withdraw the transfer.
func (w *Wallet) SignAndSubmit(ctx context.Context, from string, transfer *ledger.Transfer) (PendingHandle, error) {
	w.mu.Lock()
	if !w.connected {
		w.mu.Unlock()
		return nil, ErrNotConnected
	}
	acc := w.accounts[w.active]
	w.mu.Unlock()

	if !strings.EqualFold(acc.Address(), from) {
		return nil, fmt.Errorf("%w: asked to sign for %s while %s is connected", ErrIdentityMismatch, from, acc.Address())
	}
	if !w.approve(ctx, ApprovalRequest{Kind: ApproveSign, Address: acc.Address(), Transfer: transfer}) {
		w.logger.WithField("submission_id", transfer.SubmissionID).Info("Signing request rejected")
		return nil, ErrUserRejected
	}

	st := sign(acc.Key, transfer)
	p := &pending{done: make(chan struct{})}
	// once signed the append runs to completion; callers giving up only stop waiting in Wait
	submitCtx := context.WithoutCancel(ctx)
	go func() {
		defer close(p.done)
		rec, err := w.submitter.Append(submitCtx, st)
		if err != nil {
			p.err = err
			return
		}
		p.index = rec.Index
	}()

	return p, nil
}

func (w *Wallet) notify() {
	w.mu.Lock()
	identities := w.identitiesLocked()
	listeners := slices.Collect(maps.Values(w.listeners))
	w.mu.Unlock()

	w.logger.WithField("identities", identities).Debug("Identity changed")
	for fn := range slices.Values(listeners) {
		fn(slices.Clone(identities))
	}
}

func (w *Wallet) identitiesLocked() []string {
	if !w.connected || len(w.accounts) == 0 {
		return []string{}
	}
	return []string{w.accounts[w.active].Address()}
}

func (w *Wallet) findLocked(nameOrAddr string) int {
	addr, isAddr := account.NormalizeAddress(nameOrAddr)
	for i, acc := range w.accounts {
		if acc.Name == nameOrAddr || (isAddr && acc.Address() == addr) {
			return i
		}
	}
	return -1
}

func sign(key *account.Key, transfer *ledger.Transfer) *ledger.SignedTransfer {
	return &ledger.SignedTransfer{
		Transfer:  *transfer,
		PublicKey: key.PublicKey(),
		Signature: key.Sign(transfer.SigningBytes()),
	}
}

type pending struct {
	done  chan struct{}
	index uint64
	err   error
}

func (p *pending) Wait(ctx context.Context) (uint64, error) {
	select {
	case <-p.done:
		return p.index, p.err
	case <-ctx.Done():
		return 0, ctx.Err()
	}
}
