// Package syncengine keeps a client side mirror of the ledger for the connected identity. It bootstraps the cache
// when an identity binds, submits transfers one at a time and re-fetches the whole ledger after each confirmation.
// Results of operations that were in flight when the identity changed are discarded, never written to the cache.
package syncengine

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/hedisam/pipeline/chans"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/hedisam/txledger/internal/account"
	"github.com/hedisam/txledger/internal/identity"
	"github.com/hedisam/txledger/internal/ledger"
	"github.com/hedisam/txledger/internal/units"
)

type Engine struct {
	logger   *logrus.Logger
	ledger   Ledger
	provider IdentityProvider
	hints    HintStore

	mu          sync.Mutex
	baseCtx     context.Context
	state       State
	identity    string
	epoch       uint64
	entries     []*ledger.Record
	count       uint64
	countHint   uint64
	hasHint     bool
	pending     *PendingSubmission
	unsubscribe func()
}

type Option func(*Engine)

// WithHintStore persists the advisory ledger count in store.
func WithHintStore(store HintStore) Option {
	return func(e *Engine) {
		if store != nil {
			e.hints = store
		}
	}
}

func New(logger *logrus.Logger, l Ledger, provider IdentityProvider, opts ...Option) *Engine {
	e := &Engine{
		logger:   logger,
		ledger:   l,
		provider: provider,
		baseCtx:  context.Background(),
		state:    Unbound,
		entries:  []*ledger.Record{},
	}
	for opt := range slices.Values(opts) {
		opt(e)
	}
	return e
}

// Start loads the count hint, reconciles it against the live ledger and binds to whatever identity the provider
// already exposes. ctx is kept for bootstraps triggered by identity change events.
// A failed bootstrap is returned but leaves the engine running in Bootstrapping; see Retry.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	e.baseCtx = ctx
	e.mu.Unlock()

	e.loadHint(ctx)
	e.reconcileHint(ctx)

	unsubscribe := e.provider.OnIdentityChanged(func(identities []string) {
		err := e.bind(e.baseContext(), identities)
		if err != nil {
			e.logger.WithError(err).Warn("Failed to sync ledger after identity change")
		}
	})
	e.mu.Lock()
	e.unsubscribe = unsubscribe
	e.mu.Unlock()

	identities, err := e.provider.ActiveIdentities(ctx)
	if err != nil {
		return fmt.Errorf("could not get active identities: %w", err)
	}
	return e.bind(ctx, identities)
}

// Close stops listening for identity changes.
func (e *Engine) Close() {
	e.mu.Lock()
	unsubscribe := e.unsubscribe
	e.unsubscribe = nil
	e.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
}

// Connect asks the provider for an identity and binds to it.
func (e *Engine) Connect(ctx context.Context) error {
	id, err := e.provider.RequestIdentity(ctx)
	if err != nil {
		return classify(err)
	}
	return e.bind(ctx, []string{id})
}

// Retry re-runs a bootstrap that previously failed. It's a no-op once the cache is synced.
func (e *Engine) Retry(ctx context.Context) error {
	e.mu.Lock()
	state, epoch := e.state, e.epoch
	e.mu.Unlock()

	switch state {
	case Unbound:
		return ErrNotConnected
	case Bootstrapping:
		return e.bootstrap(ctx, epoch)
	default:
		return nil
	}
}

// Refresh re-fetches the ledger for the bound identity while keeping the current cache readable.
func (e *Engine) Refresh(ctx context.Context) error {
	e.mu.Lock()
	state, epoch := e.state, e.epoch
	e.mu.Unlock()

	switch state {
	case Unbound:
		return ErrNotConnected
	case Bootstrapping:
		return e.bootstrap(ctx, epoch)
	}

	entries, err := e.fetch(ctx)
	if err != nil {
		return err
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	if epoch != e.epoch {
		discardedResults.Inc()
		return ErrIdentityChanged
	}
	e.applyLocked(entries)
	return nil
}

// Watch consumes live ledger counts until ctx is done or counts is closed. Every count updates the hint and a
// count different from the cached one triggers a Refresh.
func (e *Engine) Watch(ctx context.Context, counts <-chan uint64) {
	for count := range chans.ReceiveOrDoneSeq(ctx, counts) {
		e.saveHint(ctx, count)

		e.mu.Lock()
		stale := e.state == Synced && e.pending == nil && count != e.count
		e.mu.Unlock()
		if !stale {
			continue
		}

		err := e.Refresh(ctx)
		if err != nil && !errors.Is(err, context.Canceled) {
			e.logger.WithError(err).Warn("Failed to refresh ledger view")
		}
	}
}

// Snapshot returns a copy of the cache and the engine state.
func (e *Engine) Snapshot() *View {
	e.mu.Lock()
	defer e.mu.Unlock()

	v := &View{
		State:        e.state,
		Identity:     e.identity,
		Entries:      ledger.CloneAll(e.entries),
		Count:        e.count,
		CountHint:    e.countHint,
		HasCountHint: e.hasHint,
	}
	if e.pending != nil {
		p := *e.pending
		t := *p.Transfer
		t.Amount = new(uint256.Int).Set(p.Transfer.Amount)
		p.Transfer = &t
		v.Pending = &p
	}
	return v
}

// Submit signs and submits form as the bound identity, waits for the ledger to confirm it and refreshes the cache.
// It returns the confirmed record as found in the refreshed cache. Only one submission may be in flight.
func (e *Engine) Submit(ctx context.Context, form TransferForm) (*ledger.Record, error) {
	e.mu.Lock()
	err := e.checkSubmittableLocked()
	e.mu.Unlock()
	if err != nil {
		return nil, err
	}

	transfer, err := newTransfer(form)
	if err != nil {
		submissions.WithLabelValues("invalid").Inc()
		return nil, err
	}

	e.mu.Lock()
	// the state may have moved while the form was being validated
	err = e.checkSubmittableLocked()
	if err != nil {
		e.mu.Unlock()
		return nil, err
	}
	e.pending = &PendingSubmission{
		ID:        transfer.SubmissionID,
		Form:      form,
		Transfer:  transfer,
		IsLoading: true,
	}
	e.state = Submitting
	epoch, from := e.epoch, e.identity
	e.mu.Unlock()

	logger := e.logger.WithContext(ctx).WithFields(logrus.Fields{
		"submission_id": transfer.SubmissionID,
		"from":          from,
		"receiver":      transfer.Receiver,
	})
	logger.Debug("Submitting transfer")

	handle, err := e.provider.SignAndSubmit(ctx, from, transfer)
	if err != nil {
		return nil, e.failSubmission(logger, epoch, err)
	}

	index, err := handle.Wait(ctx)
	if err != nil {
		return nil, e.failSubmission(logger, epoch, err)
	}
	logger = logger.WithField("index", index)

	e.mu.Lock()
	if epoch != e.epoch {
		e.pending = nil
		e.mu.Unlock()
		return nil, e.discard(logger)
	}
	e.state = Reconciling
	e.mu.Unlock()

	entries, err := e.fetch(ctx)
	if err == nil && uint64(len(entries)) <= index {
		err = fmt.Errorf("%w: ledger has %d records, confirmed index %d is missing", ErrLedgerUnreachable, len(entries), index)
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.pending = nil
		e.mu.Unlock()
		return nil, e.discard(logger)
	}
	if err != nil {
		e.pending = nil
		e.state = Synced
		e.mu.Unlock()
		submissions.WithLabelValues("reconcile_failed").Inc()
		logger.WithError(err).Warn("Transfer confirmed but the ledger view could not be refreshed")
		return nil, err
	}
	e.applyLocked(entries)
	e.pending = nil
	e.state = Synced
	rec := e.entries[index].Clone()
	count := e.count
	e.mu.Unlock()

	e.saveHint(ctx, count)
	submissions.WithLabelValues("confirmed").Inc()
	logger.Info("Transfer confirmed")
	return rec, nil
}

func (e *Engine) checkSubmittableLocked() error {
	switch {
	case e.state == Unbound:
		submissions.WithLabelValues("not_connected").Inc()
		return ErrNotConnected
	case e.pending != nil:
		submissions.WithLabelValues("in_progress").Inc()
		return ErrSubmissionInProgress
	case e.state != Synced:
		return fmt.Errorf("%w: state is %s", ErrNotSynced, e.state)
	}
	return nil
}

func (e *Engine) failSubmission(logger *logrus.Entry, epoch uint64, err error) error {
	err = classify(err)

	e.mu.Lock()
	e.pending = nil
	stale := epoch != e.epoch
	if !stale {
		e.state = Synced
	}
	e.mu.Unlock()

	if stale {
		return e.discard(logger)
	}

	switch {
	case errors.Is(err, ErrUserRejected):
		submissions.WithLabelValues("rejected").Inc()
		logger.Info("Transfer rejected by the user")
	default:
		submissions.WithLabelValues("failed").Inc()
		logger.WithError(err).Warn("Transfer failed")
	}
	return err
}

func (e *Engine) discard(logger *logrus.Entry) error {
	discardedResults.Inc()
	submissions.WithLabelValues("discarded").Inc()
	logger.Info("Identity changed while the transfer was in flight, discarding result")
	return ErrIdentityChanged
}

// bind moves the engine to the first of identities, clearing the cache if it belongs to someone else.
func (e *Engine) bind(ctx context.Context, identities []string) error {
	next := ""
	if len(identities) > 0 {
		next, _ = account.NormalizeAddress(identities[0])
	}

	e.mu.Lock()
	if next == e.identity {
		state, epoch := e.state, e.epoch
		e.mu.Unlock()
		if state == Bootstrapping {
			return e.bootstrap(ctx, epoch)
		}
		return nil
	}

	e.epoch++
	e.identity = next
	e.entries = []*ledger.Record{}
	e.count = 0
	epoch := e.epoch
	if next == "" {
		e.state = Unbound
		e.mu.Unlock()
		e.logger.Info("Identity unbound, ledger view cleared")
		return nil
	}
	e.state = Bootstrapping
	e.mu.Unlock()

	e.logger.WithField("identity", next).Info("Identity bound, bootstrapping ledger view")
	return e.bootstrap(ctx, epoch)
}

func (e *Engine) bootstrap(ctx context.Context, epoch uint64) error {
	entries, err := e.fetch(ctx)

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		discardedResults.Inc()
		bootstraps.WithLabelValues("discarded").Inc()
		return ErrIdentityChanged
	}
	if err != nil {
		e.mu.Unlock()
		bootstraps.WithLabelValues("failed").Inc()
		return fmt.Errorf("bootstrap failed: %w", err)
	}
	e.applyLocked(entries)
	e.state = Synced
	count := e.count
	e.mu.Unlock()

	bootstraps.WithLabelValues("synced").Inc()
	e.logger.WithField("count", count).Debug("Ledger view synced")
	e.saveHint(ctx, count)
	return nil
}

// fetch reads the count first and the full listing second, so the listing can only have grown in between.
func (e *Engine) fetch(ctx context.Context) ([]*ledger.Record, error) {
	count, err := e.ledger.Count(ctx)
	if err != nil {
		return nil, classify(err)
	}

	entries, err := e.ledger.All(ctx)
	if err != nil {
		return nil, classify(err)
	}
	if uint64(len(entries)) < count {
		return nil, fmt.Errorf("%w: listed %d records after counting %d", ErrLedgerUnreachable, len(entries), count)
	}
	return entries, nil
}

// applyLocked replaces the cache unless entries is older than what's cached.
func (e *Engine) applyLocked(entries []*ledger.Record) {
	if uint64(len(entries)) < e.count {
		e.logger.WithFields(logrus.Fields{
			"cached":  e.count,
			"fetched": len(entries),
		}).Debug("Ignoring stale ledger listing")
		return
	}
	e.entries = ledger.CloneAll(entries)
	e.count = uint64(len(entries))
}

func (e *Engine) baseContext() context.Context {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.baseCtx
}

func (e *Engine) loadHint(ctx context.Context) {
	if e.hints == nil {
		return
	}
	count, ok, err := e.hints.Load(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to load ledger count hint")
		return
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	e.countHint, e.hasHint = count, ok
}

// reconcileHint replaces the persisted hint with the live count.
func (e *Engine) reconcileHint(ctx context.Context) {
	count, err := e.ledger.Count(ctx)
	if err != nil {
		e.logger.WithError(err).Warn("Could not reconcile ledger count hint")
		return
	}

	e.mu.Lock()
	if e.hasHint && e.countHint != count {
		e.logger.WithFields(logrus.Fields{
			"hint": e.countHint,
			"live": count,
		}).Debug("Ledger count hint was stale")
	}
	e.mu.Unlock()

	e.saveHint(ctx, count)
}

func (e *Engine) saveHint(ctx context.Context, count uint64) {
	e.mu.Lock()
	e.countHint, e.hasHint = count, true
	e.mu.Unlock()

	if e.hints == nil {
		return
	}
	err := e.hints.Save(ctx, count)
	if err != nil {
		e.logger.WithError(err).Warn("Failed to save ledger count hint")
	}
}

// newTransfer validates the user's form and converts it into a transfer with a fresh submission id.
func newTransfer(form TransferForm) (*ledger.Transfer, error) {
	receiver, ok := account.NormalizeAddress(form.Receiver)
	if !ok {
		return nil, fmt.Errorf("%w: receiver %q is not an address", ErrInvalidInput, form.Receiver)
	}

	amountStr := strings.TrimSpace(form.Amount)
	d, err := decimal.NewFromString(amountStr)
	if err != nil {
		return nil, fmt.Errorf("%w: amount %q is not a number", ErrInvalidInput, form.Amount)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("%w: amount must be positive", ErrInvalidInput)
	}
	amount, err := units.ParseEther(amountStr)
	if err != nil {
		return nil, err
	}

	err = validateText("message", form.Message)
	if err != nil {
		return nil, err
	}
	err = validateText("keyword", form.Keyword)
	if err != nil {
		return nil, err
	}

	return &ledger.Transfer{
		SubmissionID: uuid.NewString(),
		Receiver:     receiver,
		Amount:       amount,
		Message:      form.Message,
		Keyword:      form.Keyword,
	}, nil
}

func validateText(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%w: %s is required", ErrInvalidInput, field)
	}
	if utf8.RuneCountInString(value) > ledger.MaxTextLen {
		return fmt.Errorf("%w: %s is longer than %d characters", ErrInvalidInput, field, ledger.MaxTextLen)
	}
	return nil
}

// classify maps provider and ledger errors onto the engine's error kinds. Cancellation and anything unrecognised is
// reported as the ledger being unreachable.
func classify(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrNotConnected),
		errors.Is(err, ErrUserRejected),
		errors.Is(err, ErrLedgerUnreachable),
		errors.Is(err, ErrInvalidReceiver),
		errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInvalidSignature),
		errors.Is(err, ErrInvalidInput):
		return err
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		// the ledger may still apply a transfer the caller stopped waiting for
		return fmt.Errorf("%w: gave up waiting for the ledger: %w", ErrLedgerUnreachable, err)
	case errors.Is(err, identity.ErrIdentityMismatch):
		return fmt.Errorf("%w: %w", ErrIdentityChanged, err)
	default:
		return fmt.Errorf("%w: %w", ErrLedgerUnreachable, err)
	}
}
