// Package ledger implements the append-only transaction ledger. Appends are serialized by the Ledger so every
// record gets the next gap-free index and a timestamp that never goes backwards.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/sirupsen/logrus"

	"github.com/hedisam/txledger/internal/account"
)

// Store persists records in append order.
type Store interface {
	// Append stores rec at index Count() and returns the stored copy.
	Append(ctx context.Context, rec *Record) (*Record, error)
	Count(ctx context.Context) (uint64, error)
	All(ctx context.Context) ([]*Record, error)
	Get(ctx context.Context, index uint64) (*Record, error)
	// FindBySubmission returns ErrNotFound if no record carries the submission id.
	FindBySubmission(ctx context.Context, submissionID string) (*Record, error)
}

type Ledger struct {
	logger *logrus.Logger
	store  Store
	now    func() time.Time

	mu            sync.Mutex
	lastTimestamp time.Time
}

type Option func(*Ledger)

// WithClock overrides the clock used to stamp appended records.
func WithClock(now func() time.Time) Option {
	return func(l *Ledger) {
		if now != nil {
			l.now = now
		}
	}
}

func New(logger *logrus.Logger, store Store, opts ...Option) *Ledger {
	l := &Ledger{
		logger: logger,
		store:  store,
		now:    time.Now,
	}
	for opt := range slices.Values(opts) {
		opt(l)
	}
	return l
}

// Append verifies and validates st and appends it as the next record. Submitting the same submission id twice
// returns the record appended the first time.
func (l *Ledger) Append(ctx context.Context, st *SignedTransfer) (*Record, error) {
	rec, err := l.validate(st)
	if err != nil {
		return nil, err
	}

	logger := l.logger.WithContext(ctx).WithFields(logrus.Fields{
		"submission_id": rec.SubmissionID,
		"sender":        rec.Sender,
		"receiver":      rec.Receiver,
	})

	l.mu.Lock()
	defer l.mu.Unlock()

	if rec.SubmissionID != "" {
		existing, err := l.store.FindBySubmission(ctx, rec.SubmissionID)
		switch {
		case err == nil:
			if existing.Sender != rec.Sender {
				rejectedAppends.WithLabelValues("submission_conflict").Inc()
				return nil, fmt.Errorf("%w: submission id already used by another sender", ErrInvalidInput)
			}
			logger.WithField("index", existing.Index).Debug("Submission already appended")
			duplicateSubmissions.Inc()
			return existing, nil
		case !errors.Is(err, ErrNotFound):
			return nil, fmt.Errorf("could not look up submission: %w", err)
		}
	}

	ts, err := l.nextTimestamp(ctx)
	if err != nil {
		return nil, err
	}
	rec.Timestamp = ts

	stored, err := l.store.Append(ctx, rec)
	if err != nil {
		return nil, fmt.Errorf("could not append record to store: %w", err)
	}
	l.lastTimestamp = ts
	appendedRecords.Inc()

	logger.WithField("index", stored.Index).Debug("Record appended")
	return stored, nil
}

// Count returns the number of appended records.
func (l *Ledger) Count(ctx context.Context) (uint64, error) {
	return l.store.Count(ctx)
}

// All returns every record in append order. The result is a snapshot owned by the caller.
func (l *Ledger) All(ctx context.Context) ([]*Record, error) {
	return l.store.All(ctx)
}

// Get returns the record at index.
func (l *Ledger) Get(ctx context.Context, index uint64) (*Record, error) {
	return l.store.Get(ctx, index)
}

func (l *Ledger) validate(st *SignedTransfer) (*Record, error) {
	if st == nil {
		rejectedAppends.WithLabelValues("empty").Inc()
		return nil, fmt.Errorf("%w: missing transfer", ErrInvalidInput)
	}
	if !account.Verify(st.PublicKey, st.SigningBytes(), st.Signature) {
		rejectedAppends.WithLabelValues("signature").Inc()
		return nil, ErrInvalidSignature
	}

	receiver, ok := account.NormalizeAddress(st.Receiver)
	if !ok {
		rejectedAppends.WithLabelValues("receiver").Inc()
		return nil, fmt.Errorf("%w: %q", ErrInvalidReceiver, st.Receiver)
	}
	if st.Amount == nil {
		rejectedAppends.WithLabelValues("amount").Inc()
		return nil, fmt.Errorf("%w: missing amount", ErrInvalidAmount)
	}
	if utf8.RuneCountInString(st.Message) > MaxTextLen || utf8.RuneCountInString(st.Keyword) > MaxTextLen {
		rejectedAppends.WithLabelValues("text").Inc()
		return nil, fmt.Errorf("%w: message and keyword are limited to %d characters", ErrInvalidInput, MaxTextLen)
	}

	return &Record{
		Sender:       account.Address(st.PublicKey),
		Receiver:     receiver,
		Amount:       st.Amount.Clone(),
		Message:      st.Message,
		Keyword:      st.Keyword,
		SubmissionID: st.SubmissionID,
	}, nil
}

// nextTimestamp must be called with l.mu held.
func (l *Ledger) nextTimestamp(ctx context.Context) (time.Time, error) {
	if l.lastTimestamp.IsZero() {
		n, err := l.store.Count(ctx)
		if err != nil {
			return time.Time{}, fmt.Errorf("could not count records: %w", err)
		}
		if n > 0 {
			last, err := l.store.Get(ctx, n-1)
			if err != nil {
				return time.Time{}, fmt.Errorf("could not get last record: %w", err)
			}
			l.lastTimestamp = last.Timestamp
		}
	}

	ts := l.now().UTC().Truncate(time.Second)
	if ts.Before(l.lastTimestamp) {
		ts = l.lastTimestamp
	}
	return ts, nil
}
