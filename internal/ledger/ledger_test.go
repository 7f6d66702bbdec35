package ledger_test

import (
	"bytes"
	"context"
	"slices"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/txledger/internal/account"
	"github.com/hedisam/txledger/internal/ledger"
	"github.com/hedisam/txledger/internal/store/memdb"
)

func newKey(t *testing.T, b byte) *account.Key {
	t.Helper()
	key, err := account.NewKeyFromSeed(bytes.Repeat([]byte{b}, 32))
	require.NoError(t, err)
	return key
}

func sign(key *account.Key, transfer ledger.Transfer) *ledger.SignedTransfer {
	return &ledger.SignedTransfer{
		Transfer:  transfer,
		PublicKey: key.PublicKey(),
		Signature: key.Sign(transfer.SigningBytes()),
	}
}

func TestEmptyLedger(t *testing.T) {
	l := ledger.New(logrus.New(), memdb.NewRecordStore())

	n, err := l.Count(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)

	all, err := l.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestAppendInOrder(t *testing.T) {
	ctx := context.Background()
	a, b := newKey(t, 1), newKey(t, 2)
	l := ledger.New(logrus.New(), memdb.NewRecordStore())

	first, err := l.Append(ctx, sign(a, ledger.Transfer{
		Receiver: b.Address(),
		Amount:   uint256.NewInt(100),
		Message:  "Hello",
		Keyword:  "Test1",
	}))
	require.NoError(t, err)
	second, err := l.Append(ctx, sign(a, ledger.Transfer{
		Receiver: strings.ToUpper(b.Address()[2:]),
		Amount:   uint256.NewInt(200),
		Message:  "Hey",
		Keyword:  "Test2",
	}))
	require.NoError(t, err)
	assert.Equal(t, uint64(0), first.Index)
	assert.Equal(t, uint64(1), second.Index)

	all, err := l.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(100), all[0].Amount.Uint64())
	assert.Equal(t, uint64(200), all[1].Amount.Uint64())
	for i, rec := range all {
		assert.Equal(t, uint64(i), rec.Index)
		assert.Equal(t, a.Address(), rec.Sender)
		assert.Equal(t, b.Address(), rec.Receiver)
	}
	assert.False(t, all[1].Timestamp.Before(all[0].Timestamp))

	again, err := l.All(ctx)
	require.NoError(t, err)
	assert.Equal(t, all, again)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(len(all)), n)
}

func TestAppendValidation(t *testing.T) {
	a, b := newKey(t, 1), newKey(t, 2)
	valid := ledger.Transfer{
		Receiver: b.Address(),
		Amount:   uint256.NewInt(1),
		Message:  "msg",
		Keyword:  "kw",
	}

	tests := map[string]struct {
		transfer    func() *ledger.SignedTransfer
		expectedErr error
	}{
		"nil transfer": {
			transfer:    func() *ledger.SignedTransfer { return nil },
			expectedErr: ledger.ErrInvalidInput,
		},
		"malformed receiver": {
			transfer: func() *ledger.SignedTransfer {
				tr := valid
				tr.Receiver = "0x1234"
				return sign(a, tr)
			},
			expectedErr: ledger.ErrInvalidReceiver,
		},
		"missing amount": {
			transfer: func() *ledger.SignedTransfer {
				tr := valid
				tr.Amount = nil
				return sign(a, tr)
			},
			expectedErr: ledger.ErrInvalidAmount,
		},
		"message too long": {
			transfer: func() *ledger.SignedTransfer {
				tr := valid
				tr.Message = strings.Repeat("x", ledger.MaxTextLen+1)
				return sign(a, tr)
			},
			expectedErr: ledger.ErrInvalidInput,
		},
		"tampered payload": {
			transfer: func() *ledger.SignedTransfer {
				st := sign(a, valid)
				st.Amount = uint256.NewInt(1_000_000)
				return st
			},
			expectedErr: ledger.ErrInvalidSignature,
		},
		"signed by another key": {
			transfer: func() *ledger.SignedTransfer {
				st := sign(a, valid)
				st.PublicKey = b.PublicKey()
				return st
			},
			expectedErr: ledger.ErrInvalidSignature,
		},
	}

	for name, test := range tests {
		t.Run(name, func(t *testing.T) {
			l := ledger.New(logrus.New(), memdb.NewRecordStore())
			_, err := l.Append(context.Background(), test.transfer())
			require.ErrorIs(t, err, test.expectedErr)

			n, err := l.Count(context.Background())
			require.NoError(t, err)
			assert.Zero(t, n)
		})
	}
}

func TestAppendIsIdempotentPerSubmission(t *testing.T) {
	ctx := context.Background()
	a, b := newKey(t, 1), newKey(t, 2)
	l := ledger.New(logrus.New(), memdb.NewRecordStore())

	st := sign(a, ledger.Transfer{
		SubmissionID: "sub-1",
		Receiver:     b.Address(),
		Amount:       uint256.NewInt(5),
	})
	first, err := l.Append(ctx, st)
	require.NoError(t, err)
	retried, err := l.Append(ctx, st)
	require.NoError(t, err)
	assert.Equal(t, first, retried)

	// same id from a different sender is a conflict, not a replay
	_, err = l.Append(ctx, sign(b, ledger.Transfer{
		SubmissionID: "sub-1",
		Receiver:     a.Address(),
		Amount:       uint256.NewInt(5),
	}))
	require.ErrorIs(t, err, ledger.ErrInvalidInput)

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)
}

func TestConcurrentAppends(t *testing.T) {
	const total = 64
	ctx := context.Background()
	receiver := newKey(t, 99)
	l := ledger.New(logrus.New(), memdb.NewRecordStore())

	keys := make([]*account.Key, 8)
	for i := range keys {
		keys[i] = newKey(t, byte(i+1))
	}

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		indices []uint64
	)
	for i := range total {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rec, err := l.Append(ctx, sign(keys[i%len(keys)], ledger.Transfer{
				Receiver: receiver.Address(),
				Amount:   uint256.NewInt(uint64(i)),
			}))
			assert.NoError(t, err)
			if err != nil {
				return
			}
			mu.Lock()
			indices = append(indices, rec.Index)
			mu.Unlock()
		}()
	}
	wg.Wait()

	slices.Sort(indices)
	require.Len(t, indices, total)
	for i, idx := range indices {
		assert.Equal(t, uint64(i), idx)
	}

	n, err := l.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(total), n)

	all, err := l.All(ctx)
	require.NoError(t, err)
	require.Len(t, all, total)
	for i := 1; i < len(all); i++ {
		assert.False(t, all[i].Timestamp.Before(all[i-1].Timestamp))
	}
}

func TestTimestampsNeverGoBackwards(t *testing.T) {
	ctx := context.Background()
	a, b := newKey(t, 1), newKey(t, 2)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	clock := []time.Time{base, base.Add(-time.Hour), base.Add(time.Second)}
	l := ledger.New(logrus.New(), memdb.NewRecordStore(), ledger.WithClock(func() time.Time {
		now := clock[0]
		clock = clock[1:]
		return now
	}))

	var stamps []time.Time
	for range 3 {
		rec, err := l.Append(ctx, sign(a, ledger.Transfer{Receiver: b.Address(), Amount: uint256.NewInt(1)}))
		require.NoError(t, err)
		stamps = append(stamps, rec.Timestamp)
	}

	assert.Equal(t, []time.Time{base, base, base.Add(time.Second)}, stamps)
}
