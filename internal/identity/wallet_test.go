package identity

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/holiman/uint256"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hedisam/txledger/internal/account"
	"github.com/hedisam/txledger/internal/ledger"
)

type submitterFunc func(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error)

func (f submitterFunc) Append(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error) {
	return f(ctx, st)
}

type recorder struct {
	mu    sync.Mutex
	calls [][]string
}

func (r *recorder) record(ids []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, ids)
}

func (r *recorder) get() [][]string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

func newAccounts(t *testing.T, names ...string) []*Account {
	t.Helper()
	var accounts []*Account
	for _, name := range names {
		acc, err := NewAccount(name)
		require.NoError(t, err)
		accounts = append(accounts, acc)
	}
	return accounts
}

func TestKeyringRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keys", "keyring.yaml")

	accounts, err := LoadKeyring(path)
	require.NoError(t, err)
	assert.Empty(t, accounts)

	accounts = newAccounts(t, "alice", "bob")
	require.NoError(t, SaveKeyring(path, accounts))

	loaded, err := LoadKeyring(path)
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	for i := range accounts {
		assert.Equal(t, accounts[i].Name, loaded[i].Name)
		assert.Equal(t, accounts[i].Address(), loaded[i].Address())
	}
}

func TestWalletIdentityLifecycle(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t, "alice", "bob")
	w := NewWallet(logrus.New(), nil, accounts)

	rec := &recorder{}
	unsubscribe := w.OnIdentityChanged(rec.record)

	ids, err := w.ActiveIdentities(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	addr, err := w.RequestIdentity(ctx)
	require.NoError(t, err)
	assert.Equal(t, accounts[0].Address(), addr)

	require.NoError(t, w.SwitchAccount("bob"))
	require.NoError(t, w.SwitchAccount(accounts[1].Address()))
	assert.ErrorIs(t, w.SwitchAccount("carol"), ErrUnknownAccount)

	w.Disconnect()
	ids, err = w.ActiveIdentities(ctx)
	require.NoError(t, err)
	assert.Empty(t, ids)

	unsubscribe()
	unsubscribe()
	_, err = w.RequestIdentity(ctx)
	require.NoError(t, err)

	// switching to the already selected account is not a change
	assert.Equal(t, [][]string{
		{accounts[0].Address()},
		{accounts[1].Address()},
		{},
	}, rec.get())
}

func TestWalletRejectsConnection(t *testing.T) {
	w := NewWallet(logrus.New(), nil, newAccounts(t, "alice"), WithApprover(func(context.Context, ApprovalRequest) bool {
		return false
	}))

	_, err := w.RequestIdentity(context.Background())
	assert.ErrorIs(t, err, ErrUserRejected)

	ids, err := w.ActiveIdentities(context.Background())
	require.NoError(t, err)
	assert.Empty(t, ids)
}

func TestWalletSignAndSubmit(t *testing.T) {
	ctx := context.Background()
	accounts := newAccounts(t, "alice", "bob")
	transfer := &ledger.Transfer{
		SubmissionID: "sub-1",
		Receiver:     accounts[1].Address(),
		Amount:       uint256.NewInt(100),
		Message:      "Hello",
		Keyword:      "Test1",
	}

	release := make(chan struct{})
	submitter := submitterFunc(func(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error) {
		<-release
		if !account.Verify(st.PublicKey, st.SigningBytes(), st.Signature) {
			return nil, ledger.ErrInvalidSignature
		}
		if st.SubmissionID == "fail" {
			return nil, ledger.ErrUnreachable
		}
		return &ledger.Record{Index: 4, Sender: account.Address(st.PublicKey)}, nil
	})

	var rejectSign bool
	w := NewWallet(logrus.New(), submitter, accounts, WithApprover(func(_ context.Context, req ApprovalRequest) bool {
		return req.Kind == ApproveConnect || !rejectSign
	}))

	_, err := w.SignAndSubmit(ctx, accounts[0].Address(), transfer)
	require.ErrorIs(t, err, ErrNotConnected)

	_, err = w.RequestIdentity(ctx)
	require.NoError(t, err)

	_, err = w.SignAndSubmit(ctx, accounts[1].Address(), transfer)
	require.ErrorIs(t, err, ErrIdentityMismatch)

	rejectSign = true
	_, err = w.SignAndSubmit(ctx, accounts[0].Address(), transfer)
	require.ErrorIs(t, err, ErrUserRejected)
	rejectSign = false

	handle, err := w.SignAndSubmit(ctx, accounts[0].Address(), transfer)
	require.NoError(t, err)

	shortCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
	defer cancel()
	_, err = handle.Wait(shortCtx)
	require.ErrorIs(t, err, context.DeadlineExceeded)

	close(release)
	index, err := handle.Wait(ctx)
	require.NoError(t, err)
	assert.Equal(t, uint64(4), index)

	failing := *transfer
	failing.SubmissionID = "fail"
	handle, err = w.SignAndSubmit(ctx, accounts[0].Address(), &failing)
	require.NoError(t, err)
	_, err = handle.Wait(ctx)
	assert.True(t, errors.Is(err, ledger.ErrUnreachable))
}

func TestWalletSubmitOutlivesCallerContext(t *testing.T) {
	accounts := newAccounts(t, "alice")
	release := make(chan struct{})
	submitterErr := make(chan error, 1)
	submitter := submitterFunc(func(ctx context.Context, st *ledger.SignedTransfer) (*ledger.Record, error) {
		<-release
		submitterErr <- ctx.Err()
		return &ledger.Record{Index: 2}, nil
	})
	w := NewWallet(logrus.New(), submitter, accounts)
	_, err := w.RequestIdentity(context.Background())
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	handle, err := w.SignAndSubmit(ctx, accounts[0].Address(), &ledger.Transfer{
		SubmissionID: "sub-1",
		Receiver:     accounts[0].Address(),
		Amount:       uint256.NewInt(1),
		Message:      "Hello",
		Keyword:      "Test1",
	})
	require.NoError(t, err)

	cancel()
	_, err = handle.Wait(ctx)
	require.ErrorIs(t, err, context.Canceled)

	close(release)
	require.NoError(t, <-submitterErr)
	index, err := handle.Wait(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint64(2), index)
}
