package memstore

import (
	"context"
	"errors"
	"sync"
	"testing"

	"banking-service/internal/domain"
	"banking-service/pkg/xerrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordAssignsMonotonicIDs(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	t1, err := l.Record(ctx, 1, 2, 100, domain.StatusSuccess)
	require.NoError(t, err)
	t2, err := l.Record(ctx, 2, 1, 200, domain.StatusPending)
	require.NoError(t, err)

	assert.Equal(t, t1.TransID+1, t2.TransID)
	assert.False(t, t1.Timestamp.IsZero())
}

func TestRecordRejectsBadInput(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	_, err := l.Record(ctx, 1, 2, 0, domain.StatusSuccess)
	assert.True(t, errors.Is(err, xerrors.ErrValidation))

	_, err = l.Record(ctx, 1, 2, 100, "Bogus")
	assert.True(t, errors.Is(err, xerrors.ErrValidation))
}

func TestSetStatusCAS(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	txn, err := l.Record(ctx, 1, 2, 100, domain.StatusPending)
	require.NoError(t, err)

	require.NoError(t, l.SetStatus(ctx, txn.TransID, domain.StatusSuccess))

	// Terminal records never change again.
	err = l.SetStatus(ctx, txn.TransID, domain.StatusDeclined)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))

	// Pending can only resolve to Success or Declined.
	other, _ := l.Record(ctx, 1, 2, 100, domain.StatusPending)
	err = l.SetStatus(ctx, other.TransID, domain.StatusDeposit)
	assert.True(t, errors.Is(err, xerrors.ErrInvalidTransition))

	err = l.SetStatus(ctx, 999, domain.StatusSuccess)
	assert.True(t, errors.Is(err, xerrors.ErrNotFound))
}

// Racing resolutions of one pending record: exactly one wins.
func TestSetStatusExactlyOneWinner(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	txn, err := l.Record(ctx, 1, 2, 100, domain.StatusPending)
	require.NoError(t, err)

	const racers = 16
	var wg sync.WaitGroup
	wins := make(chan domain.TransactionStatus, racers)
	for i := 0; i < racers; i++ {
		status := domain.StatusSuccess
		if i%2 == 1 {
			status = domain.StatusDeclined
		}
		wg.Add(1)
		go func(s domain.TransactionStatus) {
			defer wg.Done()
			if err := l.SetStatus(ctx, txn.TransID, s); err == nil {
				wins <- s
			}
		}(status)
	}
	wg.Wait()
	close(wins)

	var winners []domain.TransactionStatus
	for s := range wins {
		winners = append(winners, s)
	}
	require.Len(t, winners, 1)

	got, err := l.Get(ctx, txn.TransID)
	require.NoError(t, err)
	assert.Equal(t, winners[0], got.Status)
}

func TestListReturnsIsolatedCopies(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	txn, _ := l.Record(ctx, 1, 2, 100, domain.StatusPending)

	all, err := l.ListAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	all[0].Amount = 999999

	got, _ := l.Get(ctx, txn.TransID)
	assert.Equal(t, int64(100), got.Amount)
}

func TestPendingListings(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	// payer 1 -> requester 2, still pending
	p1, _ := l.Record(ctx, 1, 2, 100, domain.StatusPending)
	// payer 2 -> requester 1, still pending
	p2, _ := l.Record(ctx, 2, 1, 200, domain.StatusPending)
	// settled, must not appear
	s1, _ := l.Record(ctx, 1, 2, 300, domain.StatusPending)
	require.NoError(t, l.SetStatus(ctx, s1.TransID, domain.StatusSuccess))

	bySender, err := l.ListPendingBySender(ctx, 1)
	require.NoError(t, err)
	require.Len(t, bySender, 1)
	assert.Equal(t, p1.TransID, bySender[0].TransID)

	byReceiver, err := l.ListPendingByReceiver(ctx, 1)
	require.NoError(t, err)
	require.Len(t, byReceiver, 1)
	assert.Equal(t, p2.TransID, byReceiver[0].TransID)

	pending, err := l.ListPending(ctx)
	require.NoError(t, err)
	assert.Len(t, pending, 2)

	involving, err := l.ListByAccount(ctx, 2)
	require.NoError(t, err)
	assert.Len(t, involving, 3)
}

func TestDeleteTransaction(t *testing.T) {
	l := NewLedger()
	ctx := context.Background()

	a, _ := l.Record(ctx, 1, 2, 100, domain.StatusPending)
	b, _ := l.Record(ctx, 1, 2, 200, domain.StatusPending)

	require.NoError(t, l.Delete(ctx, a.TransID))
	_, err := l.Get(ctx, a.TransID)
	assert.True(t, errors.Is(err, xerrors.ErrNotFound))

	all, _ := l.ListAll(ctx)
	require.Len(t, all, 1)
	assert.Equal(t, b.TransID, all[0].TransID)

	assert.True(t, errors.Is(l.Delete(ctx, a.TransID), xerrors.ErrNotFound))
}
