package memstore

import (
	"context"
	"fmt"
	"sync"
	"time"

	"banking-service/internal/domain"
	"banking-service/internal/repository"
	"banking-service/pkg/xerrors"
)

// Ledger is the in-memory transaction ledger: an append-only, insertion-
// ordered record with monotonically assigned ids.
type Ledger struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]*domain.Transaction
	order  []*domain.Transaction
}

var _ repository.TransactionLedger = (*Ledger)(nil)

func NewLedger() *Ledger {
	return &Ledger{byID: make(map[int64]*domain.Transaction)}
}

func (l *Ledger) Record(_ context.Context, senderID, receiverID, amount int64, status domain.TransactionStatus) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("transaction amount must be positive")
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("unknown transaction status")
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.nextID++
	t := &domain.Transaction{
		TransID:    l.nextID,
		SenderID:   senderID,
		ReceiverID: receiverID,
		Amount:     amount,
		Status:     status,
		Timestamp:  time.Now(),
	}
	l.byID[t.TransID] = t
	l.order = append(l.order, t)

	cp := *t
	return &cp, nil
}

func (l *Ledger) SetStatus(_ context.Context, transID int64, status domain.TransactionStatus) error {
	if status != domain.StatusSuccess && status != domain.StatusDeclined {
		return fmt.Errorf("%w: pending resolves only to Success or Declined", xerrors.ErrInvalidTransition)
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	t, ok := l.byID[transID]
	if !ok {
		return xerrors.ErrNotFound
	}
	if t.Status != domain.StatusPending {
		return xerrors.ErrInvalidTransition
	}
	t.Status = status
	return nil
}

func (l *Ledger) Get(_ context.Context, transID int64) (*domain.Transaction, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	t, ok := l.byID[transID]
	if !ok {
		return nil, xerrors.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

// snapshot copies matching transactions in insertion order.
func (l *Ledger) snapshot(keep func(*domain.Transaction) bool) []*domain.Transaction {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []*domain.Transaction
	for _, t := range l.order {
		if keep(t) {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out
}

func (l *Ledger) ListByAccount(_ context.Context, accountID int64) ([]*domain.Transaction, error) {
	return l.snapshot(func(t *domain.Transaction) bool { return t.Involves(accountID) }), nil
}

func (l *Ledger) ListAll(_ context.Context) ([]*domain.Transaction, error) {
	return l.snapshot(func(*domain.Transaction) bool { return true }), nil
}

func (l *Ledger) ListPending(_ context.Context) ([]*domain.Transaction, error) {
	return l.snapshot(func(t *domain.Transaction) bool { return t.Status == domain.StatusPending }), nil
}

func (l *Ledger) ListPendingBySender(_ context.Context, accountID int64) ([]*domain.Transaction, error) {
	return l.snapshot(func(t *domain.Transaction) bool {
		return t.Status == domain.StatusPending && t.SenderID == accountID
	}), nil
}

func (l *Ledger) ListPendingByReceiver(_ context.Context, accountID int64) ([]*domain.Transaction, error) {
	return l.snapshot(func(t *domain.Transaction) bool {
		return t.Status == domain.StatusPending && t.ReceiverID == accountID
	}), nil
}

func (l *Ledger) Delete(_ context.Context, transID int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.byID[transID]; !ok {
		return xerrors.ErrNotFound
	}
	delete(l.byID, transID)
	for i, t := range l.order {
		if t.TransID == transID {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}
