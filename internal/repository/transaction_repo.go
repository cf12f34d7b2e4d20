package repository

import (
	"context"
	"errors"
	"fmt"

	"banking-service/internal/domain"
	"banking-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// TransactionLedger owns the append-only record of money movements and their
// status transitions. Ids are monotonically assigned; timestamps are set at
// insertion and never change.
type TransactionLedger interface {
	Record(ctx context.Context, senderID, receiverID, amount int64, status domain.TransactionStatus) (*domain.Transaction, error)

	// SetStatus transitions Pending to exactly one of Success or Declined.
	// Any other transition, or a transaction no longer Pending, fails with
	// xerrors.ErrInvalidTransition. Of two racing calls exactly one wins.
	SetStatus(ctx context.Context, transID int64, status domain.TransactionStatus) error

	Get(ctx context.Context, transID int64) (*domain.Transaction, error)
	ListByAccount(ctx context.Context, accountID int64) ([]*domain.Transaction, error)
	ListAll(ctx context.Context) ([]*domain.Transaction, error)
	ListPending(ctx context.Context) ([]*domain.Transaction, error)
	ListPendingBySender(ctx context.Context, accountID int64) ([]*domain.Transaction, error)
	ListPendingByReceiver(ctx context.Context, accountID int64) ([]*domain.Transaction, error)
	Delete(ctx context.Context, transID int64) error
}

type transactionRepo struct {
	db *pgxpool.Pool
}

func NewTransactionRepo(db *pgxpool.Pool) TransactionLedger {
	return &transactionRepo{db: db}
}

const transactionColumns = `trans_id, sender_id, receiver_id, amount, status, created_at`

func scanTransaction(row pgx.Row) (*domain.Transaction, error) {
	var t domain.Transaction
	err := row.Scan(&t.TransID, &t.SenderID, &t.ReceiverID, &t.Amount, &t.Status, &t.Timestamp)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan transaction: %w", err)
	}
	return &t, nil
}

func (r *transactionRepo) Record(ctx context.Context, senderID, receiverID, amount int64, status domain.TransactionStatus) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("transaction amount must be positive")
	}
	if !status.Valid() {
		return nil, domain.NewValidationError("unknown transaction status")
	}

	query := `
		INSERT INTO transactions (sender_id, receiver_id, amount, status, created_at)
		VALUES ($1, $2, $3, $4, now())
		RETURNING ` + transactionColumns

	t, err := scanTransaction(r.db.QueryRow(ctx, query, senderID, receiverID, amount, status))
	if err != nil {
		return nil, fmt.Errorf("failed to record transaction: %w", err)
	}
	return t, nil
}

// SetStatus is a compare-and-swap on the Pending state so concurrent
// execute/decline calls resolve to exactly one winner.
func (r *transactionRepo) SetStatus(ctx context.Context, transID int64, status domain.TransactionStatus) error {
	if status != domain.StatusSuccess && status != domain.StatusDeclined {
		return fmt.Errorf("%w: pending resolves only to Success or Declined", xerrors.ErrInvalidTransition)
	}

	query := `UPDATE transactions SET status = $1 WHERE trans_id = $2 AND status = $3`

	tag, err := r.db.Exec(ctx, query, status, transID, domain.StatusPending)
	if err != nil {
		return fmt.Errorf("failed to set status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM transactions WHERE trans_id = $1)`, transID).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check transaction %d: %w", transID, err)
		}
		if !exists {
			return xerrors.ErrNotFound
		}
		return xerrors.ErrInvalidTransition
	}
	return nil
}

func (r *transactionRepo) Get(ctx context.Context, transID int64) (*domain.Transaction, error) {
	query := `SELECT ` + transactionColumns + ` FROM transactions WHERE trans_id = $1`
	return scanTransaction(r.db.QueryRow(ctx, query, transID))
}

func (r *transactionRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list transactions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func (r *transactionRepo) ListByAccount(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE sender_id = $1 OR receiver_id = $1
		ORDER BY trans_id ASC`, accountID)
}

func (r *transactionRepo) ListAll(ctx context.Context) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+` FROM transactions ORDER BY trans_id ASC`)
}

func (r *transactionRepo) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = $1
		ORDER BY trans_id ASC`, domain.StatusPending)
}

func (r *transactionRepo) ListPendingBySender(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = $1 AND sender_id = $2
		ORDER BY trans_id ASC`, domain.StatusPending, accountID)
}

func (r *transactionRepo) ListPendingByReceiver(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	return r.list(ctx, `SELECT `+transactionColumns+`
		FROM transactions
		WHERE status = $1 AND receiver_id = $2
		ORDER BY trans_id ASC`, domain.StatusPending, accountID)
}

func (r *transactionRepo) Delete(ctx context.Context, transID int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM transactions WHERE trans_id = $1`, transID)
	if err != nil {
		return fmt.Errorf("failed to delete transaction: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
