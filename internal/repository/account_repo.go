package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"banking-service/internal/domain"
	"banking-service/pkg/xerrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// AccountStore owns account records and is the only component allowed to
// mutate balances. Every balance mutation is atomic per account and never
// leaves a balance negative.
type AccountStore interface {
	Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error)
	Get(ctx context.Context, id int64) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	List(ctx context.Context) ([]*domain.Account, error)

	// AdjustBalance applies delta inside the account's critical section.
	// A negative delta that would take the balance below zero fails with
	// xerrors.ErrInsufficientFunds and changes nothing.
	AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error)

	// TransferBalance debits from and credits to as one all-or-nothing step,
	// taking both accounts' critical sections in ascending id order.
	TransferBalance(ctx context.Context, fromID, toID, amount int64) error

	// UpdateProfile writes one enumerated profile field. Blank values are
	// rejected, and changing the holder email clears the verified flag.
	UpdateProfile(ctx context.Context, id int64, field domain.ProfileField, value string) error

	// UpdatePassword swaps the credential only when currentHash still matches
	// the stored hash; a stale or wrong hash fails with xerrors.ErrUnauthorized.
	UpdatePassword(ctx context.Context, id int64, currentHash, newHash string) error

	MarkEmailVerified(ctx context.Context, id int64) error
	Delete(ctx context.Context, id int64) error
}

type accountRepo struct {
	db *pgxpool.Pool
}

func NewAccountRepo(db *pgxpool.Pool) AccountStore {
	return &accountRepo{db: db}
}

const accountColumns = `id, account_number, holder_name, holder_address, holder_email,
	password_hash, balance, role, email_verified, created_at, updated_at`

func scanAccount(row pgx.Row) (*domain.Account, error) {
	var a domain.Account
	err := row.Scan(
		&a.ID,
		&a.AccountNumber,
		&a.HolderName,
		&a.HolderAddress,
		&a.HolderEmail,
		&a.PasswordHash,
		&a.Balance,
		&a.Role,
		&a.EmailVerified,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, xerrors.ErrNotFound
		}
		return nil, fmt.Errorf("failed to scan account: %w", err)
	}
	return &a, nil
}

func (r *accountRepo) Create(ctx context.Context, in *domain.AccountCreate) (*domain.Account, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}

	role := in.Role
	if role == "" {
		role = domain.RoleUser
	}

	query := `
		INSERT INTO accounts (account_number, holder_name, holder_address, holder_email,
			password_hash, balance, role, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, false, now(), now())
		RETURNING ` + accountColumns

	acc, err := scanAccount(r.db.QueryRow(ctx, query,
		in.AccountNumber,
		in.HolderName,
		in.HolderAddress,
		in.HolderEmail,
		in.PasswordHash,
		in.InitialBalance,
		role,
	))
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return nil, fmt.Errorf("email %s: %w", in.HolderEmail, xerrors.ErrConflict)
		}
		return nil, fmt.Errorf("failed to create account: %w", err)
	}
	return acc, nil
}

func (r *accountRepo) Get(ctx context.Context, id int64) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE id = $1`
	return scanAccount(r.db.QueryRow(ctx, query, id))
}

func (r *accountRepo) GetByEmail(ctx context.Context, email string) (*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts WHERE holder_email = $1`
	return scanAccount(r.db.QueryRow(ctx, query, email))
}

func (r *accountRepo) List(ctx context.Context) ([]*domain.Account, error) {
	query := `SELECT ` + accountColumns + ` FROM accounts ORDER BY id ASC`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list accounts: %w", err)
	}
	defer rows.Close()

	var accounts []*domain.Account
	for rows.Next() {
		acc, err := scanAccount(rows)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, acc)
	}
	return accounts, rows.Err()
}

// AdjustBalance applies the delta in a single guarded UPDATE so the
// check-and-mutate is one atomic step at the row level.
func (r *accountRepo) AdjustBalance(ctx context.Context, id int64, delta int64) (int64, error) {
	query := `
		UPDATE accounts
		SET balance = balance + $1, updated_at = now()
		WHERE id = $2 AND balance + $1 >= 0
		RETURNING balance
	`

	var newBalance int64
	err := r.db.QueryRow(ctx, query, delta, id).Scan(&newBalance)
	if err == nil {
		return newBalance, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, fmt.Errorf("failed to adjust balance: %w", err)
	}

	// Guarded update matched nothing: distinguish a missing account from an
	// overdraft attempt.
	var exists bool
	if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
		return 0, fmt.Errorf("failed to check account %d: %w", id, err)
	}
	if !exists {
		return 0, xerrors.ErrNotFound
	}
	return 0, xerrors.ErrInsufficientFunds
}

// TransferBalance locks both rows in ascending id order inside one database
// transaction, so two opposite-direction transfers cannot deadlock.
func (r *accountRepo) TransferBalance(ctx context.Context, fromID, toID, amount int64) error {
	if amount <= 0 {
		return domain.NewValidationError("transfer amount must be positive")
	}
	if fromID == toID {
		return domain.NewValidationError("transfer requires two distinct accounts")
	}

	tx, err := r.db.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted, AccessMode: pgx.ReadWrite})
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	lo, hi := fromID, toID
	if lo > hi {
		lo, hi = hi, lo
	}

	balances := make(map[int64]int64, 2)
	rows, err := tx.Query(ctx, `SELECT id, balance FROM accounts WHERE id = ANY($1) ORDER BY id FOR UPDATE`, []int64{lo, hi})
	if err != nil {
		return fmt.Errorf("failed to lock accounts: %w", err)
	}
	for rows.Next() {
		var id, balance int64
		if err := rows.Scan(&id, &balance); err != nil {
			rows.Close()
			return fmt.Errorf("failed to scan locked account: %w", err)
		}
		balances[id] = balance
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return fmt.Errorf("failed to lock accounts: %w", err)
	}

	if len(balances) != 2 {
		return xerrors.ErrNotFound
	}
	if balances[fromID] < amount {
		return xerrors.ErrInsufficientFunds
	}

	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance - $1, updated_at = now() WHERE id = $2`, amount, fromID); err != nil {
		return fmt.Errorf("failed to debit account %d: %w", fromID, err)
	}
	if _, err := tx.Exec(ctx, `UPDATE accounts SET balance = balance + $1, updated_at = now() WHERE id = $2`, amount, toID); err != nil {
		return fmt.Errorf("failed to credit account %d: %w", toID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transfer: %w", err)
	}
	return nil
}

func (r *accountRepo) UpdateProfile(ctx context.Context, id int64, field domain.ProfileField, value string) error {
	if !field.Valid() {
		return domain.NewValidationError("unknown profile field")
	}
	if strings.TrimSpace(value) == "" {
		return domain.NewValidationError("profile value is required")
	}

	// Field names are taken from the enumerated ProfileField set, never from
	// caller input directly.
	query := fmt.Sprintf(`UPDATE accounts SET %s = $1, updated_at = now() WHERE id = $2`, string(field))
	if field == domain.FieldHolderEmail {
		// A changed address needs verification again.
		query = `UPDATE accounts SET holder_email = $1, email_verified = false, updated_at = now() WHERE id = $2`
	}

	tag, err := r.db.Exec(ctx, query, value, id)
	if err != nil {
		if xerrors.IsUniqueViolation(err) {
			return fmt.Errorf("email %s: %w", value, xerrors.ErrConflict)
		}
		return fmt.Errorf("failed to update profile: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

// UpdatePassword is a compare-and-swap on the stored hash, so a concurrent
// change of the same credential cannot be silently overwritten.
func (r *accountRepo) UpdatePassword(ctx context.Context, id int64, currentHash, newHash string) error {
	query := `
		UPDATE accounts
		SET password_hash = $1, updated_at = now()
		WHERE id = $2 AND password_hash = $3
	`

	tag, err := r.db.Exec(ctx, query, newHash, id, currentHash)
	if err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	if tag.RowsAffected() == 0 {
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM accounts WHERE id = $1)`, id).Scan(&exists); err != nil {
			return fmt.Errorf("failed to check account %d: %w", id, err)
		}
		if !exists {
			return xerrors.ErrNotFound
		}
		return xerrors.ErrUnauthorized
	}
	return nil
}

func (r *accountRepo) MarkEmailVerified(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `UPDATE accounts SET email_verified = true, updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to mark email verified: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}

func (r *accountRepo) Delete(ctx context.Context, id int64) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM accounts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete account: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return xerrors.ErrNotFound
	}
	return nil
}
