package usecase

import (
	"context"

	"banking-service/internal/domain"
	"banking-service/internal/repository"
	"banking-service/pkg/xerrors"
)

// StatementUsecase answers transaction history queries. Filters run over an
// immutable snapshot taken from the ledger, so concurrent writes never tear a
// result set.
type StatementUsecase struct {
	ledger repository.TransactionLedger
}

func NewStatementUsecase(ledger repository.TransactionLedger) *StatementUsecase {
	return &StatementUsecase{ledger: ledger}
}

// Statement returns the account's transactions matching the filter, ordered
// by transaction id ascending. The filter's Subject is forced to accountID so
// callers cannot read another account's statement through filter fields.
func (uc *StatementUsecase) Statement(ctx context.Context, accountID int64, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	snapshot, err := uc.ledger.ListByAccount(ctx, accountID)
	if err != nil {
		return nil, err
	}
	filter.Subject = accountID
	return filter.Collect(snapshot), nil
}

// Transaction returns a single movement, restricted to parties of the
// transaction unless the caller is an admin.
func (uc *StatementUsecase) Transaction(ctx context.Context, callerID int64, isAdmin bool, transID int64) (*domain.Transaction, error) {
	txn, err := uc.ledger.Get(ctx, transID)
	if err != nil {
		return nil, err
	}
	if !isAdmin && !txn.Involves(callerID) {
		return nil, xerrors.ErrUnauthorized
	}
	return txn, nil
}
