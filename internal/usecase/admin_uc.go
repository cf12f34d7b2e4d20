package usecase

import (
	"context"

	"banking-service/internal/domain"
	"banking-service/internal/repository"

	"go.uber.org/zap"
)

// AdminUsecase exposes the operator surface: unrestricted reads over
// accounts and the ledger, plus destructive maintenance operations.
// Authorization happens at the middleware layer; every method here assumes
// the caller already proved the admin role.
type AdminUsecase struct {
	accounts  repository.AccountStore
	ledger    repository.TransactionLedger
	accountUC *AccountUsecase
	log       *zap.Logger
}

func NewAdminUsecase(
	accounts repository.AccountStore,
	ledger repository.TransactionLedger,
	accountUC *AccountUsecase,
	log *zap.Logger,
) *AdminUsecase {
	return &AdminUsecase{
		accounts:  accounts,
		ledger:    ledger,
		accountUC: accountUC,
		log:       log,
	}
}

func (uc *AdminUsecase) ListAccounts(ctx context.Context) ([]*domain.Account, error) {
	return uc.accounts.List(ctx)
}

func (uc *AdminUsecase) GetAccount(ctx context.Context, id int64) (*domain.Account, error) {
	return uc.accounts.Get(ctx, id)
}

func (uc *AdminUsecase) ListTransactions(ctx context.Context, filter domain.TransactionFilter) ([]*domain.Transaction, error) {
	snapshot, err := uc.ledger.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	return filter.Collect(snapshot), nil
}

func (uc *AdminUsecase) ListPending(ctx context.Context) ([]*domain.Transaction, error) {
	return uc.ledger.ListPending(ctx)
}

func (uc *AdminUsecase) TransactionsForAccount(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	if _, err := uc.accounts.Get(ctx, accountID); err != nil {
		return nil, err
	}
	return uc.ledger.ListByAccount(ctx, accountID)
}

// DeleteAccount closes an account. Pending requests the account is party to
// are declined first so no counterparty is left waiting on a dead account;
// settled history stays in the ledger.
func (uc *AdminUsecase) DeleteAccount(ctx context.Context, id int64) error {
	acct, err := uc.accounts.Get(ctx, id)
	if err != nil {
		return err
	}
	if acct.IsAdmin() {
		return domain.NewValidationError("cannot delete an admin account")
	}

	if err := uc.declinePendingFor(ctx, id); err != nil {
		return err
	}

	if err := uc.accounts.Delete(ctx, id); err != nil {
		return err
	}
	uc.accountUC.InvalidateSnapshot(ctx, id)
	uc.log.Info("account deleted", zap.Int64("account_id", id))
	return nil
}

// DeleteTransaction removes a ledger record outright. Pending records are the
// expected target; removing a settled record does not touch balances.
func (uc *AdminUsecase) DeleteTransaction(ctx context.Context, transID int64) error {
	if _, err := uc.ledger.Get(ctx, transID); err != nil {
		return err
	}
	if err := uc.ledger.Delete(ctx, transID); err != nil {
		return err
	}
	uc.log.Info("transaction deleted", zap.Int64("trans_id", transID))
	return nil
}

func (uc *AdminUsecase) declinePendingFor(ctx context.Context, accountID int64) error {
	pending, err := uc.ledger.ListPending(ctx)
	if err != nil {
		return err
	}
	for _, txn := range pending {
		if !txn.Involves(accountID) {
			continue
		}
		if err := uc.ledger.SetStatus(ctx, txn.TransID, domain.StatusDeclined); err != nil {
			// A racing resolution already settled it; nothing left to do
			// for this record.
			continue
		}
	}
	return nil
}
