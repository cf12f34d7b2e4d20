package usecase

import (
	"context"

	"banking-service/internal/domain"
	publisher "banking-service/internal/pub"
	"banking-service/internal/repository"

	"go.uber.org/zap"
)

// TransferUsecase orchestrates immediate transfers, deposits and withdrawals
// against the account store and the ledger. It owns neither store; every
// multi-step mutation is all-or-nothing through the stores' atomic contracts.
type TransferUsecase struct {
	accounts  repository.AccountStore
	ledger    repository.TransactionLedger
	accountUC *AccountUsecase
	events    *publisher.TransactionEventPublisher
	log       *zap.Logger
}

func NewTransferUsecase(
	accounts repository.AccountStore,
	ledger repository.TransactionLedger,
	accountUC *AccountUsecase,
	events *publisher.TransactionEventPublisher,
	log *zap.Logger,
) *TransferUsecase {
	return &TransferUsecase{
		accounts:  accounts,
		ledger:    ledger,
		accountUC: accountUC,
		events:    events,
		log:       log,
	}
}

// SendTo moves amount from sender to receiver immediately. The balance
// movement and the Success record commit together: if recording fails the
// movement is reversed before the error is returned.
func (uc *TransferUsecase) SendTo(ctx context.Context, senderID, receiverID, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}
	if senderID == receiverID {
		return nil, domain.NewValidationError("cannot send money to your own account")
	}

	// Existence checks up front give NotFound instead of a half-diagnosed
	// transfer failure.
	if _, err := uc.accounts.Get(ctx, senderID); err != nil {
		return nil, err
	}
	if _, err := uc.accounts.Get(ctx, receiverID); err != nil {
		return nil, err
	}

	if err := uc.accounts.TransferBalance(ctx, senderID, receiverID, amount); err != nil {
		return nil, err
	}

	txn, err := uc.ledger.Record(ctx, senderID, receiverID, amount, domain.StatusSuccess)
	if err != nil {
		uc.compensate(ctx, receiverID, senderID, amount)
		return nil, err
	}

	uc.accountUC.InvalidateSnapshot(ctx, senderID, receiverID)
	uc.publish(ctx, "transaction.completed", txn)
	uc.log.Info("transfer completed",
		zap.Int64("trans_id", txn.TransID),
		zap.Int64("sender_id", senderID),
		zap.Int64("receiver_id", receiverID),
		zap.Int64("amount", amount),
	)
	return txn, nil
}

// Deposit credits the account from the external party and records a terminal
// Deposit movement.
func (uc *TransferUsecase) Deposit(ctx context.Context, accountID, amount int64) (*domain.Transaction, int64, error) {
	if amount <= 0 {
		return nil, 0, domain.NewValidationError("amount must be positive")
	}

	newBalance, err := uc.accounts.AdjustBalance(ctx, accountID, amount)
	if err != nil {
		return nil, 0, err
	}

	txn, err := uc.ledger.Record(ctx, domain.ExternalParty, accountID, amount, domain.StatusDeposit)
	if err != nil {
		if _, rbErr := uc.accounts.AdjustBalance(ctx, accountID, -amount); rbErr != nil {
			uc.log.Error("deposit rollback failed", zap.Int64("account_id", accountID), zap.Error(rbErr))
		}
		return nil, 0, err
	}

	uc.accountUC.InvalidateSnapshot(ctx, accountID)
	uc.publish(ctx, "deposit.completed", txn)
	return txn, newBalance, nil
}

// Withdraw debits the account toward the external party and records a
// terminal Withdraw movement.
func (uc *TransferUsecase) Withdraw(ctx context.Context, accountID, amount int64) (*domain.Transaction, int64, error) {
	if amount <= 0 {
		return nil, 0, domain.NewValidationError("amount must be positive")
	}

	newBalance, err := uc.accounts.AdjustBalance(ctx, accountID, -amount)
	if err != nil {
		return nil, 0, err
	}

	txn, err := uc.ledger.Record(ctx, accountID, domain.ExternalParty, amount, domain.StatusWithdraw)
	if err != nil {
		if _, rbErr := uc.accounts.AdjustBalance(ctx, accountID, amount); rbErr != nil {
			uc.log.Error("withdraw rollback failed", zap.Int64("account_id", accountID), zap.Error(rbErr))
		}
		return nil, 0, err
	}

	uc.accountUC.InvalidateSnapshot(ctx, accountID)
	uc.publish(ctx, "withdrawal.completed", txn)
	return txn, newBalance, nil
}

// compensate reverses a committed balance movement after a later step failed.
func (uc *TransferUsecase) compensate(ctx context.Context, fromID, toID, amount int64) {
	if err := uc.accounts.TransferBalance(ctx, fromID, toID, amount); err != nil {
		uc.log.Error("transfer compensation failed",
			zap.Int64("from_id", fromID),
			zap.Int64("to_id", toID),
			zap.Int64("amount", amount),
			zap.Error(err),
		)
	}
}

func (uc *TransferUsecase) publish(ctx context.Context, eventType string, txn *domain.Transaction) {
	_ = uc.events.Publish(ctx, &publisher.TransactionEvent{
		EventType:  eventType,
		TransID:    txn.TransID,
		SenderID:   txn.SenderID,
		ReceiverID: txn.ReceiverID,
		Amount:     txn.Amount,
		Status:     string(txn.Status),
	})
}
