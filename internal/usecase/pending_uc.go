package usecase

import (
	"context"

	"banking-service/internal/domain"
	publisher "banking-service/internal/pub"
	"banking-service/internal/repository"
	"banking-service/pkg/xerrors"

	"go.uber.org/zap"
)

// PendingUsecase drives the two-phase request-money workflow. A request is a
// Pending transaction where SenderID is the account being asked to pay and
// ReceiverID is the requester. Funds move only when the payer executes.
type PendingUsecase struct {
	accounts  repository.AccountStore
	ledger    repository.TransactionLedger
	accountUC *AccountUsecase
	events    *publisher.TransactionEventPublisher
	log       *zap.Logger
}

func NewPendingUsecase(
	accounts repository.AccountStore,
	ledger repository.TransactionLedger,
	accountUC *AccountUsecase,
	events *publisher.TransactionEventPublisher,
	log *zap.Logger,
) *PendingUsecase {
	return &PendingUsecase{
		accounts:  accounts,
		ledger:    ledger,
		accountUC: accountUC,
		events:    events,
		log:       log,
	}
}

// RequestFrom records a Pending transaction asking payerID to send amount to
// requesterID. No balances are touched and no balance check happens here; the
// payer's funds are only verified at execute time.
func (uc *PendingUsecase) RequestFrom(ctx context.Context, requesterID, payerID, amount int64) (*domain.Transaction, error) {
	if amount <= 0 {
		return nil, domain.NewValidationError("amount must be positive")
	}
	if requesterID == payerID {
		return nil, domain.NewValidationError("cannot request money from your own account")
	}
	if _, err := uc.accounts.Get(ctx, payerID); err != nil {
		return nil, err
	}
	if _, err := uc.accounts.Get(ctx, requesterID); err != nil {
		return nil, err
	}

	txn, err := uc.ledger.Record(ctx, payerID, requesterID, amount, domain.StatusPending)
	if err != nil {
		return nil, err
	}

	uc.publish(ctx, "request.created", txn)
	uc.log.Info("money request created",
		zap.Int64("trans_id", txn.TransID),
		zap.Int64("requester_id", requesterID),
		zap.Int64("payer_id", payerID),
		zap.Int64("amount", amount),
	)
	return txn, nil
}

// Execute settles a pending request on behalf of callerID, who must be the
// payer. The balance moves first, then the status flips Pending->Success with
// a compare-and-swap; if a concurrent resolution won the swap the movement is
// reversed. Exactly one of two racing execute/decline calls succeeds.
func (uc *PendingUsecase) Execute(ctx context.Context, callerID, transID int64) (*domain.Transaction, error) {
	txn, err := uc.ledger.Get(ctx, transID)
	if err != nil {
		return nil, err
	}
	if txn.SenderID != callerID {
		return nil, xerrors.ErrUnauthorized
	}
	if txn.Status != domain.StatusPending {
		return nil, xerrors.ErrInvalidTransition
	}

	if err := uc.accounts.TransferBalance(ctx, txn.SenderID, txn.ReceiverID, txn.Amount); err != nil {
		// A concurrent resolution may have settled the request between our
		// status check and the transfer. Report the resolution, not its
		// side effect on the payer's balance.
		if cur, getErr := uc.ledger.Get(ctx, transID); getErr == nil && cur.Status != domain.StatusPending {
			return nil, xerrors.ErrInvalidTransition
		}
		return nil, err
	}

	if err := uc.ledger.SetStatus(ctx, transID, domain.StatusSuccess); err != nil {
		// Lost the race to a concurrent execute or decline. The movement we
		// made must not stick.
		uc.reverse(ctx, txn)
		return nil, err
	}

	txn.Status = domain.StatusSuccess
	uc.accountUC.InvalidateSnapshot(ctx, txn.SenderID, txn.ReceiverID)
	uc.publish(ctx, "transaction.completed", txn)
	uc.log.Info("pending request executed", zap.Int64("trans_id", transID))
	return txn, nil
}

// Decline rejects a pending request. The payer may decline a request sent to
// them; admins may decline any pending transaction.
func (uc *PendingUsecase) Decline(ctx context.Context, callerID int64, isAdmin bool, transID int64) (*domain.Transaction, error) {
	txn, err := uc.ledger.Get(ctx, transID)
	if err != nil {
		return nil, err
	}
	if txn.SenderID != callerID && !isAdmin {
		return nil, xerrors.ErrUnauthorized
	}
	if txn.Status != domain.StatusPending {
		return nil, xerrors.ErrInvalidTransition
	}

	if err := uc.ledger.SetStatus(ctx, transID, domain.StatusDeclined); err != nil {
		return nil, err
	}

	txn.Status = domain.StatusDeclined
	uc.publish(ctx, "transaction.declined", txn)
	uc.log.Info("pending request declined", zap.Int64("trans_id", transID))
	return txn, nil
}

// Cancel lets the requester withdraw their own still-pending request. The
// record is removed rather than declined, matching a retraction rather than a
// refusal.
func (uc *PendingUsecase) Cancel(ctx context.Context, callerID, transID int64) error {
	txn, err := uc.ledger.Get(ctx, transID)
	if err != nil {
		return err
	}
	if txn.ReceiverID != callerID {
		return xerrors.ErrUnauthorized
	}
	if txn.Status != domain.StatusPending {
		return xerrors.ErrInvalidTransition
	}
	return uc.ledger.Delete(ctx, transID)
}

// ListSent returns pending requests the account created (it is the receiver
// of the eventual funds).
func (uc *PendingUsecase) ListSent(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	return uc.ledger.ListPendingByReceiver(ctx, accountID)
}

// ListReceived returns pending requests awaiting the account's action (it is
// the payer).
func (uc *PendingUsecase) ListReceived(ctx context.Context, accountID int64) ([]*domain.Transaction, error) {
	return uc.ledger.ListPendingBySender(ctx, accountID)
}

func (uc *PendingUsecase) reverse(ctx context.Context, txn *domain.Transaction) {
	if err := uc.accounts.TransferBalance(ctx, txn.ReceiverID, txn.SenderID, txn.Amount); err != nil {
		// Balances no longer reconcile with the ledger; an operator has to
		// step in.
		uc.log.DPanic("execute reversal failed, balances inconsistent",
			zap.Int64("trans_id", txn.TransID),
			zap.Int64("payer_id", txn.SenderID),
			zap.Int64("requester_id", txn.ReceiverID),
			zap.Int64("amount", txn.Amount),
			zap.Error(err),
		)
		uc.publish(ctx, "transaction.reversal_failed", txn)
	}
}

func (uc *PendingUsecase) publish(ctx context.Context, eventType string, txn *domain.Transaction) {
	_ = uc.events.Publish(ctx, &publisher.TransactionEvent{
		EventType:  eventType,
		TransID:    txn.TransID,
		SenderID:   txn.SenderID,
		ReceiverID: txn.ReceiverID,
		Amount:     txn.Amount,
		Status:     string(txn.Status),
	})
}
