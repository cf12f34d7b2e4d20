package domain

import (
	"fmt"
	"time"

	"banking-service/pkg/xerrors"
)

// TransactionStatus is the lifecycle state of a recorded money movement.
// Deposit and Withdraw are created already terminal; Pending resolves to
// exactly one of Success or Declined and never changes afterwards.
//
// The enumeration deliberately mixes movement kind with lifecycle state:
// it is the wire-visible vocabulary the clients of this service filter on.
type TransactionStatus string

const (
	StatusPending  TransactionStatus = "Pending"
	StatusSuccess  TransactionStatus = "Success"
	StatusDeclined TransactionStatus = "Declined"
	StatusDeposit  TransactionStatus = "Deposit"
	StatusWithdraw TransactionStatus = "Withdraw"
)

func (s TransactionStatus) Valid() bool {
	switch s {
	case StatusPending, StatusSuccess, StatusDeclined, StatusDeposit, StatusWithdraw:
		return true
	}
	return false
}

// Terminal reports whether the status can never change again.
func (s TransactionStatus) Terminal() bool {
	return s != StatusPending
}

// ExternalParty is the sentinel account id standing in for the non-account
// side of a deposit or withdrawal.
const ExternalParty int64 = 0

// TimestampLayout is the human-readable format the query layer matches
// month/substring filters against.
const TimestampLayout = "2006-01-02 15:04:05"

// Transaction represents one recorded money movement.
type Transaction struct {
	TransID    int64             `json:"transId"`
	SenderID   int64             `json:"senderId"`
	ReceiverID int64             `json:"receiverId"`
	Amount     int64             `json:"amount"`
	Status     TransactionStatus `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
}

// Involves reports whether the account appears on either side.
func (t *Transaction) Involves(accountID int64) bool {
	return t.SenderID == accountID || t.ReceiverID == accountID
}

// FormattedTimestamp renders the creation time the way clients display it.
func (t *Transaction) FormattedTimestamp() string {
	return t.Timestamp.Format(TimestampLayout)
}

// NewValidationError wraps xerrors.ErrValidation with a reason.
func NewValidationError(msg string) error {
	return fmt.Errorf("%w: %s", xerrors.ErrValidation, msg)
}
