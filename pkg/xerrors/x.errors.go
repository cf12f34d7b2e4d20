package xerrors

import (
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
)

// Error taxonomy of the ledger core. Every failure the usecase layer returns
// wraps exactly one of these sentinels so callers can map it to a transport
// status without string matching.
var (
	ErrValidation        = errors.New("invalid input")
	ErrNotFound          = errors.New("not found")
	ErrUnauthorized      = errors.New("unauthorized")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrConflict          = errors.New("already exists")
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrLockTimeout is retryable: the per-account critical section could not
	// be entered within the configured bound.
	ErrLockTimeout = errors.New("lock acquisition timed out")

	ErrEmailNotVerified   = errors.New("email not verified")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

func ParsePGErrorCode(err error) string {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code // e.g. 23505 for unique_violation
	}
	return "unknown"
}

// IsUniqueViolation reports whether err is a postgres duplicate-key error.
func IsUniqueViolation(err error) bool {
	return ParsePGErrorCode(err) == "23505"
}
