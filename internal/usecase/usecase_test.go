package usecase

import (
	"context"
	"testing"
	"time"

	"banking-service/internal/domain"
	"banking-service/internal/repository/memstore"
	"banking-service/pkg/jwtutil"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fixture wires the full usecase stack over in-memory stores, with no redis
// and no kafka.
type fixture struct {
	accounts  *memstore.AccountStore
	ledger    *memstore.Ledger
	accountUC *AccountUsecase
	transfer  *TransferUsecase
	pending   *PendingUsecase
	statement *StatementUsecase
	admin     *AdminUsecase
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	accounts := memstore.NewAccountStore()
	ledger := memstore.NewLedger()
	log := zap.NewNop()
	tokens := jwtutil.NewManager("test-secret", time.Hour)

	accountUC := NewAccountUsecase(accounts, nil, tokens, log)
	return &fixture{
		accounts:  accounts,
		ledger:    ledger,
		accountUC: accountUC,
		transfer:  NewTransferUsecase(accounts, ledger, accountUC, nil, log),
		pending:   NewPendingUsecase(accounts, ledger, accountUC, nil, log),
		statement: NewStatementUsecase(ledger),
		admin:     NewAdminUsecase(accounts, ledger, accountUC, log),
	}
}

func (f *fixture) open(t *testing.T, email string, balance int64) *domain.Account {
	t.Helper()
	acc, err := f.accountUC.CreateAccount(context.Background(), CreateAccountInput{
		HolderName:     "Test Holder",
		HolderAddress:  "1 Test Street",
		HolderEmail:    email,
		Password:       "secret-pw",
		InitialBalance: balance,
	})
	require.NoError(t, err)
	require.NoError(t, f.accountUC.MarkEmailVerified(context.Background(), acc.ID))
	return acc
}

func (f *fixture) balance(t *testing.T, id int64) int64 {
	t.Helper()
	acc, err := f.accountUC.GetAccount(context.Background(), id)
	require.NoError(t, err)
	return acc.Balance
}
