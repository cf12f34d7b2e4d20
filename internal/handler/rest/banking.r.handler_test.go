package hrest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"banking-service/internal/domain"
	"banking-service/internal/repository/memstore"
	"banking-service/internal/usecase"
	"banking-service/pkg/jwtutil"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type testEnv struct {
	router    chi.Router
	accountUC *usecase.AccountUsecase
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	accounts := memstore.NewAccountStore()
	ledger := memstore.NewLedger()
	log := zap.NewNop()
	tokens := jwtutil.NewManager("test-secret", time.Hour)

	accountUC := usecase.NewAccountUsecase(accounts, nil, tokens, log)
	transferUC := usecase.NewTransferUsecase(accounts, ledger, accountUC, nil, log)
	pendingUC := usecase.NewPendingUsecase(accounts, ledger, accountUC, nil, log)
	statementUC := usecase.NewStatementUsecase(ledger)
	adminUC := usecase.NewAdminUsecase(accounts, ledger, accountUC, log)

	h := NewBankingRestHandler(accountUC, transferUC, pendingUC, statementUC, adminUC, tokens, log)

	r := chi.NewRouter()
	h.RegisterRoutes(r)
	return &testEnv{router: r, accountUC: accountUC}
}

type envelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)

	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env), "body: %s", rec.Body.String())
	return rec.Code, env
}

type accountJSON struct {
	AccountID      int64  `json:"accountId"`
	AccountNumber  string `json:"accountNumber"`
	HolderName     string `json:"accountHolderName"`
	Balance        int64  `json:"balance"`
	BalanceDecimal string `json:"balanceDecimal"`
	Role           string `json:"role"`
}

type txnJSON struct {
	TransID       int64  `json:"transId"`
	SenderID      int64  `json:"senderId"`
	ReceiverID    int64  `json:"receiverId"`
	Amount        int64  `json:"amount"`
	AmountDecimal string `json:"amountDecimal"`
	Status        string `json:"status"`
}

// register opens a verified account and returns it with a session token.
func (e *testEnv) register(t *testing.T, name, email string) (accountJSON, string) {
	t.Helper()

	code, env := e.do(t, http.MethodPost, "/bank", "", map[string]any{
		"accountHolderName":    name,
		"accountHolderAddress": "1 Test Street",
		"accountHolderEmail":   email,
		"password":             "secret-pw",
	})
	require.Equal(t, http.StatusCreated, code, "message: %s", env.Message)

	var created struct {
		Account           accountJSON `json:"account"`
		VerificationToken string      `json:"verificationToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	require.NotEmpty(t, created.VerificationToken)

	code, _ = e.do(t, http.MethodGet, "/bank/verify?token="+created.VerificationToken, "", nil)
	require.Equal(t, http.StatusOK, code)

	code, env = e.do(t, http.MethodPost, "/bank/login", "", map[string]any{
		"email":    email,
		"password": "secret-pw",
	})
	require.Equal(t, http.StatusOK, code)

	var login struct {
		Token   string      `json:"token"`
		Account accountJSON `json:"account"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	require.NotEmpty(t, login.Token)
	return login.Account, login.Token
}

func TestRegisterVerifyLoginFlow(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodPost, "/bank", "", map[string]any{
		"accountHolderName":    "Alice",
		"accountHolderAddress": "1 Main",
		"accountHolderEmail":   "alice@example.com",
		"password":             "secret-pw",
		"balance":              "120.50",
	})
	require.Equal(t, http.StatusCreated, code)

	var created struct {
		Account           accountJSON `json:"account"`
		VerificationToken string      `json:"verificationToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.Equal(t, int64(12050), created.Account.Balance)
	assert.Equal(t, "120.50", created.Account.BalanceDecimal)
	assert.Equal(t, "user", created.Account.Role)

	// Login is gated until the email is verified.
	code, _ = e.do(t, http.MethodPost, "/bank/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "secret-pw",
	})
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(t, http.MethodGet, "/bank/verify?token="+created.VerificationToken, "", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodPost, "/bank/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.do(t, http.MethodPost, "/bank/login", "", map[string]any{
		"email":    "alice@example.com",
		"password": "secret-pw",
	})
	assert.Equal(t, http.StatusOK, code)
}

func TestSessionTokenIsNotAVerificationToken(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.register(t, "Alice", "alice@example.com")

	code, _ := e.do(t, http.MethodGet, "/bank/verify?token="+token, "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestVerificationTokenIsNotASessionToken(t *testing.T) {
	e := newTestEnv(t)

	code, env := e.do(t, http.MethodPost, "/bank", "", map[string]any{
		"accountHolderName":    "Alice",
		"accountHolderAddress": "1 Main",
		"accountHolderEmail":   "alice@example.com",
		"password":             "secret-pw",
	})
	require.Equal(t, http.StatusCreated, code)

	var created struct {
		Account           accountJSON `json:"account"`
		VerificationToken string      `json:"verificationToken"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &created))

	// The link token must not open a session before the email is verified.
	code, _ = e.do(t, http.MethodGet, "/bank/account", created.VerificationToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.do(t, http.MethodPost, "/bank/deposit", created.VerificationToken, map[string]any{"amount": "500.00"})
	assert.Equal(t, http.StatusUnauthorized, code)

	// Nor after: only the login token carries a session role.
	code, _ = e.do(t, http.MethodGet, "/bank/verify?token="+created.VerificationToken, "", nil)
	require.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodGet, "/bank/account", created.VerificationToken, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestProtectedRoutesNeedToken(t *testing.T) {
	e := newTestEnv(t)

	code, _ := e.do(t, http.MethodGet, "/bank/account", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, _ = e.do(t, http.MethodGet, "/bank/account", "bogus-token", nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}

func TestDepositWithdrawSendFlow(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.register(t, "Alice", "alice@example.com")
	bob, _ := e.register(t, "Bob", "bob@example.com")

	code, env := e.do(t, http.MethodPost, "/bank/deposit", aliceToken, map[string]any{"amount": "500.00"})
	require.Equal(t, http.StatusOK, code)
	var move struct {
		Transaction txnJSON `json:"transaction"`
		Balance     string  `json:"balance"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &move))
	assert.Equal(t, "500.00", move.Balance)
	assert.Equal(t, "Deposit", move.Transaction.Status)

	code, env = e.do(t, http.MethodPost, "/bank/withdraw", aliceToken, map[string]any{"amount": "100.25"})
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &move))
	assert.Equal(t, "399.75", move.Balance)

	// Overdraw is refused.
	code, _ = e.do(t, http.MethodPost, "/bank/withdraw", aliceToken, map[string]any{"amount": "1000.00"})
	assert.Equal(t, http.StatusUnprocessableEntity, code)

	// Fractional paise are refused at the boundary.
	code, _ = e.do(t, http.MethodPost, "/bank/deposit", aliceToken, map[string]any{"amount": "1.999"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = e.do(t, http.MethodPut, "/bank/sendTo", aliceToken, map[string]any{
		"receiverId": bob.AccountID,
		"amount":     "99.75",
	})
	require.Equal(t, http.StatusOK, code)
	var txn txnJSON
	require.NoError(t, json.Unmarshal(env.Data, &txn))
	assert.Equal(t, "Success", txn.Status)
	assert.Equal(t, "99.75", txn.AmountDecimal)

	code, env = e.do(t, http.MethodGet, "/bank/account", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	var acc accountJSON
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.Equal(t, "300.00", acc.BalanceDecimal)
}

func TestRequestMoneyFlow(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceToken := e.register(t, "Alice", "alice@example.com")
	bob, bobToken := e.register(t, "Bob", "bob@example.com")

	_, env := e.do(t, http.MethodPost, "/bank/deposit", bobToken, map[string]any{"amount": "100.00"})
	_ = env

	code, env := e.do(t, http.MethodPut, "/bank/accounts/requestFrom", aliceToken, map[string]any{
		"accountId": bob.AccountID,
		"amount":    "60.00",
	})
	require.Equal(t, http.StatusCreated, code)
	var req txnJSON
	require.NoError(t, json.Unmarshal(env.Data, &req))
	assert.Equal(t, "Pending", req.Status)
	assert.Equal(t, bob.AccountID, req.SenderID)
	assert.Equal(t, alice.AccountID, req.ReceiverID)

	// The request shows up on both sides.
	code, env = e.do(t, http.MethodGet, "/bank/transactions/pending/sent", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	var list []txnJSON
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)

	code, env = e.do(t, http.MethodGet, "/bank/transactions/pending/received", bobToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	require.Len(t, list, 1)

	// The requester cannot execute, the payer can.
	code, _ = e.do(t, http.MethodPut, "/bank/transactions/pending/execute", aliceToken, map[string]any{"transId": req.TransID})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = e.do(t, http.MethodPut, "/bank/transactions/pending/execute", bobToken, map[string]any{"transId": req.TransID})
	require.Equal(t, http.StatusOK, code)
	var executed txnJSON
	require.NoError(t, json.Unmarshal(env.Data, &executed))
	assert.Equal(t, "Success", executed.Status)

	// A second execute hits the already-resolved guard.
	code, _ = e.do(t, http.MethodPut, "/bank/transactions/pending/execute", bobToken, map[string]any{"transId": req.TransID})
	assert.Equal(t, http.StatusConflict, code)

	code, env = e.do(t, http.MethodGet, "/bank/account", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	var acc accountJSON
	require.NoError(t, json.Unmarshal(env.Data, &acc))
	assert.Equal(t, "60.00", acc.BalanceDecimal)
}

func TestRequesterCancelsOwnPending(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.register(t, "Alice", "alice@example.com")
	bob, bobToken := e.register(t, "Bob", "bob@example.com")

	code, env := e.do(t, http.MethodPut, "/bank/accounts/requestFrom", aliceToken, map[string]any{
		"accountId": bob.AccountID,
		"amount":    "10.00",
	})
	require.Equal(t, http.StatusCreated, code)
	var req txnJSON
	require.NoError(t, json.Unmarshal(env.Data, &req))

	// The payer cannot cancel through the delete route.
	code, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/bank/transaction/%d", req.TransID), bobToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/bank/transaction/%d", req.TransID), aliceToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodGet, fmt.Sprintf("/bank/transactions/%d", req.TransID), aliceToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestEmailChangeRequiresReverification(t *testing.T) {
	e := newTestEnv(t)
	_, token := e.register(t, "Alice", "alice@example.com")

	code, _ := e.do(t, http.MethodPut, "/bank/account/profile", token, map[string]any{
		"field": "holder_email",
		"value": "   ",
	})
	assert.Equal(t, http.StatusBadRequest, code)

	code, _ = e.do(t, http.MethodPut, "/bank/account/profile", token, map[string]any{
		"field": "holder_email",
		"value": "alice@new.example.com",
	})
	require.Equal(t, http.StatusOK, code)

	// The new address starts unverified, so login is gated again.
	code, _ = e.do(t, http.MethodPost, "/bank/login", "", map[string]any{
		"email":    "alice@new.example.com",
		"password": "secret-pw",
	})
	assert.Equal(t, http.StatusForbidden, code)
}

func TestTransactionFilters(t *testing.T) {
	e := newTestEnv(t)
	_, aliceToken := e.register(t, "Alice", "alice@example.com")
	bob, _ := e.register(t, "Bob", "bob@example.com")

	_, _ = e.do(t, http.MethodPost, "/bank/deposit", aliceToken, map[string]any{"amount": "100.00"})
	_, _ = e.do(t, http.MethodPut, "/bank/sendTo", aliceToken, map[string]any{
		"receiverId": bob.AccountID,
		"amount":     "25.00",
	})
	_, _ = e.do(t, http.MethodPut, "/bank/accounts/requestFrom", aliceToken, map[string]any{
		"accountId": bob.AccountID,
		"amount":    "5.00",
	})

	code, env := e.do(t, http.MethodGet, "/bank/transactions", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	var list []txnJSON
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 3)

	code, env = e.do(t, http.MethodGet, "/bank/transactions?status=Pending&status=Success", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 2)

	code, env = e.do(t, http.MethodGet, "/bank/transactions?sent_only=true", aliceToken, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Len(t, list, 1)
	assert.Equal(t, "Success", list[0].Status)

	code, _ = e.do(t, http.MethodGet, "/bank/transactions?trans_id=abc", aliceToken, nil)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestAccountByIDSelfOrAdmin(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceToken := e.register(t, "Alice", "alice@example.com")
	bob, _ := e.register(t, "Bob", "bob@example.com")
	_, adminToken := e.registerAdmin(t)

	code, _ := e.do(t, http.MethodGet, fmt.Sprintf("/bank/accounts/%d", alice.AccountID), aliceToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodGet, fmt.Sprintf("/bank/accounts/%d", bob.AccountID), aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, _ = e.do(t, http.MethodGet, fmt.Sprintf("/bank/accounts/%d", bob.AccountID), adminToken, nil)
	assert.Equal(t, http.StatusOK, code)
}

func TestAdminSurface(t *testing.T) {
	e := newTestEnv(t)
	alice, aliceToken := e.register(t, "Alice", "alice@example.com")
	_, adminToken := e.registerAdmin(t)

	// A plain holder is kept out.
	code, _ := e.do(t, http.MethodGet, "/bank/admin/accounts", aliceToken, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env := e.do(t, http.MethodGet, "/bank/admin/accounts", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var accts []accountJSON
	require.NoError(t, json.Unmarshal(env.Data, &accts))
	assert.Len(t, accts, 2)

	code, env = e.do(t, http.MethodGet, "/bank/isAdmin", adminToken, nil)
	require.Equal(t, http.StatusOK, code)
	var flag struct {
		IsAdmin bool `json:"isAdmin"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &flag))
	assert.True(t, flag.IsAdmin)

	code, _ = e.do(t, http.MethodGet, fmt.Sprintf("/bank/admin/accounts/%d", alice.AccountID), adminToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodDelete, fmt.Sprintf("/bank/admin/accounts/%d", alice.AccountID), adminToken, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = e.do(t, http.MethodGet, fmt.Sprintf("/bank/admin/accounts/%d", alice.AccountID), adminToken, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

// registerAdmin opens an admin account directly through the usecase layer and
// logs it in over HTTP. Admin accounts are never self-service.
func (e *testEnv) registerAdmin(t *testing.T) (accountJSON, string) {
	t.Helper()

	acc, err := e.accountUC.CreateAccount(context.Background(), usecase.CreateAccountInput{
		HolderName:    "Operator",
		HolderAddress: "Head Office",
		HolderEmail:   "ops@example.com",
		Password:      "secret-pw",
		Role:          domain.RoleAdmin,
	})
	require.NoError(t, err)
	require.NoError(t, e.accountUC.MarkEmailVerified(context.Background(), acc.ID))

	code, env := e.do(t, http.MethodPost, "/bank/login", "", map[string]any{
		"email":    "ops@example.com",
		"password": "secret-pw",
	})
	require.Equal(t, http.StatusOK, code)

	var login struct {
		Token   string      `json:"token"`
		Account accountJSON `json:"account"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &login))
	return login.Account, login.Token
}
