package hrest

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"banking-service/internal/domain"
	appmw "banking-service/internal/middleware"
	"banking-service/internal/usecase"
	"banking-service/pkg/jwtutil"
	"banking-service/pkg/response"
	"banking-service/pkg/xerrors"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BankingRestHandler is the HTTP facade over the ledger core. It owns no
// business rules: it decodes, delegates to a usecase, and encodes.
type BankingRestHandler struct {
	accountUC   *usecase.AccountUsecase
	transferUC  *usecase.TransferUsecase
	pendingUC   *usecase.PendingUsecase
	statementUC *usecase.StatementUsecase
	adminUC     *usecase.AdminUsecase
	tokens      *jwtutil.Manager
	log         *zap.Logger
}

func NewBankingRestHandler(
	accountUC *usecase.AccountUsecase,
	transferUC *usecase.TransferUsecase,
	pendingUC *usecase.PendingUsecase,
	statementUC *usecase.StatementUsecase,
	adminUC *usecase.AdminUsecase,
	tokens *jwtutil.Manager,
	log *zap.Logger,
) *BankingRestHandler {
	return &BankingRestHandler{
		accountUC:   accountUC,
		transferUC:  transferUC,
		pendingUC:   pendingUC,
		statementUC: statementUC,
		adminUC:     adminUC,
		tokens:      tokens,
		log:         log,
	}
}

// RegisterRoutes mounts the full surface under /bank.
func (h *BankingRestHandler) RegisterRoutes(r chi.Router) {
	r.Route("/bank", func(r chi.Router) {
		// Public surface.
		r.Post("/", h.CreateAccount)
		r.Post("/login", h.Login)
		r.Get("/verify", h.VerifyEmail)

		// Holder surface.
		r.Group(func(r chi.Router) {
			r.Use(appmw.Authenticator(h.tokens))

			r.Get("/account", h.OwnAccount)
			r.Get("/accounts/{accountId}", h.GetAccountByID)
			r.Get("/isAdmin", h.IsAdmin)
			r.Put("/account/profile", h.UpdateProfile)
			r.Put("/account/password", h.ChangePassword)

			r.Post("/deposit", h.Deposit)
			r.Post("/withdraw", h.Withdraw)
			r.Put("/sendTo", h.SendTo)

			r.Put("/accounts/requestFrom", h.RequestFrom)
			r.Put("/transactions/pending/execute", h.ExecutePending)
			r.Put("/transactions/pending/decline", h.DeclinePending)
			r.Get("/transactions/pending/sent", h.PendingSent)
			r.Get("/transactions/pending/received", h.PendingReceived)

			r.Get("/transactions", h.OwnTransactions)
			r.Get("/transactions/{transId}", h.GetTransaction)
			r.Delete("/transaction/{transId}", h.DeleteTransaction)

			// Operator surface.
			r.Route("/admin", func(r chi.Router) {
				r.Use(appmw.RequireAdmin)

				r.Get("/accounts", h.AdminListAccounts)
				r.Get("/accounts/{accountId}", h.AdminGetAccount)
				r.Get("/accounts/{accountId}/transactions", h.AdminAccountTransactions)
				r.Put("/accounts/{accountId}/verify", h.AdminVerifyAccount)
				r.Delete("/accounts/{accountId}", h.AdminDeleteAccount)

				r.Get("/transactions", h.AdminListTransactions)
				r.Get("/transactions/pending", h.AdminListPending)
			})
		})
	})
}

// emailVerifyRole marks tokens minted for the verification link rather than
// for a session. The authenticator rejects this role, so a link token cannot
// be replayed as a Bearer credential.
const emailVerifyRole = "email-verify"

type accountView struct {
	*domain.Account
	BalanceDecimal string `json:"balanceDecimal"`
}

func newAccountView(a *domain.Account) accountView {
	return accountView{Account: a, BalanceDecimal: domain.FormatAmount(a.Balance)}
}

type transactionView struct {
	*domain.Transaction
	AmountDecimal string `json:"amountDecimal"`
	Time          string `json:"time"`
}

func newTransactionView(t *domain.Transaction) transactionView {
	return transactionView{
		Transaction:   t,
		AmountDecimal: domain.FormatAmount(t.Amount),
		Time:          t.FormattedTimestamp(),
	}
}

func newTransactionViews(ts []*domain.Transaction) []transactionView {
	out := make([]transactionView, 0, len(ts))
	for _, t := range ts {
		out = append(out, newTransactionView(t))
	}
	return out
}

func decode(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return domain.NewValidationError("invalid request body")
	}
	return nil
}

func identity(r *http.Request) appmw.Identity {
	id, _ := appmw.IdentityFrom(r.Context())
	return id
}

func pathID(r *http.Request, param string) (int64, error) {
	raw := chi.URLParam(r, param)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, domain.NewValidationError(param + " must be a positive integer")
	}
	return id, nil
}

// writeError maps the core's error taxonomy to transport status codes.
func (h *BankingRestHandler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, xerrors.ErrValidation):
		response.Error(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, xerrors.ErrInvalidCredentials):
		response.Error(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, xerrors.ErrEmailNotVerified):
		response.Error(w, http.StatusForbidden, "email address not verified")
	case errors.Is(err, xerrors.ErrUnauthorized):
		response.Error(w, http.StatusForbidden, "not allowed")
	case errors.Is(err, xerrors.ErrNotFound):
		response.Error(w, http.StatusNotFound, "not found")
	case errors.Is(err, xerrors.ErrConflict):
		response.Error(w, http.StatusConflict, err.Error())
	case errors.Is(err, xerrors.ErrInvalidTransition):
		response.Error(w, http.StatusConflict, "transaction already resolved")
	case errors.Is(err, xerrors.ErrInsufficientFunds):
		response.Error(w, http.StatusUnprocessableEntity, "insufficient funds")
	case errors.Is(err, xerrors.ErrLockTimeout):
		response.ErrorRetryAfter(w, http.StatusServiceUnavailable, "account busy, retry", 1)
	default:
		h.log.Error("request failed", zap.Error(err))
		response.Error(w, http.StatusInternalServerError, "internal error")
	}
}

type createAccountJSON struct {
	HolderName    string `json:"accountHolderName"`
	HolderAddress string `json:"accountHolderAddress"`
	HolderEmail   string `json:"accountHolderEmail"`
	Password      string `json:"password"`
	Balance       string `json:"balance"`
}

func (h *BankingRestHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var in createAccountJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	var initial int64
	if in.Balance != "" {
		minor, err := domain.ParseAmount(in.Balance)
		if err != nil {
			h.writeError(w, err)
			return
		}
		if minor < 0 {
			h.writeError(w, domain.NewValidationError("initial balance cannot be negative"))
			return
		}
		initial = minor
	}

	acc, err := h.accountUC.CreateAccount(r.Context(), usecase.CreateAccountInput{
		HolderName:     in.HolderName,
		HolderAddress:  in.HolderAddress,
		HolderEmail:    in.HolderEmail,
		Password:       in.Password,
		InitialBalance: initial,
		Role:           domain.RoleUser,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}

	// Stand-in for the verification mail: the link token is returned to the
	// caller directly.
	verifyToken, err := h.tokens.Mint(acc.ID, emailVerifyRole)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusCreated, map[string]any{
		"account":           newAccountView(acc),
		"verificationToken": verifyToken,
	})
}

type loginJSON struct {
	AccountID int64  `json:"accountId"`
	Email     string `json:"email"`
	Password  string `json:"password"`
}

func (h *BankingRestHandler) Login(w http.ResponseWriter, r *http.Request) {
	var in loginJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	token, acc, err := h.accountUC.Authenticate(r.Context(), in.AccountID, in.Email, in.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}

	response.JSON(w, http.StatusOK, map[string]any{
		"token":   token,
		"account": newAccountView(acc),
	})
}

func (h *BankingRestHandler) VerifyEmail(w http.ResponseWriter, r *http.Request) {
	raw := r.URL.Query().Get("token")
	if raw == "" {
		h.writeError(w, domain.NewValidationError("token query parameter is required"))
		return
	}

	claims, err := h.tokens.Verify(raw)
	if err != nil || claims.Role != emailVerifyRole {
		response.Error(w, http.StatusUnauthorized, "invalid verification token")
		return
	}

	if err := h.accountUC.MarkEmailVerified(r.Context(), claims.AccountID); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{"verified": true})
}

func (h *BankingRestHandler) OwnAccount(w http.ResponseWriter, r *http.Request) {
	id := identity(r)
	acc, err := h.accountUC.GetAccount(r.Context(), id.AccountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newAccountView(acc))
}

// GetAccountByID serves an account snapshot to its holder or to an admin.
func (h *BankingRestHandler) GetAccountByID(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := identity(r)
	if accountID != id.AccountID && !id.IsAdmin() {
		response.Error(w, http.StatusForbidden, "not allowed")
		return
	}

	acc, err := h.accountUC.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newAccountView(acc))
}

func (h *BankingRestHandler) IsAdmin(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, http.StatusOK, map[string]bool{"isAdmin": identity(r).IsAdmin()})
}

type updateProfileJSON struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

func (h *BankingRestHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var in updateProfileJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	id := identity(r)
	if err := h.accountUC.UpdateProfile(r.Context(), id.AccountID, domain.ProfileField(in.Field), in.Value); err != nil {
		h.writeError(w, err)
		return
	}

	acc, err := h.accountUC.GetAccount(r.Context(), id.AccountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newAccountView(acc))
}

type changePasswordJSON struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

func (h *BankingRestHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var in changePasswordJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.accountUC.ChangePassword(r.Context(), identity(r).AccountID, in.CurrentPassword, in.NewPassword); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"updated": true})
}

type amountJSON struct {
	Amount string `json:"amount"`
}

func (h *BankingRestHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	var in amountJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	minor, err := domain.ParsePositiveAmount(in.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	txn, balance, err := h.transferUC.Deposit(r.Context(), identity(r).AccountID, minor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"transaction": newTransactionView(txn),
		"balance":     domain.FormatAmount(balance),
	})
}

func (h *BankingRestHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	var in amountJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	minor, err := domain.ParsePositiveAmount(in.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	txn, balance, err := h.transferUC.Withdraw(r.Context(), identity(r).AccountID, minor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]any{
		"transaction": newTransactionView(txn),
		"balance":     domain.FormatAmount(balance),
	})
}

type sendToJSON struct {
	ReceiverID int64  `json:"receiverId"`
	Amount     string `json:"amount"`
}

func (h *BankingRestHandler) SendTo(w http.ResponseWriter, r *http.Request) {
	var in sendToJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	minor, err := domain.ParsePositiveAmount(in.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	txn, err := h.transferUC.SendTo(r.Context(), identity(r).AccountID, in.ReceiverID, minor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionView(txn))
}

type requestFromJSON struct {
	AccountID int64  `json:"accountId"`
	Amount    string `json:"amount"`
}

func (h *BankingRestHandler) RequestFrom(w http.ResponseWriter, r *http.Request) {
	var in requestFromJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}
	minor, err := domain.ParsePositiveAmount(in.Amount)
	if err != nil {
		h.writeError(w, err)
		return
	}

	txn, err := h.pendingUC.RequestFrom(r.Context(), identity(r).AccountID, in.AccountID, minor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusCreated, newTransactionView(txn))
}

type transIDJSON struct {
	TransID int64 `json:"transId"`
}

func (h *BankingRestHandler) ExecutePending(w http.ResponseWriter, r *http.Request) {
	var in transIDJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	txn, err := h.pendingUC.Execute(r.Context(), identity(r).AccountID, in.TransID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionView(txn))
}

func (h *BankingRestHandler) DeclinePending(w http.ResponseWriter, r *http.Request) {
	var in transIDJSON
	if err := decode(r, &in); err != nil {
		h.writeError(w, err)
		return
	}

	id := identity(r)
	txn, err := h.pendingUC.Decline(r.Context(), id.AccountID, id.IsAdmin(), in.TransID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionView(txn))
}

func (h *BankingRestHandler) PendingSent(w http.ResponseWriter, r *http.Request) {
	txns, err := h.pendingUC.ListSent(r.Context(), identity(r).AccountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionViews(txns))
}

func (h *BankingRestHandler) PendingReceived(w http.ResponseWriter, r *http.Request) {
	txns, err := h.pendingUC.ListReceived(r.Context(), identity(r).AccountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionViews(txns))
}

// filterFromQuery builds the statement predicate from query parameters.
// Unknown parameters are ignored; malformed values of known parameters fail.
func filterFromQuery(r *http.Request) (domain.TransactionFilter, error) {
	var f domain.TransactionFilter
	q := r.URL.Query()

	parse := func(key string) (*int64, error) {
		raw := q.Get(key)
		if raw == "" {
			return nil, nil
		}
		v, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, domain.NewValidationError(key + " must be an integer")
		}
		return &v, nil
	}

	var err error
	if f.TransID, err = parse("trans_id"); err != nil {
		return f, err
	}
	if f.SenderID, err = parse("sender_id"); err != nil {
		return f, err
	}
	if f.ReceiverID, err = parse("receiver_id"); err != nil {
		return f, err
	}

	for _, s := range q["status"] {
		f.Statuses = append(f.Statuses, domain.TransactionStatus(s))
	}
	f.Month = q.Get("month")
	f.SentOnly = q.Get("sent_only") == "true"
	f.ReceivedOnly = q.Get("received_only") == "true"
	return f, nil
}

func (h *BankingRestHandler) OwnTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	txns, err := h.statementUC.Statement(r.Context(), identity(r).AccountID, filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionViews(txns))
}

func (h *BankingRestHandler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	transID, err := pathID(r, "transId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := identity(r)
	txn, err := h.statementUC.Transaction(r.Context(), id.AccountID, id.IsAdmin(), transID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionView(txn))
}

// DeleteTransaction is a requester cancelling their own pending request, or
// an admin removing any record.
func (h *BankingRestHandler) DeleteTransaction(w http.ResponseWriter, r *http.Request) {
	transID, err := pathID(r, "transId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	id := identity(r)
	if id.IsAdmin() {
		err = h.adminUC.DeleteTransaction(r.Context(), transID)
	} else {
		err = h.pendingUC.Cancel(r.Context(), id.AccountID, transID)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}
