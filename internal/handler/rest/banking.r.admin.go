package hrest

import (
	"net/http"

	"banking-service/pkg/response"
)

func (h *BankingRestHandler) AdminListAccounts(w http.ResponseWriter, r *http.Request) {
	accts, err := h.adminUC.ListAccounts(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	views := make([]accountView, 0, len(accts))
	for _, a := range accts {
		views = append(views, newAccountView(a))
	}
	response.JSON(w, http.StatusOK, views)
}

func (h *BankingRestHandler) AdminGetAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	acc, err := h.adminUC.GetAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newAccountView(acc))
}

func (h *BankingRestHandler) AdminAccountTransactions(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	txns, err := h.adminUC.TransactionsForAccount(r.Context(), accountID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionViews(txns))
}

func (h *BankingRestHandler) AdminVerifyAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.accountUC.MarkEmailVerified(r.Context(), accountID); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"verified": true})
}

func (h *BankingRestHandler) AdminDeleteAccount(w http.ResponseWriter, r *http.Request) {
	accountID, err := pathID(r, "accountId")
	if err != nil {
		h.writeError(w, err)
		return
	}

	if err := h.adminUC.DeleteAccount(r.Context(), accountID); err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *BankingRestHandler) AdminListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := filterFromQuery(r)
	if err != nil {
		h.writeError(w, err)
		return
	}

	txns, err := h.adminUC.ListTransactions(r.Context(), filter)
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionViews(txns))
}

func (h *BankingRestHandler) AdminListPending(w http.ResponseWriter, r *http.Request) {
	txns, err := h.adminUC.ListPending(r.Context())
	if err != nil {
		h.writeError(w, err)
		return
	}
	response.JSON(w, http.StatusOK, newTransactionViews(txns))
}
