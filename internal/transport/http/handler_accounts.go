package httptransport

import (
	"net/http"

	"zcoin/internal/app/economy"
	"zcoin/internal/earning"
	"zcoin/internal/ledger"

	"github.com/go-chi/chi/v5"
)

type AccountHandlers struct {
	svc *economy.Service
}

func NewAccountHandlers(svc *economy.Service) *AccountHandlers {
	return &AccountHandlers{svc: svc}
}

func (h *AccountHandlers) Balance() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Balance(r.Context(), chi.URLParam(r, "account_id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AccountHandlers) History() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := ParsePagination(r)
		resp, err := h.svc.History(r.Context(), chi.URLParam(r, "account_id"), limit, offset)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AccountHandlers) Factor() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Factor(r.Context(), chi.URLParam(r, "account_id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AccountHandlers) Streak() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := h.svc.Streak(r.Context(), chi.URLParam(r, "account_id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

type activityBody struct {
	earning.Fact
	Facts []earning.Fact `json:"facts,omitempty"`
}

// Activity takes either one fact or {"facts": [...]}. A batch always answers
// 200 with a per-fact error code.
func (h *AccountHandlers) Activity() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body activityBody
		if !decodeJSON(w, r, &body) {
			return
		}
		if len(body.Facts) > 0 {
			writeJSON(w, http.StatusOK, map[string]any{"items": h.svc.ActivityBatch(r.Context(), body.Facts)})
			return
		}
		res, err := h.svc.Activity(r.Context(), body.Fact)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

func (h *AccountHandlers) Transfer() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			From   string `json:"from"`
			To     string `json:"to"`
			Amount int64  `json:"amount"`
			Reason string `json:"reason"`
			Key    string `json:"key"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		debit, credit, err := h.svc.Transfer(r.Context(), ledger.TransferRequest{
			From:   body.From,
			To:     body.To,
			Amount: body.Amount,
			Reason: body.Reason,
			Key:    body.Key,
		})
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"debit": debit, "credit": credit})
	}
}

func (h *AccountHandlers) Spend() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body economy.SpendInput
		if !decodeJSON(w, r, &body) {
			return
		}
		tx, err := h.svc.Spend(r.Context(), body)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}
