package httptransport

import (
	"context"
	"net/http"

	"zcoin/internal/app/economy"

	"github.com/go-chi/chi/v5"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

type AdminHandlers struct {
	svc    *economy.Service
	pinger Pinger
}

func NewAdminHandlers(svc *economy.Service, pinger Pinger) *AdminHandlers {
	return &AdminHandlers{svc: svc, pinger: pinger}
}

func (h *AdminHandlers) Health() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if h.pinger == nil {
			writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "memory"})
			return
		}
		if err := h.pinger.Ping(r.Context()); err != nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]any{"ok": false, "db": "down"})
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"ok": true, "db": "up"})
	}
}

func (h *AdminHandlers) Grant() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body economy.GrantInput
		if !decodeJSON(w, r, &body) {
			return
		}
		tx, err := h.svc.Grant(r.Context(), body)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, tx)
	}
}

func (h *AdminHandlers) Ban() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body economy.BanInput
		if !decodeJSON(w, r, &body) {
			return
		}
		resp, err := h.svc.Ban(r.Context(), body)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (h *AdminHandlers) SetMultiplier() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body economy.MultiplierInput
		if !decodeJSON(w, r, &body) {
			return
		}
		e, err := h.svc.SetMultiplier(r.Context(), body)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, e)
	}
}

func (h *AdminHandlers) RemoveMultiplier() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := h.svc.RemoveMultiplier(r.Context(), chi.URLParam(r, "account_id"), chi.URLParam(r, "source"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func (h *AdminHandlers) Economy() http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"reloads": h.svc.Economy.Reloads(),
			"economy": h.svc.Economy.Load(),
		})
	}
}
