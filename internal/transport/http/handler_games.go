package httptransport

import (
	"context"
	"net/http"
	"strings"

	"zcoin/internal/gamble"

	"github.com/go-chi/chi/v5"
)

type GameHandlers struct {
	games *gamble.Engine
}

func NewGameHandlers(games *gamble.Engine) *GameHandlers {
	return &GameHandlers{games: games}
}

type accountBody struct {
	Account string `json:"account"`
}

func (h *GameHandlers) Slots() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gamble.WagerRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		res, err := h.games.Spin(r.Context(), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, res)
	}
}

// Flip plays against the house unless mode is "pvp", which opens a session
// for another account to join.
func (h *GameHandlers) Flip() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			gamble.WagerRequest
			Mode string `json:"mode"`
		}
		if !decodeJSON(w, r, &body) {
			return
		}
		switch strings.ToLower(strings.TrimSpace(body.Mode)) {
		case "", "house":
			res, err := h.games.FlipHouse(r.Context(), body.WagerRequest)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusOK, res)
		case "pvp":
			s, err := h.games.OpenFlip(r.Context(), body.WagerRequest)
			if err != nil {
				writeDomainError(w, r, err)
				return
			}
			writeJSON(w, http.StatusCreated, s)
		default:
			WriteHTTPError(w, http.StatusBadRequest, "invalid_mode")
		}
	}
}

func (h *GameHandlers) JoinFlip() http.HandlerFunc {
	return h.withAccount(h.games.JoinFlip)
}

func (h *GameHandlers) Challenge() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gamble.ChallengeRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := h.games.Challenge(r.Context(), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

func (h *GameHandlers) Accept() http.HandlerFunc {
	return h.withAccount(h.games.Accept)
}

func (h *GameHandlers) Decline() http.HandlerFunc {
	return h.withAccount(h.games.Decline)
}

func (h *GameHandlers) Cancel() http.HandlerFunc {
	return h.withAccount(h.games.Cancel)
}

func (h *GameHandlers) StartHeist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gamble.WagerRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := h.games.StartHeist(r.Context(), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, s)
	}
}

func (h *GameHandlers) JoinHeist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req gamble.WagerRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		s, err := h.games.JoinHeist(r.Context(), chi.URLParam(r, "session_id"), req)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func (h *GameHandlers) ResolveHeist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.games.ResolveHeist(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

func (h *GameHandlers) Sessions() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		items := h.games.ListSessions(gamble.Filter{
			Game:    gamble.Game(strings.ToLower(q.Get("game"))),
			State:   gamble.State(strings.ToUpper(q.Get("state"))),
			Account: q.Get("account"),
		})
		if items == nil {
			items = []gamble.Session{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"items": items})
	}
}

func (h *GameHandlers) Session() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := h.games.Session(r.Context(), chi.URLParam(r, "session_id"))
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}

type sessionAction func(ctx context.Context, id, account string) (gamble.Session, error)

func (h *GameHandlers) withAccount(action sessionAction) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body accountBody
		if !decodeJSON(w, r, &body) {
			return
		}
		s, err := action(r.Context(), chi.URLParam(r, "session_id"), body.Account)
		if err != nil {
			writeDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, s)
	}
}
