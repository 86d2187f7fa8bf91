package httptransport

import (
	"fmt"
	"net/http"
	"sort"
	"strings"

	"zcoin/internal/app/economy"
	"zcoin/internal/config"
	"zcoin/internal/mcpserver"
	"zcoin/internal/metrics"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog/log"
)

func NewRouter(svc *economy.Service, cfg config.ServerConfig, pinger Pinger, version string) *chi.Mux {
	mcpSrv := mcpserver.New(svc, version)

	accountHandlers := NewAccountHandlers(svc)
	gameHandlers := NewGameHandlers(svc.Games)
	adminHandlers := NewAdminHandlers(svc, pinger)

	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(metrics.Middleware)

	r.With(APILogMiddleware()).Get("/healthz", adminHandlers.Health())
	r.Method(http.MethodGet, "/metrics", metrics.Handler())
	r.With(APILogMiddleware()).MethodFunc(http.MethodOptions, "/mcp", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Allow", "POST, GET, DELETE, OPTIONS")
		w.WriteHeader(http.StatusNoContent)
	})
	r.With(APILogMiddleware()).Method(http.MethodPost, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodGet, "/mcp", mcpSrv.Handler())
	r.With(APILogMiddleware()).Method(http.MethodDelete, "/mcp", mcpSrv.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(APILogMiddleware())

		r.Get("/accounts/{account_id}/balance", accountHandlers.Balance())
		r.Get("/accounts/{account_id}/history", accountHandlers.History())
		r.Get("/accounts/{account_id}/factor", accountHandlers.Factor())
		r.Get("/accounts/{account_id}/streak", accountHandlers.Streak())
		r.Post("/activity", accountHandlers.Activity())
		r.Post("/transfers", accountHandlers.Transfer())
		r.Post("/spend", accountHandlers.Spend())

		r.Route("/games", func(r chi.Router) {
			r.Post("/slots", gameHandlers.Slots())
			r.Post("/flip", gameHandlers.Flip())
			r.Post("/flip/{session_id}/join", gameHandlers.JoinFlip())
			r.Post("/challenges", gameHandlers.Challenge())
			r.Post("/challenges/{session_id}/accept", gameHandlers.Accept())
			r.Post("/challenges/{session_id}/decline", gameHandlers.Decline())
			r.Post("/heists", gameHandlers.StartHeist())
			r.Post("/heists/{session_id}/join", gameHandlers.JoinHeist())
			r.Get("/sessions", gameHandlers.Sessions())
			r.Get("/sessions/{session_id}", gameHandlers.Session())
			r.Post("/sessions/{session_id}/cancel", gameHandlers.Cancel())
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(AdminAuthMiddleware(cfg.AdminAPIKey))
			r.Post("/grant", adminHandlers.Grant())
			r.Post("/ban", adminHandlers.Ban())
			r.Post("/multipliers", adminHandlers.SetMultiplier())
			r.Delete("/multipliers/{account_id}/{source}", adminHandlers.RemoveMultiplier())
			r.Post("/heists/{session_id}/resolve", gameHandlers.ResolveHeist())
			r.Get("/economy", adminHandlers.Economy())
		})
	})
	return r
}

func LogRoutes(r chi.Router) {
	type routeDef struct {
		Method string
		Path   string
	}
	routes := make([]routeDef, 0, 64)
	err := chi.Walk(r, func(method string, route string, _ http.Handler, _ ...func(http.Handler) http.Handler) error {
		routes = append(routes, routeDef{Method: method, Path: route})
		return nil
	})
	if err != nil {
		log.Error().Err(err).Msg("walk routes failed")
		return
	}
	sort.Slice(routes, func(i, j int) bool {
		if routes[i].Path == routes[j].Path {
			return routes[i].Method < routes[j].Method
		}
		return routes[i].Path < routes[j].Path
	})
	var b strings.Builder
	b.WriteString(fmt.Sprintf("Registered routes (%d):\n", len(routes)))
	for _, rt := range routes {
		b.WriteString(fmt.Sprintf("  %-6s %s\n", rt.Method, rt.Path))
	}
	fmt.Print(b.String())
}
