package api

import (
	"net/http"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/report"
	"github.com/unifound/unifound/internal/session"
	"github.com/unifound/unifound/internal/workflow"
)

// NewRouter creates the API router with all endpoints registered.
func NewRouter(gw gateway.Gateway, sessions *session.Provider) http.Handler {
	mux := http.NewServeMux()

	authHandler := &AuthHandler{GW: gw, Sessions: sessions}
	itemsHandler := &ItemsHandler{GW: gw, Reports: report.New(gw), Claims: workflow.New(gw)}
	assetsHandler := &AssetsHandler{GW: gw}
	statsHandler := &StatsHandler{GW: gw}

	authMW := AuthMiddleware(sessions)
	optionalMW := OptionalAuth(sessions)

	// Public: login, registration, stats, asset bytes.
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/logout", authHandler.Logout)
	mux.HandleFunc("GET /api/stats", statsHandler.Get)
	mux.HandleFunc("GET /api/assets/{ref}", assetsHandler.Get)

	// Browsing works signed out; a session only unlocks the affordances.
	mux.Handle("GET /api/items", optionalMW(http.HandlerFunc(itemsHandler.List)))
	mux.Handle("GET /api/items/watch", optionalMW(http.HandlerFunc(itemsHandler.Watch)))
	mux.Handle("GET /api/items/{id}", optionalMW(http.HandlerFunc(itemsHandler.Get)))

	// Reporting and claiming need a signed-in user; the workflow decides
	// admin-only transitions itself.
	mux.Handle("POST /api/items", authMW(http.HandlerFunc(itemsHandler.Report)))
	mux.Handle("POST /api/items/{id}/claim", authMW(http.HandlerFunc(itemsHandler.Claim)))
	mux.Handle("POST /api/items/{id}/resolve", authMW(http.HandlerFunc(itemsHandler.Resolve)))
	mux.Handle("POST /api/items/{id}/unresolve", authMW(http.HandlerFunc(itemsHandler.Unresolve)))
	mux.Handle("DELETE /api/items/{id}", authMW(http.HandlerFunc(itemsHandler.Delete)))

	return mux
}
