package server

import (
	"context"
	"net/http"

	"menucost/internal/handlers"
	applog "menucost/internal/log"
)

func newRouter(limit func(http.Handler) http.Handler) http.Handler {
	if limit == nil {
		limit = func(next http.Handler) http.Handler { return next }
	}
	mux := http.NewServeMux()
	applog.Debug(context.Background(), "registering http routes")

	handle := func(pattern string, handler http.HandlerFunc, limited bool) {
		if limited {
			mux.Handle(pattern, limit(handler))
		} else {
			mux.HandleFunc(pattern, handler)
		}
		applog.Debug(context.Background(), "route registered", "pattern", pattern, "limited", limited)
	}

	handle("GET /healthz", handlers.Health, false)

	handle("POST /workspaces/{slug}/recalculate/{target}", handlers.Recalculate, true)
	handle("GET /workspaces/{slug}/jobs/{id}", handlers.Job, false)
	handle("GET /workspaces/{slug}/overhead", handlers.Overhead, false)

	handle("POST /workspaces/{slug}/ingredients/{id}/entries", handlers.RecordEntry, true)
	handle("DELETE /workspaces/{slug}/entries/{id}", handlers.DeleteEntry, true)
	handle("POST /workspaces/{slug}/recipes/{id}/items", handlers.AddRecipeItem, true)
	handle("POST /workspaces/{slug}/products/{id}/composition", handlers.AddCompositionItem, true)
	handle("PATCH /workspaces/{slug}/units/{id}", handlers.UpdateUnit, true)
	handle("DELETE /workspaces/{slug}/units/{id}", handlers.DeleteUnit, false)
	handle("POST /workspaces/{slug}/size-groups/{id}/reference", handlers.PromoteReference, true)
	handle("DELETE /workspaces/{slug}/size-options/{id}", handlers.DeleteSizeOption, true)
	handle("PUT /workspaces/{slug}/menus/{id}/pricing", handlers.UpdateMenuPricing, false)
	handle("POST /workspaces/{slug}/menus/{id}/entries", handlers.AddMenuEntry, false)
	return mux
}
