package main

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/phrazzld/scry-forge/internal/api"
	apiMiddleware "github.com/phrazzld/scry-forge/internal/api/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRouter creates the router with all routes and middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.Metrics)

	generationHandler := api.NewGenerationHandler(app.service, app.logger)

	r.Route("/api", func(r chi.Router) {
		r.Post("/generations", generationHandler.Create)
		r.Delete("/generations/cache", generationHandler.InvalidateCache)
		r.Get("/generations/{id}", generationHandler.Get)

		if token := app.config.Server.AdminToken; token != "" {
			var snapshots interface{ Expire() }
			if app.snapshots != nil {
				snapshots = app.snapshots
			}
			adminHandler := api.NewAdminHandler(app.settings, snapshots, app.logger)

			r.Group(func(r chi.Router) {
				r.Use(apiMiddleware.AdminAuth(token))
				r.Get("/admin/routing-overrides", adminHandler.GetRoutingOverrides)
				r.Put("/admin/routing-overrides", adminHandler.PutRoutingOverrides)
			})
		}
	})

	r.Method(http.MethodGet, "/health", api.NewHealthHandler(app.health))
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	return r
}
