package server

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"calculadora-console/internal/console"
	"calculadora-console/internal/handlers"
	"calculadora-console/internal/observability"
)

func NewRouter(consoleHandler *console.Handler) http.Handler {

	r := chi.NewRouter()

	r.Use(middleware.Recoverer)
	r.Use(observability.RequestIDMiddleware)
	r.Use(observability.TracingMiddleware)
	r.Use(observability.LoggingMiddleware)

	r.Get("/health", handlers.Health)

	r.Handle("/metrics", observability.PrometheusHandler())

	console.RegisterRoutes(r, consoleHandler)

	return r
}
