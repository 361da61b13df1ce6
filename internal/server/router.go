package server

import (
	"log/slog"
	"net/http"

	"github.com/cloo-solutions/wizvec/internal/api"
	"github.com/cloo-solutions/wizvec/internal/api/handlers"
	"github.com/cloo-solutions/wizvec/internal/api/middleware"
	"github.com/go-chi/chi/v5"
)

type RouterConfig struct {
	RunHandler *handlers.RunHandler
	Logger     *slog.Logger
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.SentryMiddleware)
	r.Use(middleware.AccessLog(cfg.Logger))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		api.Success(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/runs", func(r chi.Router) {
		r.Post("/", cfg.RunHandler.Start)
		r.Get("/latest", cfg.RunHandler.Latest)
	})

	return r
}
