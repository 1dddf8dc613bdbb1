package handler

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

type Routes struct {
	Tasks   *TaskHandler
	Theme   *ThemeHandler
	Live    http.HandlerFunc // optional
	Metrics http.Handler     // optional
}

func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, `{"status":"ok"}`)
	})

	r.Route("/api/tasks", func(r chi.Router) {
		r.Get("/", rt.Tasks.List)
		r.Post("/", rt.Tasks.Create)
		r.Post("/reorder", rt.Tasks.Reorder)
		r.Delete("/completed", rt.Tasks.ClearCompleted)
		r.Get("/{id}", rt.Tasks.Get)
		r.Post("/{id}/toggle", rt.Tasks.Toggle)
		r.Delete("/{id}", rt.Tasks.Delete)
	})
	r.Get("/api/stats", rt.Tasks.Stats)

	r.Route("/api/theme", func(r chi.Router) {
		r.Get("/", rt.Theme.Get)
		r.Put("/", rt.Theme.Set)
		r.Post("/toggle", rt.Theme.Toggle)
	})

	if rt.Live != nil {
		r.Get("/ws", rt.Live)
	}
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}
	return r
}
