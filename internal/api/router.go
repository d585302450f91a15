// Package api implements the Raido REST facade using chi.
package api

import (
	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/todoservice"
)

// NewRouter creates a chi router with all REST API routes mounted.
func NewRouter(svc *todoservice.Service) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()

	// Items CRUD.
	r.Get("/todos", h.ListTodos)
	r.Post("/todos", h.CreateTodo)
	r.Get("/todos/{todoID}", h.GetTodo)
	r.Put("/todos/{todoID}", h.UpdateTodo)
	r.Delete("/todos/{todoID}", h.DeleteTodo)

	// Image blobs.
	r.Get("/images/{imageID}", h.GetImage)

	return r
}
