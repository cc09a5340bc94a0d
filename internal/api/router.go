package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter creates a chi router with all API routes mounted.
// authEnabled controls whether Bearer token auth is enforced.
// sseHandler, if non-nil, is mounted at GET /events inside the auth group.
func NewRouter(svc *Service, authEnabled bool, token string, sseHandler http.Handler) chi.Router {
	h := NewHandler(svc)

	r := chi.NewRouter()
	r.Use(AuthMiddleware(authEnabled, token))

	// Slide catalog.
	r.Get("/slides", h.ListSlides)
	r.Get("/slides/{name}", h.GetSlide)

	// Annotation status.
	r.Get("/slides/{name}/status", h.GetStatus)
	r.Post("/slides/{name}/status/done", h.MarkDone)
	r.Post("/slides/{name}/status/ink", h.MarkInkFound)
	r.Get("/status/counts", h.Counts)

	// Viewer state and navigation.
	r.Post("/slides/{name}/state", h.PostState)
	r.Post("/slides/{name}/undo", h.Undo)
	r.Post("/slides/{name}/redo", h.Redo)
	r.Post("/slides/{name}/save", h.SaveView)
	r.Post("/slides/{name}/saved/prev", h.PrevSaved)
	r.Post("/slides/{name}/saved/next", h.NextSaved)
	r.Post("/slides/{name}/recenter", h.Recenter)

	// SSE endpoint (protected by same auth middleware).
	if sseHandler != nil {
		r.Get("/events", sseHandler.ServeHTTP)
	}

	return r
}
