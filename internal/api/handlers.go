package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pathview/inkscan/internal/apperr"
	"github.com/pathview/inkscan/internal/models"
)

// Handler holds API route handlers.
type Handler struct {
	svc *Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func slideName(r *http.Request) string {
	return chi.URLParam(r, "name")
}

// ListSlides handles GET /api/slides.
func (h *Handler) ListSlides(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.ListSlides()
	if err != nil {
		slog.Error("list slides failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	if items == nil {
		items = []SlideListItem{}
	}
	writeJSON(w, http.StatusOK, SlideListResponse{Slides: items, Total: len(items)})
}

// GetSlide handles GET /api/slides/{name}.
func (h *Handler) GetSlide(w http.ResponseWriter, r *http.Request) {
	name := slideName(r)
	detail, err := h.svc.GetSlide(name)
	if err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error("get slide failed", slog.String("slide", name), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	writeJSON(w, http.StatusOK, detail)
}

// GetStatus handles GET /api/slides/{name}/status.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	name := slideName(r)
	st, err := h.svc.GetStatus(name)
	if err != nil {
		h.writeStatusErr(w, name, "get status", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// MarkDone handles POST /api/slides/{name}/status/done.
func (h *Handler) MarkDone(w http.ResponseWriter, r *http.Request) {
	name := slideName(r)
	st, err := h.svc.MarkDone(name)
	if err != nil {
		h.writeStatusErr(w, name, "mark done", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// MarkInkFound handles POST /api/slides/{name}/status/ink.
func (h *Handler) MarkInkFound(w http.ResponseWriter, r *http.Request) {
	name := slideName(r)
	st, err := h.svc.MarkInkFound(name)
	if err != nil {
		h.writeStatusErr(w, name, "mark ink found", err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

// PostState handles POST /api/slides/{name}/state: the viewer's reply
// to a state.request event.
func (h *Handler) PostState(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, 10<<20)
	var snap models.Snapshot
	if err := json.NewDecoder(r.Body).Decode(&snap); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	h.svc.HandleState(slideName(r), &snap)
	w.WriteHeader(http.StatusAccepted)
}

// Undo handles POST /api/slides/{name}/undo.
func (h *Handler) Undo(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "undo", h.svc.Undo)
}

// Redo handles POST /api/slides/{name}/redo.
func (h *Handler) Redo(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "redo", h.svc.Redo)
}

// SaveView handles POST /api/slides/{name}/save.
func (h *Handler) SaveView(w http.ResponseWriter, r *http.Request) {
	name := slideName(r)
	st, err := h.svc.SaveView(name)
	if err != nil {
		h.writeStatusErr(w, name, "save view", err)
		return
	}
	writeJSON(w, http.StatusAccepted, st)
}

// PrevSaved handles POST /api/slides/{name}/saved/prev.
func (h *Handler) PrevSaved(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "prev saved", h.svc.PrevSaved)
}

// NextSaved handles POST /api/slides/{name}/saved/next.
func (h *Handler) NextSaved(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "next saved", h.svc.NextSaved)
}

// Recenter handles POST /api/slides/{name}/recenter.
func (h *Handler) Recenter(w http.ResponseWriter, r *http.Request) {
	h.sessionAction(w, r, "recenter", h.svc.Recenter)
}

// Counts handles GET /api/status/counts.
func (h *Handler) Counts(w http.ResponseWriter, r *http.Request) {
	counts, err := h.svc.Counts()
	if err != nil {
		slog.Error("status counts failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "internal error")
		return
	}
	writeJSON(w, http.StatusOK, counts)
}

// sessionAction runs a fire-and-forget session operation; results
// reach the viewer through the SSE stream rather than this response.
func (h *Handler) sessionAction(w http.ResponseWriter, r *http.Request, op string, fn func(string) error) {
	name := slideName(r)
	if err := fn(name); err != nil {
		if errors.Is(err, apperr.ErrNotFound) {
			writeError(w, http.StatusNotFound, "not found")
		} else {
			slog.Error(op+" failed", slog.String("slide", name), slog.String("error", err.Error()))
			writeError(w, http.StatusInternalServerError, "internal error")
		}
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (h *Handler) writeStatusErr(w http.ResponseWriter, name, op string, err error) {
	if errors.Is(err, apperr.ErrNotFound) {
		writeError(w, http.StatusNotFound, "not found")
		return
	}
	slog.Error(op+" failed", slog.String("slide", name), slog.String("error", err.Error()))
	writeError(w, http.StatusInternalServerError, "internal error")
}
