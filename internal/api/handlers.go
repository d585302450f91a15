package api

import (
	"encoding/json"
	"io"
	"log/slog"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/starford/raido/internal/models"
	"github.com/starford/raido/internal/todoservice"
)

const maxUploadBytes = 10 << 20 // 10 MB per create request

// Handler holds API route handlers.
type Handler struct {
	svc *todoservice.Service
}

// NewHandler creates a new Handler.
func NewHandler(svc *todoservice.Service) *Handler {
	return &Handler{svc: svc}
}

// ListTodos handles GET /api/todos.
func (h *Handler) ListTodos(w http.ResponseWriter, r *http.Request) {
	items, err := h.svc.List(r.Context())
	if err != nil {
		slog.Error("list todos failed", slog.String("error", err.Error()))
		writeError(w, err.Error())
		return
	}
	if items == nil {
		items = []models.Item{}
	}
	writeJSON(w, http.StatusOK, items)
}

// GetTodo handles GET /api/todos/{todoID}.
func (h *Handler) GetTodo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "todoID")
	item, err := h.svc.Get(r.Context(), id)
	if err != nil {
		slog.Error("get todo failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// CreateTodo handles POST /api/todos. The body is either JSON
// (description + imageUrls) or multipart/form-data (description field +
// "images" file parts).
func (h *Handler) CreateTodo(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)

	description, sources, err := parseCreateRequest(r)
	if err != nil {
		writeError(w, err.Error())
		return
	}

	item, err := h.svc.Create(r.Context(), description, sources)
	if err != nil {
		slog.Error("create todo failed", slog.String("error", err.Error()))
		writeError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// UpdateTodo handles PUT /api/todos/{todoID}.
func (h *Handler) UpdateTodo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "todoID")
	var req UpdateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid JSON body")
		return
	}
	item, err := h.svc.Update(r.Context(), id, req.Description, req.Completed)
	if err != nil {
		slog.Error("update todo failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, item)
}

// DeleteTodo handles DELETE /api/todos/{todoID}.
func (h *Handler) DeleteTodo(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "todoID")
	removed, err := h.svc.Delete(r.Context(), id)
	if err != nil {
		slog.Error("delete todo failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, err.Error())
		return
	}
	if removed == nil {
		removed = []string{}
	}
	writeJSON(w, http.StatusOK, DeleteTodoResponse{ID: id, DeletedImages: removed})
}

// GetImage handles GET /api/images/{imageID} and streams the blob with
// its stored content type. The blob is served directly; resolving the
// owning item is the protocol tool's job, not this route's.
func (h *Handler) GetImage(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "imageID")
	body, ct, err := h.svc.ImageData(r.Context(), id)
	if err != nil {
		slog.Error("get image failed", slog.String("id", id), slog.String("error", err.Error()))
		writeError(w, err.Error())
		return
	}
	w.Header().Set("Content-Type", ct)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// parseCreateRequest extracts the description and image sources from
// either body encoding.
func parseCreateRequest(r *http.Request) (string, []todoservice.ImageSource, error) {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mt == "multipart/form-data" {
		return parseMultipartCreate(r)
	}

	var req CreateTodoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", nil, err
	}
	sources := make([]todoservice.ImageSource, 0, len(req.ImageURLs))
	for _, u := range req.ImageURLs {
		sources = append(sources, todoservice.ImageSource{URL: u})
	}
	return req.Description, sources, nil
}

func parseMultipartCreate(r *http.Request) (string, []todoservice.ImageSource, error) {
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return "", nil, err
	}
	description := r.FormValue("description")

	var sources []todoservice.ImageSource
	if r.MultipartForm != nil {
		for _, part := range r.MultipartForm.File["images"] {
			f, err := part.Open()
			if err != nil {
				return "", nil, err
			}
			data, err := io.ReadAll(f)
			_ = f.Close()
			if err != nil {
				return "", nil, err
			}
			sources = append(sources, todoservice.ImageSource{
				Data:        data,
				ContentType: part.Header.Get("Content-Type"),
			})
		}
	}
	return description, sources, nil
}
