package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"path"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"
	"github.com/tendant/edu-cms/pkg/educms"
)

const maxUploadSize = 512 << 20

// Categories

// CreateCategoryRequest is the body of POST /categories.
type CreateCategoryRequest struct {
	Name string `json:"name"`
}

func (h *Handler) CreateCategory(w http.ResponseWriter, r *http.Request) {
	var req CreateCategoryRequest
	if !h.decode(w, r, &req) {
		return
	}
	category, err := h.service.CreateCategory(r.Context(), req.Name)
	if err != nil {
		h.writeError(w, r, "Failed to create category", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, category)
}

func (h *Handler) GetCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	category, err := h.service.GetCategory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, "Failed to get category", err)
		return
	}
	render.JSON(w, r, category)
}

func (h *Handler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := h.service.ListCategories(r.Context())
	if err != nil {
		h.writeError(w, r, "Failed to list categories", err)
		return
	}
	if categories == nil {
		categories = []*educms.Category{}
	}
	render.JSON(w, r, categories)
}

func (h *Handler) DeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := h.service.DeleteCategory(r.Context(), id); err != nil {
		h.writeError(w, r, "Failed to delete category", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// Site configuration

func (h *Handler) GetSiteConfig(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.service.GetSiteConfig(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.writeError(w, r, "Failed to get site config", err)
		return
	}
	render.JSON(w, r, cfg)
}

// SaveSiteConfig stores the raw request body as the document.
func (h *Handler) SaveSiteConfig(w http.ResponseWriter, r *http.Request) {
	doc, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		badRequest(w, r, "failed to read body")
		return
	}
	cfg, err := h.service.SaveSiteConfig(r.Context(), chi.URLParam(r, "key"), json.RawMessage(doc))
	if err != nil {
		h.writeError(w, r, "Failed to save site config", err)
		return
	}
	render.JSON(w, r, cfg)
}

// Media

// UploadResponse carries the path items should reference.
type UploadResponse struct {
	Path string `json:"path"`
}

// UploadMedia stores the multipart "file" field.
func (h *Handler) UploadMedia(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		badRequest(w, r, "invalid multipart form: "+err.Error())
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		badRequest(w, r, "missing file field")
		return
	}
	defer file.Close()

	p, err := h.service.UploadMedia(r.Context(), file, path.Ext(header.Filename))
	if err != nil {
		h.writeError(w, r, "Failed to upload media", err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, UploadResponse{Path: p})
}

type presigner interface {
	PresignURL(ctx context.Context, path string) (string, error)
}

// ServeMedia redirects to a presigned URL when the store supports one and
// streams the file otherwise.
func (h *Handler) ServeMedia(w http.ResponseWriter, r *http.Request) {
	p := chi.URLParam(r, "*")
	if _, err := educms.CleanMediaPath(p); err != nil {
		h.writeError(w, r, "Invalid media path", err)
		return
	}

	if ps, ok := h.media.(presigner); ok {
		url, err := ps.PresignURL(r.Context(), p)
		if err != nil {
			h.writeError(w, r, "Failed to presign media", err)
			return
		}
		http.Redirect(w, r, url, http.StatusFound)
		return
	}

	rc, err := h.media.Open(r.Context(), p)
	if err != nil {
		h.writeError(w, r, "Failed to open media", err)
		return
	}
	defer rc.Close()

	if ct := mime.TypeByExtension(path.Ext(p)); ct != "" {
		w.Header().Set("Content-Type", ct)
	} else {
		w.Header().Set("Content-Type", "application/octet-stream")
	}
	if _, err := io.Copy(w, rc); err != nil && !errors.Is(err, context.Canceled) {
		h.logger.Warn("Failed to stream media", "path", p, "error", err)
	}
}
