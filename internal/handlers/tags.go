package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"fotos/internal/services"
)

type TagHandler struct {
	tags *services.TagService
}

func NewTagHandler(tags *services.TagService) *TagHandler {
	return &TagHandler{tags: tags}
}

// List answers GET /tags and GET /tags?search=term.
func (h *TagHandler) List(w http.ResponseWriter, r *http.Request) {
	tags, err := h.tags.ListTags(r.Context(), r.URL.Query().Get("search"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tags)
}

// Create answers POST /tags/{tag}, where the path segment is the new name.
func (h *TagHandler) Create(w http.ResponseWriter, r *http.Request) {
	name, err := pathParam(r, "tag")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	tag, err := h.tags.CreateTag(r.Context(), name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tag)
}

func (h *TagHandler) TagPath(w http.ResponseWriter, r *http.Request) {
	subpath, err := pathParam(r, "*")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.tags.TagPath(r.Context(), chi.URLParam(r, "tag"), subpath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *TagHandler) UntagPath(w http.ResponseWriter, r *http.Request) {
	subpath, err := pathParam(r, "*")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	err = h.tags.UntagPath(r.Context(), chi.URLParam(r, "tag"), subpath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

// GetByTag answers GET /tags/{tag}/files[/{prefix}].
func (h *TagHandler) GetByTag(w http.ResponseWriter, r *http.Request) {
	subpath, err := pathParam(r, "*")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	files, err := h.tags.GetByTag(r.Context(), chi.URLParam(r, "tag"), subpath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, files)
}

func (h *TagHandler) Verify(w http.ResponseWriter, r *http.Request) {
	subpath, err := pathParam(r, "*")
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	v, err := h.tags.VerifyPath(r.Context(), subpath)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, v)
}
