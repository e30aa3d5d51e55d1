package handler

import (
	"errors"
	"net/http"

	"github.com/daghondi/ghondiclaude.tech/internal/model"
	"github.com/daghondi/ghondiclaude.tech/internal/service"
)

type ContentHandler struct {
	content *service.ContentService
}

func NewContentHandler(content *service.ContentService) *ContentHandler {
	return &ContentHandler{content: content}
}

type listResponse struct {
	Success bool           `json:"success"`
	Items   []*model.Entry `json:"items"`
}

type entryResponse struct {
	Success bool         `json:"success"`
	Item    *model.Entry `json:"item"`
}

// List returns a handler listing one collection, optionally filtered by ?tag=.
func (h *ContentHandler) List(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := h.content.List(collection, r.URL.Query().Get("tag"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, listResponse{Success: true, Items: entries})
	}
}

// Get returns a handler serving a single entry addressed by the {slug} path value.
func (h *ContentHandler) Get(collection string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entry, err := h.content.Get(collection, r.PathValue("slug"))
		if errors.Is(err, service.ErrContentNotFound) {
			writeError(w, http.StatusNotFound, msgNotFound)
			return
		}
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, entryResponse{Success: true, Item: entry})
	}
}
