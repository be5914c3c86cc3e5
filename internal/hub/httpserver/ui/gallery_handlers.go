package ui

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"musanzehub.com/hub-web/internal/hub/templates"
)

// Gallery lists items filtered by ?category=.
func (h *Handlers) Gallery(w http.ResponseWriter, r *http.Request) {
	active := h.catalogue.NormalizeCategory(r.URL.Query().Get("category"))
	h.Page(w, r, "gallery", templates.GalleryPage{
		Layout:     h.Layout(r, "Gallery"),
		Categories: h.catalogue.Categories(),
		Active:     active,
		Items:      h.catalogue.Gallery(active),
	}, http.StatusOK)
}

// GalleryItem renders the detail modal fragment.
func (h *Handlers) GalleryItem(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "itemID"))
	if err != nil {
		http.NotFound(w, r)
		return
	}
	item, err := h.catalogue.GalleryItem(id)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	h.Fragment(w, r, "gallery-modal", item)
}
