// Package api provides the read-only HTTP surface of farmbot.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/donutsmp/farmbot/internal/catalog"
	"github.com/donutsmp/farmbot/internal/domain"
)

// Handler serves catalog data over HTTP.
type Handler struct {
	store catalog.Store
}

// NewHandler creates a new Handler.
func NewHandler(store catalog.Store) *Handler {
	return &Handler{store: store}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// RegisterRoutes mounts the API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/api/farms", h.handleListFarms)
}

// farmDoc mirrors the catalog's document layout: category name ->
// farm id -> entry.
type farmDoc map[string]map[string]farmEntryDoc

type farmEntryDoc struct {
	Name   string  `json:"name"`
	Income float64 `json:"income"`
}

func (h *Handler) handleListFarms(w http.ResponseWriter, r *http.Request) {
	categories, err := h.store.ListCategories(r.Context())
	if err != nil {
		Error(w, http.StatusInternalServerError, "failed to load catalog")
		return
	}
	JSON(w, http.StatusOK, toDoc(categories))
}

func toDoc(categories []domain.Category) farmDoc {
	doc := make(farmDoc, len(categories))
	for _, cat := range categories {
		farms := make(map[string]farmEntryDoc, len(cat.Farms))
		for _, farm := range cat.Farms {
			farms[farm.ID] = farmEntryDoc{Name: farm.Name, Income: farm.Income}
		}
		doc[cat.Name] = farms
	}
	return doc
}
