package handler

import (
	"context"
	"fmt"
	"html/template"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/pizzaboard/internal/model"
)

// Clicker dispatches a click on a surface control.
type Clicker interface {
	Click(ctx context.Context, target string, row map[string]string) error
	Fragments() []string
}

// PageHandler serves the board page and the form fallbacks used when the
// browser has no live surface connection.
type PageHandler struct {
	surface Clicker
	page    *template.Template
	logger  *zap.Logger
}

// NewPageHandler parses the embedded page document. The page uses [[ ]]
// delimiters so the {{id}} markers of the row template pass through intact.
func NewPageHandler(surface Clicker, logger *zap.Logger) (*PageHandler, error) {
	page, err := template.New("index").Delims("[[", "]]").Parse(string(indexHTML))
	if err != nil {
		return nil, fmt.Errorf("parse page template: %w", err)
	}

	return &PageHandler{
		surface: surface,
		page:    page,
		logger:  logger,
	}, nil
}

// RegisterRoutes registers the page routes with the router.
func (h *PageHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/", h.Index).Methods(http.MethodGet)
	router.HandleFunc("/pizzas", h.AddPizza).Methods(http.MethodPost)
	router.HandleFunc("/pizzas/{id}/remove", h.RemovePizza).Methods(http.MethodPost)
}

// Index renders the page with the current list already filled in.
func (h *PageHandler) Index(w http.ResponseWriter, _ *http.Request) {
	current := h.surface.Fragments()
	fragments := make([]template.HTML, 0, len(current))
	for _, f := range current {
		// Fragments come from the fixed row template with integer ids.
		fragments = append(fragments, template.HTML(f)) //nolint:gosec // trusted template output
	}

	data := struct {
		Fragments []template.HTML
	}{
		Fragments: fragments,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := h.page.Execute(w, data); err != nil {
		h.logger.Error("failed to render page", zap.Error(err))
		http.Error(w, "failed to render page", http.StatusInternalServerError)
	}
}

// AddPizza handles POST /pizzas from the add form.
func (h *PageHandler) AddPizza(w http.ResponseWriter, r *http.Request) {
	if err := h.surface.Click(r.Context(), model.TargetAddPizza, nil); err != nil {
		h.logger.Error("add click failed", zap.Error(err))
		http.Error(w, "board not ready", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// RemovePizza handles POST /pizzas/{id}/remove from a row's remove form.
func (h *PageHandler) RemovePizza(w http.ResponseWriter, r *http.Request) {
	row := map[string]string{"id": mux.Vars(r)["id"]}
	if err := h.surface.Click(r.Context(), model.TargetRemovePizza, row); err != nil {
		h.logger.Error("remove click failed", zap.Error(err))
		http.Error(w, "board not ready", http.StatusServiceUnavailable)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}
