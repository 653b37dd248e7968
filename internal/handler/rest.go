package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/vyrodovalexey/pizzaboard/internal/model"
	"github.com/vyrodovalexey/pizzaboard/internal/octopus"
)

// Version is the application version.
const Version = "1.0.0"

// Board is the subset of the mediator the JSON API works against.
type Board interface {
	AddPizza(ctx context.Context) (model.Pizza, error)
	RemovePizza(ctx context.Context, ref model.PizzaRef) error
	VisiblePizzas(ctx context.Context) ([]model.Pizza, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// RESTHandler handles JSON API requests for pizzas.
type RESTHandler struct {
	board  Board
	logger *zap.Logger
}

// NewRESTHandler creates a new RESTHandler instance.
func NewRESTHandler(b Board, logger *zap.Logger) *RESTHandler {
	return &RESTHandler{
		board:  b,
		logger: logger,
	}
}

// RegisterRoutes registers the REST API routes with the router.
func (h *RESTHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	router.HandleFunc("/ready", h.ReadyCheck).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/pizzas", h.ListPizzas).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/pizzas", h.CreatePizza).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/pizzas/{id}", h.DeletePizza).Methods(http.MethodDelete)
}

// HealthCheck handles GET /health requests.
func (h *RESTHandler) HealthCheck(w http.ResponseWriter, _ *http.Request) {
	response := HealthResponse{
		Status:  "healthy",
		Version: Version,
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// ReadyCheck handles GET /ready requests.
func (h *RESTHandler) ReadyCheck(w http.ResponseWriter, r *http.Request) {
	stats, err := h.board.Stats(r.Context())
	if err != nil {
		h.logger.Error("failed to read board stats", zap.Error(err))
		h.writeError(w, http.StatusServiceUnavailable, "board not ready")
		return
	}

	response := ReadyResponse{
		Status: "ready",
		Pizzas: stats,
	}
	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(response))
}

// ListPizzas handles GET /api/v1/pizzas requests.
func (h *RESTHandler) ListPizzas(w http.ResponseWriter, r *http.Request) {
	pizzas, err := h.board.VisiblePizzas(r.Context())
	if err != nil {
		h.logger.Error("failed to list pizzas", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to retrieve pizzas")
		return
	}

	h.writeJSON(w, http.StatusOK, model.NewSuccessResponse(pizzas))
}

// CreatePizza handles POST /api/v1/pizzas requests. The request has no body.
func (h *RESTHandler) CreatePizza(w http.ResponseWriter, r *http.Request) {
	pizza, err := h.board.AddPizza(r.Context())
	if err != nil {
		h.handleBoardError(w, err, "add pizza")
		return
	}

	h.writeJSON(w, http.StatusCreated, model.NewSuccessResponse(pizza))
}

// DeletePizza handles DELETE /api/v1/pizzas/{id} requests.
func (h *RESTHandler) DeletePizza(w http.ResponseWriter, r *http.Request) {
	ref, err := model.ParsePizzaRef(mux.Vars(r)["id"])
	if err != nil {
		h.logger.Warn("invalid pizza id", zap.Error(err))
		h.writeError(w, http.StatusBadRequest, "invalid pizza ID")
		return
	}

	if err := h.board.RemovePizza(r.Context(), ref); err != nil {
		h.handleBoardError(w, err, "remove pizza")
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// handleBoardError maps mediator errors to HTTP responses.
func (h *RESTHandler) handleBoardError(w http.ResponseWriter, err error, operation string) {
	switch {
	case errors.Is(err, octopus.ErrPizzaNotFound):
		h.writeError(w, http.StatusNotFound, "pizza not found")
	case errors.Is(err, model.ErrInvalidID), errors.Is(err, model.ErrMissingID):
		h.writeError(w, http.StatusBadRequest, "invalid pizza ID")
	default:
		h.logger.Error("board operation failed", zap.String("operation", operation), zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// writeJSON writes a JSON response with the given status code.
func (h *RESTHandler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return
	}

	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

// writeError writes an error response with the given status code and message.
func (h *RESTHandler) writeError(w http.ResponseWriter, status int, message string) {
	response := model.ErrorResponse{
		Code:    status,
		Message: message,
	}
	h.writeJSON(w, status, response)
}
