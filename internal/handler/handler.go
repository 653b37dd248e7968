// Package handler provides the HTTP handlers and the browser render surface
// for the pizza board.
package handler

import "github.com/vyrodovalexey/pizzaboard/internal/model"

// HealthResponse represents the health check response.
type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
}

// ReadyResponse represents the readiness check response.
type ReadyResponse struct {
	Status string      `json:"status"`
	Pizzas model.Stats `json:"pizzas"`
}
