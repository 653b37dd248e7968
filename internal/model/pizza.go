// Package model defines data structures used throughout the application.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Validation errors for PizzaRef.
var (
	ErrMissingID = errors.New("pizza reference has no id")
	ErrInvalidID = errors.New("pizza id must be a positive integer")
)

// Pizza is a single entry on the board. Removal hides a pizza by clearing
// Visible; the record itself is kept.
type Pizza struct {
	ID      int  `json:"id"`
	Visible bool `json:"visible"`
}

// PizzaRef identifies a previously created pizza.
type PizzaRef struct {
	ID int `json:"id"`
}

// Validate checks that the reference carries a usable id.
func (r PizzaRef) Validate() error {
	if r.ID < 1 {
		return ErrInvalidID
	}
	return nil
}

// ParsePizzaRef builds a reference from a textual id such as a path variable
// or a row's data attribute.
func ParsePizzaRef(raw string) (PizzaRef, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return PizzaRef{}, ErrMissingID
	}

	id, err := strconv.Atoi(raw)
	if err != nil {
		return PizzaRef{}, fmt.Errorf("%w: %q", ErrInvalidID, raw)
	}

	ref := PizzaRef{ID: id}
	if err := ref.Validate(); err != nil {
		return PizzaRef{}, err
	}

	return ref, nil
}

// RefFromRow resolves the data attributes of a list row into a reference.
func RefFromRow(row map[string]string) (PizzaRef, error) {
	raw, ok := row["id"]
	if !ok {
		return PizzaRef{}, ErrMissingID
	}
	return ParsePizzaRef(raw)
}

// Stats summarizes the board.
type Stats struct {
	Created int `json:"created"`
	Visible int `json:"visible"`
	Hidden  int `json:"hidden"`
}

// APIResponse is a generic wrapper for API responses.
type APIResponse[T any] struct {
	Success bool   `json:"success"`
	Data    T      `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

// NewSuccessResponse creates a successful API response.
func NewSuccessResponse[T any](data T) APIResponse[T] {
	return APIResponse[T]{
		Success: true,
		Data:    data,
	}
}

// ErrorResponse represents an error response structure.
type ErrorResponse struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// SurfaceMessage is a message exchanged with a browser over the render
// surface connection. The server sends clear and append; clients send click.
type SurfaceMessage struct {
	Type      string            `json:"type"`
	HTML      string            `json:"html,omitempty"`
	Target    string            `json:"target,omitempty"`
	Row       map[string]string `json:"row,omitempty"`
	Timestamp time.Time         `json:"timestamp,omitempty"`
}

// Surface message types.
const (
	SurfaceMessageClear  = "clear"
	SurfaceMessageAppend = "append"
	SurfaceMessageClick  = "click"
)

// Click targets understood by the surface.
const (
	TargetAddPizza    = "add-pizza"
	TargetRemovePizza = "remove-pizza"
)

// NewClearMessage creates a message telling clients to empty the list.
func NewClearMessage() SurfaceMessage {
	return SurfaceMessage{
		Type:      SurfaceMessageClear,
		Timestamp: time.Now().UTC(),
	}
}

// NewAppendMessage creates a message telling clients to append a fragment.
func NewAppendMessage(fragment string) SurfaceMessage {
	return SurfaceMessage{
		Type:      SurfaceMessageAppend,
		HTML:      fragment,
		Timestamp: time.Now().UTC(),
	}
}
