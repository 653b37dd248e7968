// Package store holds the pizza board state.
package store

import "github.com/vyrodovalexey/pizzaboard/internal/model"

// State is the authoritative pizza sequence and id counter. It carries no
// behavior; the mediator that owns it is the only writer.
type State struct {
	// LastID is the id handed to the most recently created pizza.
	LastID int
	// Pizzas is kept in creation order and never shrinks.
	Pizzas []model.Pizza
}

// New creates an empty State.
func New() *State {
	return &State{
		Pizzas: make([]model.Pizza, 0),
	}
}
