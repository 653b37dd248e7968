// Package octopus connects the pizza store to the presenter. It is the only
// component that holds references to both; the presenter never sees the store
// and the store never sees the presenter.
package octopus

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/pizzaboard/internal/model"
	"github.com/vyrodovalexey/pizzaboard/internal/store"
)

// Mediator errors.
var (
	ErrPizzaNotFound = errors.New("pizza not found")
	ErrNoRenderer    = errors.New("no renderer attached")
)

// RenderPort is implemented by the presenter.
type RenderPort interface {
	// Init prepares the presenter and performs the first render.
	Init(ctx context.Context) error

	// Render redraws the visible pizzas.
	Render(ctx context.Context) error
}

// Octopus owns the pizza state and requests a redraw after every mutation.
type Octopus struct {
	mu       sync.RWMutex
	state    *store.State
	renderer RenderPort
	logger   *zap.Logger
}

// New creates an Octopus that owns the given state.
func New(state *store.State, logger *zap.Logger) *Octopus {
	if state == nil {
		state = store.New()
	}
	return &Octopus{
		state:  state,
		logger: logger,
	}
}

// Attach wires the presenter in. It must be called once before Init.
func (o *Octopus) Attach(renderer RenderPort) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.renderer = renderer
}

// Init hands control to the presenter so it can bind its affordances and
// draw the initial list.
func (o *Octopus) Init(ctx context.Context) error {
	renderer, err := o.currentRenderer()
	if err != nil {
		return err
	}

	if err := renderer.Init(ctx); err != nil {
		return fmt.Errorf("init presenter: %w", err)
	}

	o.logger.Info("pizza board initialized")
	return nil
}

// AddPizza appends a new visible pizza with the next id.
func (o *Octopus) AddPizza(ctx context.Context) (model.Pizza, error) {
	select {
	case <-ctx.Done():
		return model.Pizza{}, fmt.Errorf("add pizza: %w", ctx.Err())
	default:
	}

	o.mu.Lock()
	o.state.LastID++
	pizza := model.Pizza{
		ID:      o.state.LastID,
		Visible: true,
	}
	o.state.Pizzas = append(o.state.Pizzas, pizza)
	pizzasVisible.Set(float64(o.countVisibleLocked()))
	o.mu.Unlock()

	pizzasAddedTotal.Inc()
	o.logger.Debug("pizza added", zap.Int("id", pizza.ID))

	if err := o.render(ctx); err != nil {
		return pizza, err
	}

	return pizza, nil
}

// RemovePizza hides the pizza the reference points at. Hiding a pizza that is
// already hidden succeeds and still triggers a redraw.
func (o *Octopus) RemovePizza(ctx context.Context, ref model.PizzaRef) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("remove pizza: %w", ctx.Err())
	default:
	}

	o.mu.Lock()
	idx := o.indexLocked(ref.ID)
	if idx < 0 {
		o.mu.Unlock()
		return fmt.Errorf("remove pizza %d: %w", ref.ID, ErrPizzaNotFound)
	}
	wasVisible := o.state.Pizzas[idx].Visible
	o.state.Pizzas[idx].Visible = false
	// The gauge is set under the lock so concurrent updates cannot reorder it.
	pizzasVisible.Set(float64(o.countVisibleLocked()))
	o.mu.Unlock()

	if wasVisible {
		pizzasRemovedTotal.Inc()
	}
	o.logger.Debug("pizza removed", zap.Int("id", ref.ID), zap.Bool("was_visible", wasVisible))

	return o.render(ctx)
}

// VisiblePizzas returns a snapshot of the visible pizzas in creation order.
func (o *Octopus) VisiblePizzas(ctx context.Context) ([]model.Pizza, error) {
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("visible pizzas: %w", ctx.Err())
	default:
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	visible := make([]model.Pizza, 0, len(o.state.Pizzas))
	for _, p := range o.state.Pizzas {
		if p.Visible {
			visible = append(visible, p)
		}
	}

	return visible, nil
}

// Stats reports how many pizzas were created and how many are still shown.
func (o *Octopus) Stats(ctx context.Context) (model.Stats, error) {
	select {
	case <-ctx.Done():
		return model.Stats{}, fmt.Errorf("stats: %w", ctx.Err())
	default:
	}

	o.mu.RLock()
	defer o.mu.RUnlock()

	visible := o.countVisibleLocked()
	return model.Stats{
		Created: len(o.state.Pizzas),
		Visible: visible,
		Hidden:  len(o.state.Pizzas) - visible,
	}, nil
}

// indexLocked finds the position of the pizza with the given id. Ids match
// 1-based positions because the sequence is append-only, so the positional
// slot is checked first.
func (o *Octopus) indexLocked(id int) int {
	if id < 1 {
		return -1
	}
	if id <= len(o.state.Pizzas) && o.state.Pizzas[id-1].ID == id {
		return id - 1
	}
	return slices.IndexFunc(o.state.Pizzas, func(p model.Pizza) bool {
		return p.ID == id
	})
}

func (o *Octopus) countVisibleLocked() int {
	n := 0
	for _, p := range o.state.Pizzas {
		if p.Visible {
			n++
		}
	}
	return n
}

// render asks the presenter to redraw. The state lock must not be held: the
// presenter queries VisiblePizzas while rendering.
func (o *Octopus) render(ctx context.Context) error {
	renderer, err := o.currentRenderer()
	if err != nil {
		return err
	}

	rendersTotal.Inc()
	if err := renderer.Render(ctx); err != nil {
		o.logger.Error("render failed", zap.Error(err))
		return fmt.Errorf("render: %w", err)
	}
	return nil
}

func (o *Octopus) currentRenderer() (RenderPort, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	if o.renderer == nil {
		return nil, ErrNoRenderer
	}
	return o.renderer, nil
}
