// Package view draws the pizza list onto a render surface and turns user
// gestures on that surface into calls on the data port.
package view

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/vyrodovalexey/pizzaboard/internal/model"
)

// IDMarker is replaced with the pizza id in every rendered fragment.
const IDMarker = "{{id}}"

// Presenter errors.
var (
	ErrNotInitialized     = errors.New("presenter not initialized")
	ErrAlreadyInitialized = errors.New("presenter already initialized")
	ErrEmptyTemplate      = errors.New("pizza template is empty")
)

// DataPort is the set of operations the presenter may call on the mediator.
type DataPort interface {
	AddPizza(ctx context.Context) (model.Pizza, error)
	RemovePizza(ctx context.Context, ref model.PizzaRef) error
	VisiblePizzas(ctx context.Context) ([]model.Pizza, error)
}

// Surface is the display the presenter draws on.
type Surface interface {
	// Template returns the fragment markup used for one pizza row.
	Template() (string, error)

	// Clear removes everything from the list container.
	Clear()

	// Append adds a fragment at the end of the list container.
	Append(fragment string)

	// OnAdd binds the add control.
	OnAdd(fn func(ctx context.Context))

	// OnRemove binds a single handler for every remove control inside the
	// list container. The handler receives the data attributes of the row
	// that contains the clicked control.
	OnRemove(fn func(ctx context.Context, row map[string]string))
}

// Presenter renders visible pizzas and forwards add and remove gestures.
type Presenter struct {
	data    DataPort
	surface Surface
	logger  *zap.Logger

	mu       sync.Mutex
	template string
	ready    bool
}

// NewPresenter creates a Presenter drawing on surface and reading through data.
func NewPresenter(data DataPort, surface Surface, logger *zap.Logger) *Presenter {
	return &Presenter{
		data:    data,
		surface: surface,
		logger:  logger,
	}
}

// Init captures the template, binds the affordances and draws the list once.
func (p *Presenter) Init(ctx context.Context) error {
	p.mu.Lock()
	if p.ready {
		p.mu.Unlock()
		return ErrAlreadyInitialized
	}

	tmpl, err := p.surface.Template()
	if err != nil {
		p.mu.Unlock()
		return fmt.Errorf("read pizza template: %w", err)
	}
	if strings.TrimSpace(tmpl) == "" {
		p.mu.Unlock()
		return ErrEmptyTemplate
	}

	p.template = tmpl
	p.ready = true
	p.mu.Unlock()

	p.surface.OnAdd(p.handleAdd)
	p.surface.OnRemove(p.handleRemove)

	return p.Render(ctx)
}

// Render clears the surface and redraws every visible pizza. It always
// redraws in full.
func (p *Presenter) Render(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if !p.ready {
		return ErrNotInitialized
	}

	pizzas, err := p.data.VisiblePizzas(ctx)
	if err != nil {
		return fmt.Errorf("query visible pizzas: %w", err)
	}

	p.surface.Clear()
	for _, pizza := range pizzas {
		p.surface.Append(fill(p.template, pizza))
	}

	return nil
}

func (p *Presenter) handleAdd(ctx context.Context) {
	pizza, err := p.data.AddPizza(ctx)
	if err != nil {
		p.logger.Error("add pizza failed", zap.Error(err))
		return
	}
	p.logger.Info("pizza added", zap.Int("id", pizza.ID))
}

func (p *Presenter) handleRemove(ctx context.Context, row map[string]string) {
	ref, err := model.RefFromRow(row)
	if err != nil {
		p.logger.Warn("ignoring remove on unresolvable row", zap.Any("row", row), zap.Error(err))
		return
	}

	if err := p.data.RemovePizza(ctx, ref); err != nil {
		p.logger.Warn("remove pizza failed", zap.Int("id", ref.ID), zap.Error(err))
		return
	}
	p.logger.Info("pizza removed", zap.Int("id", ref.ID))
}

func fill(tmpl string, pizza model.Pizza) string {
	return strings.ReplaceAll(tmpl, IDMarker, strconv.Itoa(pizza.ID))
}
