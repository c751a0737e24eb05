package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/lumenlabs/lumen/domain/entities"
)

// ErrUnknownAction reports a dispatch for an action with no registered handler.
var ErrUnknownAction = errors.New("unknown action")

// ActionHandler executes one voice command end to end.
type ActionHandler func(ctx context.Context, req entities.CommandRequest) error

// Dispatcher routes classified commands to their handlers. Each action carries
// an armed flag: a second dispatch of the same action while the first is still
// running is dropped, while distinct actions run independently.
type Dispatcher struct {
	mu       sync.Mutex
	handlers map[entities.ActionID]ActionHandler
	armed    map[entities.ActionID]bool
	selected entities.ActionID
	logger   *zap.Logger
}

// NewDispatcher returns a dispatcher with no handlers registered.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[entities.ActionID]ActionHandler),
		armed:    make(map[entities.ActionID]bool),
		selected: entities.DefaultAction,
		logger:   logger,
	}
}

// Register binds a handler to an action, replacing any previous binding.
func (d *Dispatcher) Register(action entities.ActionID, handler ActionHandler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[action] = handler
}

// Select records the action the next ambiguous command resolves to.
// Last write wins.
func (d *Dispatcher) Select(action entities.ActionID) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.selected = action
}

// Selected returns the most recently selected action.
func (d *Dispatcher) Selected() entities.ActionID {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.selected
}

// Dispatch runs the handler for req.Action. While a handler for an action is
// in flight, further dispatches of that same action return immediately
// without invoking the handler.
func (d *Dispatcher) Dispatch(ctx context.Context, req entities.CommandRequest) error {
	d.mu.Lock()
	handler, ok := d.handlers[req.Action]
	if !ok {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAction, req.Action)
	}
	if d.armed[req.Action] {
		d.mu.Unlock()
		d.logger.Debug("dispatch dropped, action already in flight", zap.String("action", req.Action.String()))
		return nil
	}
	d.armed[req.Action] = true
	d.selected = req.Action
	d.mu.Unlock()

	defer func() {
		d.mu.Lock()
		d.armed[req.Action] = false
		d.mu.Unlock()
	}()

	d.logger.Info("dispatching command", zap.String("action", req.Action.String()))
	return handler(ctx, req)
}
