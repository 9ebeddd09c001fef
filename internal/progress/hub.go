package progress

import (
	"context"
	"errors"
	"sync"

	"github.com/pot-code/course-progress/internal/infrastructure/driver"
	"go.uber.org/zap"
)

// ErrSubscriptionClosed the bus closed the subscription before the hub was stopped
var ErrSubscriptionClosed = errors.New("lesson message subscription closed")

// Hub fans messages of the bus channel out to the bridges of open sessions
type Hub struct {
	bus     driver.MessageBus
	channel string
	logger  *zap.Logger

	mu      sync.RWMutex
	bridges map[*Bridge]context.Context
}

// NewHub ...
func NewHub(bus driver.MessageBus, channel string, logger *zap.Logger) *Hub {
	return &Hub{
		bus:     bus,
		channel: channel,
		logger:  logger,
		bridges: make(map[*Bridge]context.Context),
	}
}

// Register deliver messages to bridge until the returned function is called.
// Refreshes triggered by the hub run with ctx.
func (h *Hub) Register(ctx context.Context, bridge *Bridge) (unregister func()) {
	h.mu.Lock()
	h.bridges[bridge] = ctx
	h.mu.Unlock()
	return func() {
		h.mu.Lock()
		delete(h.bridges, bridge)
		h.mu.Unlock()
	}
}

// Run subscribe to the channel and dispatch until ctx is done
func (h *Hub) Run(ctx context.Context) error {
	sub, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		return err
	}
	defer sub.Close()

	h.logger.Info("listening for lesson messages", zap.String("channel", h.channel))
	for {
		select {
		case <-ctx.Done():
			return nil
		case payload, ok := <-sub.Messages():
			if !ok {
				return ErrSubscriptionClosed
			}
			h.Dispatch(payload)
		}
	}
}

// Dispatch hand payload to every registered bridge addressed by it, each
// bridge refreshes in its own goroutine
func (h *Hub) Dispatch(payload []byte) {
	msg, err := ParseMessage(payload)
	if err != nil {
		h.logger.Debug("dropped lesson message", zap.Error(err))
		return
	}

	h.mu.RLock()
	defer h.mu.RUnlock()
	for bridge, ctx := range h.bridges {
		if msg.Addresses(bridge.EnrolmentID()) {
			go bridge.Handle(ctx, msg)
		}
	}
}
