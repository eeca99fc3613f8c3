package events

import (
	"sync"
	"time"

	"github.com/code-100-precent/LingVoice/pkg/logger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// 会话生命周期事件类型
const (
	SessionOpened = "session.opened"
	SessionClosed = "session.closed"
	TurnStarted   = "turn.started"
	TurnCompleted = "turn.completed"
	TurnAborted   = "turn.aborted"
)

// Event system event
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
	Source    string                 `json:"source"`
}

// EventHandler event handler function
type EventHandler func(event Event) error

// EventBus event bus
type EventBus struct {
	handlers map[string][]EventHandler
	mu       sync.RWMutex
}

var globalBus *EventBus
var once sync.Once

// GetEventBus gets global event bus instance
func GetEventBus() *EventBus {
	once.Do(func() {
		globalBus = &EventBus{handlers: make(map[string][]EventHandler)}
	})
	return globalBus
}

// Subscribe subscribes to events; "*" matches every type
func (bus *EventBus) Subscribe(eventType string, handler EventHandler) {
	bus.mu.Lock()
	defer bus.mu.Unlock()
	bus.handlers[eventType] = append(bus.handlers[eventType], handler)
}

// Publish publishes an event; handlers run asynchronously
func (bus *EventBus) Publish(event Event) {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	bus.mu.RLock()
	handlers := append([]EventHandler{}, bus.handlers[event.Type]...)
	handlers = append(handlers, bus.handlers["*"]...)
	bus.mu.RUnlock()

	for _, handler := range handlers {
		go func(h EventHandler) {
			if err := h(event); err != nil {
				logger.Error("Event handler failed",
					zap.String("eventType", event.Type),
					zap.Error(err))
			}
		}(handler)
	}
}

// PublishEvent convenience method: publish event
func PublishEvent(eventType string, data map[string]interface{}, source string) {
	GetEventBus().Publish(Event{Type: eventType, Data: data, Source: source})
}
