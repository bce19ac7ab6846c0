package events

import (
	"sync"
	"time"
)

// EventType represents different types of events in the system
type EventType string

const (
	EventSignalGenerated   EventType = "SIGNAL_GENERATED"
	EventSignalVetoed      EventType = "SIGNAL_VETOED"
	EventAdmissionRejected EventType = "ADMISSION_REJECTED"
	EventTradeOpened       EventType = "TRADE_OPENED"
	EventTPHit             EventType = "TP_HIT"
	EventSLHit             EventType = "SL_HIT"
	EventReversalClosed    EventType = "REVERSAL_CLOSED"
	EventTradeClosed       EventType = "TRADE_CLOSED"
	EventBreakevenSet      EventType = "BREAKEVEN_SET"
	EventTrailingUpdate    EventType = "TRAILING_UPDATE"
	EventDailyReset        EventType = "DAILY_RESET"
	EventSystemStatus      EventType = "SYSTEM_STATUS"
	EventError             EventType = "ERROR"
)

// Event represents a system event
type Event struct {
	Type      EventType              `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// Subscriber is a function that handles events
type Subscriber func(Event)

// EventBus manages event publishing and subscriptions
type EventBus struct {
	mu          sync.RWMutex
	subscribers map[EventType][]Subscriber
	allSubs     []Subscriber // Subscribers to all events
}

// NewEventBus creates a new event bus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[EventType][]Subscriber),
		allSubs:     make([]Subscriber, 0),
	}
}

// Subscribe registers a subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType EventType, subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], subscriber)
}

// SubscribeAll registers a subscriber for all events
func (eb *EventBus) SubscribeAll(subscriber Subscriber) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.allSubs = append(eb.allSubs, subscriber)
}

// Publish sends an event to all subscribers
func (eb *EventBus) Publish(event Event) {
	eb.mu.RLock()
	defer eb.mu.RUnlock()

	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	// Notify specific subscribers
	if subs, ok := eb.subscribers[event.Type]; ok {
		for _, sub := range subs {
			go sub(event) // Run in goroutine to avoid blocking
		}
	}

	// Notify all-event subscribers
	for _, sub := range eb.allSubs {
		go sub(event)
	}
}

// PublishSignal publishes a signal generated event
func (eb *EventBus) PublishSignal(symbol, direction string, strength float64, confluences []string) {
	eb.Publish(Event{
		Type: EventSignalGenerated,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"direction":   direction,
			"strength":    strength,
			"confluences": confluences,
		},
	})
}

// PublishSignalVetoed publishes a signal vetoed event
func (eb *EventBus) PublishSignalVetoed(symbol, reason string) {
	eb.Publish(Event{
		Type: EventSignalVetoed,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishAdmissionRejected publishes an admission rejection
func (eb *EventBus) PublishAdmissionRejected(symbol, reason string) {
	eb.Publish(Event{
		Type: EventAdmissionRejected,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
		},
	})
}

// PublishTradeOpened publishes a trade opened event
func (eb *EventBus) PublishTradeOpened(symbol, direction string, entryPrice, lotSize, slPrice, tp1, tp2, tp3 float64) {
	eb.Publish(Event{
		Type: EventTradeOpened,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"direction":   direction,
			"entry_price": entryPrice,
			"lot_size":    lotSize,
			"sl_price":    slPrice,
			"tp1_price":   tp1,
			"tp2_price":   tp2,
			"tp3_price":   tp3,
		},
	})
}

// PublishTPHit publishes a partial take-profit event
func (eb *EventBus) PublishTPHit(symbol string, level int, price, closedLots, pnl float64) {
	eb.Publish(Event{
		Type: EventTPHit,
		Data: map[string]interface{}{
			"symbol":      symbol,
			"level":       level,
			"price":       price,
			"closed_lots": closedLots,
			"pnl":         pnl,
		},
	})
}

// PublishTradeClosed publishes a full close with its reason
func (eb *EventBus) PublishTradeClosed(symbol, reason string, price, pnl float64) {
	eventType := EventTradeClosed
	switch reason {
	case "SL":
		eventType = EventSLHit
	case "REVERSAL":
		eventType = EventReversalClosed
	}

	eb.Publish(Event{
		Type: eventType,
		Data: map[string]interface{}{
			"symbol": symbol,
			"reason": reason,
			"price":  price,
			"pnl":    pnl,
		},
	})
}

// PublishDailyReset publishes the start of a new trading day
func (eb *EventBus) PublishDailyReset(date string) {
	eb.Publish(Event{
		Type: EventDailyReset,
		Data: map[string]interface{}{
			"date": date,
		},
	})
}

// PublishSystemStatus publishes a status summary
func (eb *EventBus) PublishSystemStatus(openTrades int, dailyPnL float64, dailyTrades int) {
	eb.Publish(Event{
		Type: EventSystemStatus,
		Data: map[string]interface{}{
			"open_trades":  openTrades,
			"daily_pnl":    dailyPnL,
			"daily_trades": dailyTrades,
		},
	})
}

// PublishError publishes an error event
func (eb *EventBus) PublishError(source, message string, err error) {
	data := map[string]interface{}{
		"source":  source,
		"message": message,
	}
	if err != nil {
		data["error"] = err.Error()
	}
	eb.Publish(Event{
		Type: EventError,
		Data: data,
	})
}
