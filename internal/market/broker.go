package market

import "errors"

// Sentinel errors for broker operations
var (
	ErrNoData        = errors.New("market data unavailable")
	ErrOrderRejected = errors.New("order rejected by broker")
	ErrUnknownTicket = errors.New("unknown position ticket")
)

// Broker is the market-data and order-execution collaborator. Implementations
// are synchronous; a blocked call stalls the calling loop.
type Broker interface {
	// GetTick returns the current quote, or ErrNoData when the symbol has no
	// fresh quote.
	GetTick(symbol string) (*Tick, error)

	// GetRates returns up to count bars oldest-first, or ErrNoData when the
	// history is unavailable.
	GetRates(symbol string, tf Timeframe, count int) ([]Rate, error)

	// PlaceOrder opens a market position with the given protective levels.
	PlaceOrder(symbol, side string, lotSize, slPrice, tpPrice float64) (*OrderResult, error)

	// ClosePosition closes the full remaining position for a ticket.
	ClosePosition(ticket int64) error

	// PartialClose closes lots out of an open position.
	PartialClose(ticket int64, lots float64) error
}
