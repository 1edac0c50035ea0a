package bus

// Canonical topic names published and subscribed across the engine room.
// Handlers that want every market or order event for a symbol subscribe to
// the wildcard form (e.g. "market.tick.*").
const (
	TopicMarketTick      = "market.tick."
	TopicMarketCandle    = "market.candle."
	TopicMarketOrderBook = "market.orderbook."

	TopicSignalNew = "signal.new"

	TopicOrderSubmitted = "order.submitted"
	TopicOrderFilled    = "order.filled"
	TopicOrderCancelled = "order.cancelled"
	TopicOrderRejected  = "order.rejected"

	TopicPositionUpdate = "position.update"

	TopicRiskBreach     = "risk.breach"
	TopicKillSwitch     = "risk.killswitch"

	TopicBotStarted = "bot.started"
	TopicBotStopped = "bot.stopped"
	TopicBotError   = "bot.error"
)
