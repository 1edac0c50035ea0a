// Package domain defines the core trading entities shared across the engine
// room: bots, strategy instances, signals, orders, trades and positions.
package domain

import (
	"time"
)

// BotStatus enumerates the lifecycle states of a configured trading bot.
type BotStatus string

const (
	BotStatusStopped BotStatus = "stopped"
	BotStatusRunning BotStatus = "running"
	BotStatusPaused  BotStatus = "paused"
	BotStatusError   BotStatus = "error"
)

// Exchange identifies a supported venue.
type Exchange string

const (
	ExchangeBinance Exchange = "binance"
	ExchangeBybit   Exchange = "bybit"
)

// StrategyKind identifies the strategy implementation backing a bot.
type StrategyKind string

const (
	StrategyKindGrid     StrategyKind = "grid"
	StrategyKindDCA      StrategyKind = "dca"
	StrategyKindScalping StrategyKind = "scalping"
)

// Bot is a user-owned configuration binding a strategy to a symbol on an
// exchange, with its own credential set and risk profile.
type Bot struct {
	ID           string
	UserID       string
	Exchange     Exchange
	Symbol       string
	Strategy     StrategyKind
	Params       map[string]any
	Status       BotStatus
	CredentialID string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// StrategyInstance is the running counterpart of a Bot: the live strategy
// object plus the bookkeeping the runtime needs to route events to it.
type StrategyInstance struct {
	BotID     string
	UserID    string
	Exchange  Exchange
	Symbol    string
	Kind      StrategyKind
	StartedAt time.Time
	StoppedAt *time.Time
	LastError string
}
