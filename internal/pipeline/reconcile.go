package pipeline

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/xor-engine/corebot/internal/domain"
	"github.com/xor-engine/corebot/internal/exchange"
)

// DefaultReconcileInterval is how often Reconciler diffs local state against
// the venue when no explicit interval is configured.
const DefaultReconcileInterval = 10 * time.Second

// Reconciler periodically (and on-demand, e.g. after an adapter reconnect)
// diffs the pipeline's local order/position records against the venue's own
// view. Order drift that a dropped fill notification would otherwise leave
// unreconciled is corrected; position drift is only logged.
type Reconciler struct {
	p        *Pipeline
	interval time.Duration
}

// NewReconciler constructs a Reconciler for p, using interval between
// sweeps (DefaultReconcileInterval if zero or negative).
func NewReconciler(p *Pipeline, interval time.Duration) *Reconciler {
	if interval <= 0 {
		interval = DefaultReconcileInterval
	}
	return &Reconciler{p: p, interval: interval}
}

// Run sweeps every interval until ctx is cancelled.
func (r *Reconciler) Run(ctx context.Context) {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.sweepAll(ctx)
		}
	}
}

// ReconcileNow runs a single sweep immediately; callers invoke this after an
// adapter reconnect, when a stream gap may have been missed.
func (r *Reconciler) ReconcileNow(ctx context.Context) {
	r.sweepAll(ctx)
}

func (r *Reconciler) sweepAll(ctx context.Context) {
	for botID, cfg := range r.p.configs {
		if err := r.sweepBot(ctx, botID, cfg); err != nil {
			log.Printf("pipeline: reconcile bot %s: %v", botID, err)
		}
	}
}

func (r *Reconciler) sweepBot(ctx context.Context, botID string, cfg BotConfig) error {
	adapter, ok := r.p.resolve(cfg.Exchange)
	if !ok {
		return fmt.Errorf("no adapter for exchange %s", cfg.Exchange)
	}

	if err := r.reconcileOrders(ctx, botID, cfg, adapter); err != nil {
		return fmt.Errorf("reconcile orders: %w", err)
	}
	if err := r.reconcilePositions(ctx, botID, cfg, adapter); err != nil {
		return fmt.Errorf("reconcile positions: %w", err)
	}
	return nil
}

func (r *Reconciler) reconcileOrders(ctx context.Context, botID string, cfg BotConfig, adapter exchange.Adapter) error {
	remote, err := adapter.GetOpenOrders(ctx, cfg.Symbol)
	if err != nil {
		return err
	}
	remoteByClientID := make(map[string]exchange.OrderResult, len(remote))
	for _, ro := range remote {
		remoteByClientID[ro.ClientOrderID] = ro
	}

	for _, local := range r.p.store.OpenOrders(botID) {
		ro, stillOpen := remoteByClientID[local.ClientOrderID]
		if !stillOpen {
			// The venue no longer lists this order as open; it either
			// filled or was cancelled without us seeing the event.
			_ = local.Transition(domain.OrderStatusFilled)
			r.p.store.PutOrder(local)
			continue
		}
		if ro.FilledQuantity.GreaterThan(local.FilledQuantity) {
			delta := ro.FilledQuantity.Sub(local.FilledQuantity)
			if err := r.p.ApplyExchangeFill(ctx, local.ID, delta, ro.AvgFillPrice); err != nil {
				log.Printf("pipeline: reconcile fill for order %s: %v", local.ID, err)
			}
		}
	}
	return nil
}

func (r *Reconciler) reconcilePositions(ctx context.Context, botID string, cfg BotConfig, adapter exchange.Adapter) error {
	remote, err := adapter.GetPositions(ctx)
	if err != nil {
		return err
	}
	for _, rp := range remote {
		if rp.Symbol != cfg.Symbol {
			continue
		}
		local, ok := r.p.store.Position(botID, cfg.Symbol)
		if ok && local.Quantity.Equal(rp.Quantity) {
			continue
		}
		log.Printf("pipeline: position drift detected for bot %s symbol %s (local=%s remote=%s)",
			botID, cfg.Symbol, local.Quantity, rp.Quantity)
	}
	return nil
}
