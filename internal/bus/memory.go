package bus

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	concpool "github.com/sourcegraph/conc/pool"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/xor-engine/corebot/errs"
)

// MemoryConfig configures a MemoryBus.
type MemoryConfig struct {
	// BufferSize is the per-subscriber channel depth.
	BufferSize int
	// FanoutWorkers bounds the concurrency used to deliver a single publish
	// to its subscribers.
	FanoutWorkers int
}

func (c MemoryConfig) normalize() MemoryConfig {
	if c.BufferSize <= 0 {
		c.BufferSize = 256
	}
	if c.FanoutWorkers <= 0 {
		c.FanoutWorkers = 8
	}
	return c
}

type subscriber struct {
	pattern string
	ctx     context.Context
	cancel  context.CancelFunc
	ch      chan Event
	once    sync.Once
}

func (s *subscriber) close() {
	s.once.Do(func() {
		s.cancel()
		close(s.ch)
	})
}

// MemoryBus is an in-process implementation of Bus, fanning out each publish
// to all subscriptions whose pattern matches the event topic.
type MemoryBus struct {
	cfg MemoryConfig

	ctx    context.Context
	cancel context.CancelFunc

	mu           sync.RWMutex
	subscribers  map[SubscriptionID]*subscriber
	shutdownOnce sync.Once
	nextID       uint64
	workers      int

	eventsPublishedCounter metric.Int64Counter
	subscriberGauge        metric.Int64UpDownCounter
	deliveryErrorCounter   metric.Int64Counter
	fanoutHistogram        metric.Int64Histogram
	publishDuration        metric.Float64Histogram
	deliveryBlockedCounter metric.Int64Counter
}

// NewMemoryBus constructs a memory-backed bus.
func NewMemoryBus(cfg MemoryConfig) *MemoryBus {
	cfg = cfg.normalize()
	ctx, cancel := context.WithCancel(context.Background())

	b := &MemoryBus{
		cfg:         cfg,
		ctx:         ctx,
		cancel:      cancel,
		subscribers: make(map[SubscriptionID]*subscriber),
		workers:     cfg.FanoutWorkers,
	}

	meter := otel.Meter("bus")
	b.eventsPublishedCounter, _ = meter.Int64Counter("bus.events.published",
		metric.WithDescription("Number of events published to the bus"), metric.WithUnit("{event}"))
	b.subscriberGauge, _ = meter.Int64UpDownCounter("bus.subscribers",
		metric.WithDescription("Number of active subscriptions"), metric.WithUnit("{subscriber}"))
	b.deliveryErrorCounter, _ = meter.Int64Counter("bus.delivery.errors",
		metric.WithDescription("Number of event delivery errors"), metric.WithUnit("{error}"))
	b.fanoutHistogram, _ = meter.Int64Histogram("bus.fanout.size",
		metric.WithDescription("Number of subscribers matched per publish"), metric.WithUnit("{subscriber}"))
	b.publishDuration, _ = meter.Float64Histogram("bus.publish.duration",
		metric.WithDescription("Latency of bus publish operations"), metric.WithUnit("ms"))
	b.deliveryBlockedCounter, _ = meter.Int64Counter("bus.delivery.blocked",
		metric.WithDescription("Number of deliveries dropped due to subscriber backpressure"), metric.WithUnit("{event}"))

	return b
}

// Publish fans the event out to every subscription whose pattern matches the
// topic. Route-first: the subscriber set is snapshotted under a read lock
// before any delivery work begins.
func (b *MemoryBus) Publish(ctx context.Context, evt Event) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if evt.Topic == "" {
		return errs.New("bus/publish", errs.CodeInvalid, errs.WithMessage("topic required"))
	}

	start := time.Now()
	result := "success"
	defer func() {
		if b.publishDuration != nil {
			b.publishDuration.Record(ctx, float64(time.Since(start).Milliseconds()), metric.WithAttributes(
				attribute.String("topic", evt.Topic), attribute.String("result", result)))
		}
	}()

	b.mu.RLock()
	matched := make([]*subscriber, 0, len(b.subscribers))
	for _, sub := range b.subscribers {
		if matchTopic(sub.pattern, evt.Topic) {
			matched = append(matched, sub)
		}
	}
	b.mu.RUnlock()

	if b.fanoutHistogram != nil {
		b.fanoutHistogram.Record(ctx, int64(len(matched)), metric.WithAttributes(attribute.String("topic", evt.Topic)))
	}

	if len(matched) == 0 {
		result = "no_subscribers"
		return nil
	}

	p := concpool.New().WithMaxGoroutines(b.workers)
	errCh := make(chan error, len(matched))
	for _, sub := range matched {
		sub := sub
		p.Go(func() {
			if err := b.deliver(ctx, sub, evt); err != nil {
				errCh <- err
			}
		})
	}
	p.Wait()
	close(errCh)

	for err := range errCh {
		if err != nil {
			result = "dispatch_failed"
			if b.deliveryErrorCounter != nil {
				b.deliveryErrorCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", evt.Topic)))
			}
			return err
		}
	}

	if b.eventsPublishedCounter != nil {
		b.eventsPublishedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", evt.Topic)))
	}
	return nil
}

func (b *MemoryBus) deliver(ctx context.Context, sub *subscriber, evt Event) error {
	select {
	case <-b.ctx.Done():
		return errs.New("bus/publish", errs.CodeUnavailable, errs.WithMessage("bus closed"))
	case <-ctx.Done():
		return fmt.Errorf("deliver context: %w", ctx.Err())
	case <-sub.ctx.Done():
		return nil
	case sub.ch <- evt:
		return nil
	default:
		// Backpressure: drop the oldest queued event to make room, matching
		// the coalescable-under-load posture the bus guarantees for
		// high-frequency market data topics.
		select {
		case <-sub.ch:
		default:
		}
		log.Printf("bus: subscriber buffer full; dropped oldest event topic=%s pattern=%s", evt.Topic, sub.pattern)
		if b.deliveryBlockedCounter != nil {
			b.deliveryBlockedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("topic", evt.Topic)))
		}
		select {
		case sub.ch <- evt:
			return nil
		default:
			return errs.New("bus/publish", errs.CodeUnavailable, errs.WithMessage("subscriber buffer full"))
		}
	}
}

// Subscribe registers for events whose topic matches pattern.
func (b *MemoryBus) Subscribe(ctx context.Context, pattern string) (SubscriptionID, <-chan Event, error) {
	if pattern == "" {
		return "", nil, errs.New("bus/subscribe", errs.CodeInvalid, errs.WithMessage("pattern required"))
	}
	if ctx == nil {
		ctx = context.Background()
	}
	subCtx, cancel := context.WithCancel(ctx)

	sub := &subscriber{
		pattern: pattern,
		ctx:     subCtx,
		cancel:  cancel,
		ch:      make(chan Event, b.cfg.BufferSize),
	}

	id := SubscriptionID(fmt.Sprintf("sub-%d", atomic.AddUint64(&b.nextID, 1)))

	b.mu.Lock()
	b.subscribers[id] = sub
	b.mu.Unlock()

	if b.subscriberGauge != nil {
		b.subscriberGauge.Add(ctx, 1, metric.WithAttributes(attribute.String("pattern", pattern)))
	}

	go func() {
		<-subCtx.Done()
		b.mu.Lock()
		if stored, ok := b.subscribers[id]; ok && stored == sub {
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
		sub.close()
	}()

	return id, sub.ch, nil
}

// Unsubscribe removes a subscription and closes its channel.
func (b *MemoryBus) Unsubscribe(id SubscriptionID) error {
	b.mu.Lock()
	sub, ok := b.subscribers[id]
	if ok {
		delete(b.subscribers, id)
	}
	b.mu.Unlock()
	if !ok {
		return nil
	}
	if b.subscriberGauge != nil {
		b.subscriberGauge.Add(context.Background(), -1, metric.WithAttributes(attribute.String("pattern", sub.pattern)))
	}
	sub.close()
	return nil
}

// Close shuts down the bus and all active subscriptions.
func (b *MemoryBus) Close() error {
	b.shutdownOnce.Do(func() {
		b.cancel()
		b.mu.Lock()
		for id, sub := range b.subscribers {
			sub.close()
			delete(b.subscribers, id)
		}
		b.mu.Unlock()
	})
	return nil
}
