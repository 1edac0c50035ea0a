package strategy

import (
	"sync"
)

// WorkerPool serializes callback delivery per key (bot ID) while letting
// different keys run fully concurrently: each key gets its own bounded
// queue and a single goroutine draining it, so one strategy's OnTick never
// reorders relative to its own OnOrderFilled, but a slow strategy can never
// stall another bot's dispatch.
type WorkerPool struct {
	queueDepth int

	mu    sync.Mutex
	lanes map[string]chan func()
}

// NewWorkerPool constructs a pool where each per-key lane buffers up to
// queueDepth pending callbacks before Submit drops the oldest to make room.
func NewWorkerPool(queueDepth int) *WorkerPool {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &WorkerPool{queueDepth: queueDepth, lanes: make(map[string]chan func())}
}

// Submit enqueues fn onto key's lane, starting the lane's worker goroutine
// on first use. If the lane is saturated, the oldest pending callback is
// dropped to admit fn, preferring freshness over completeness for bursty
// market data.
func (p *WorkerPool) Submit(key string, fn func()) {
	p.mu.Lock()
	lane, ok := p.lanes[key]
	if !ok {
		lane = make(chan func(), p.queueDepth)
		p.lanes[key] = lane
		go p.drain(lane)
	}
	p.mu.Unlock()

	select {
	case lane <- fn:
	default:
		select {
		case <-lane:
		default:
		}
		select {
		case lane <- fn:
		default:
		}
	}
}

func (p *WorkerPool) drain(lane chan func()) {
	for fn := range lane {
		fn()
	}
}

// Remove closes and discards key's lane; callbacks already queued on it
// still run before the lane's goroutine exits.
func (p *WorkerPool) Remove(key string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if lane, ok := p.lanes[key]; ok {
		delete(p.lanes, key)
		close(lane)
	}
}
