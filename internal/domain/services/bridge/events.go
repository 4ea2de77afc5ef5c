package bridge

import (
	"sync"

	"go.uber.org/zap"

	"github.com/rail-service/cctp_bridge/internal/domain/entities"
)

// broadcaster fans transfer events out to subscribers without ever blocking a transfer
type broadcaster struct {
	mu     sync.RWMutex
	subs   map[int]chan entities.TransferEvent
	nextID int
	buffer int
	closed bool
	logger *zap.Logger
}

func newBroadcaster(buffer int, logger *zap.Logger) *broadcaster {
	if buffer <= 0 {
		buffer = 1
	}
	return &broadcaster{
		subs:   make(map[int]chan entities.TransferEvent),
		buffer: buffer,
		logger: logger,
	}
}

func (b *broadcaster) subscribe() (<-chan entities.TransferEvent, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan entities.TransferEvent, b.buffer)
	if b.closed {
		close(ch)
		return ch, func() {}
	}

	id := b.nextID
	b.nextID++
	b.subs[id] = ch

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			b.mu.Lock()
			defer b.mu.Unlock()
			if sub, ok := b.subs[id]; ok {
				delete(b.subs, id)
				close(sub)
			}
		})
	}
}

func (b *broadcaster) publish(ev entities.TransferEvent) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for id, ch := range b.subs {
		select {
		case ch <- ev:
		default:
			b.logger.Warn("Dropping transfer event for slow subscriber",
				zap.Int("subscriber", id),
				zap.String("execution_id", ev.ExecutionID.String()),
				zap.String("phase", string(ev.Phase)))
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true
	for id, ch := range b.subs {
		delete(b.subs, id)
		close(ch)
	}
}
