package notification

import (
	"context"
	"sync"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/socket"
)

const deliveryTimeout = 5 * time.Second

// Sink receives committed change events. Delivery failures are logged and
// never reach the command that produced the event.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, ev ChangeEvent) error
}

// Service fans change events out to its sinks from a single background
// worker. Publish never blocks; when the queue is full the event is
// dropped.
type Service struct {
	mu      sync.RWMutex
	sinks   []Sink
	queue   chan ChangeEvent
	closed  bool
	started bool
	done    chan struct{}
}

// NewService creates a dispatcher with room for buffer queued events
func NewService(buffer int, sinks ...Sink) *Service {
	if buffer <= 0 {
		buffer = 1
	}
	return &Service{
		sinks: sinks,
		queue: make(chan ChangeEvent, buffer),
		done:  make(chan struct{}),
	}
}

// AddSink registers another sink. Safe to call at any time.
func (s *Service) AddSink(sink Sink) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sinks = append(s.sinks, sink)
}

// SetBroadcaster adds a websocket sink for the broadcaster.
func (s *Service) SetBroadcaster(b *socket.Broadcaster) {
	s.AddSink(NewSocketSink(b))
}

// Start launches the delivery worker.
func (s *Service) Start() {
	s.mu.Lock()
	if s.started {
		s.mu.Unlock()
		return
	}
	s.started = true
	s.mu.Unlock()

	go s.run()
	logging.For("notification").Info("Change event dispatcher started")
}

// Publish queues ev for delivery.
func (s *Service) Publish(ev ChangeEvent) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return
	}
	select {
	case s.queue <- ev:
	default:
		logging.For("notification").WithFields(map[string]interface{}{
			"kind":        ev.Kind,
			"taskId":      ev.TaskID,
			"workspaceId": ev.WorkspaceID,
		}).Warn("Event queue full, dropping change event")
	}
}

// Close stops accepting events and waits for queued ones to be delivered.
func (s *Service) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	started := s.started
	close(s.queue)
	s.mu.Unlock()

	if started {
		<-s.done
	}
	logging.For("notification").Info("Change event dispatcher stopped")
}

func (s *Service) run() {
	defer close(s.done)
	for ev := range s.queue {
		s.deliver(ev)
	}
}

func (s *Service) deliver(ev ChangeEvent) {
	s.mu.RLock()
	sinks := make([]Sink, len(s.sinks))
	copy(sinks, s.sinks)
	s.mu.RUnlock()

	for _, sink := range sinks {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		err := sink.Deliver(ctx, ev)
		cancel()
		if err != nil {
			logging.For("notification").WithError(err).WithFields(map[string]interface{}{
				"sink":   sink.Name(),
				"kind":   ev.Kind,
				"taskId": ev.TaskID,
			}).Warn("Change event delivery failed")
		}
	}
}
