package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/Marga-Ghale/ora-workspace-engine/internal/logging"
	"github.com/Marga-Ghale/ora-workspace-engine/internal/socket"
	"github.com/sony/gobreaker"
)

// ============================================
// WebSocket sink
// ============================================

var socketMessageTypes = map[EventKind]socket.MessageType{
	KindTaskCreated:       socket.MessageTaskCreated,
	KindTaskUpdated:       socket.MessageTaskUpdated,
	KindTaskAssigned:      socket.MessageTaskAssigned,
	KindTaskCancelled:     socket.MessageTaskCancelled,
	KindCommentAdded:      socket.MessageCommentAdded,
	KindCommentEdited:     socket.MessageCommentUpdated,
	KindCommentDeleted:    socket.MessageCommentDeleted,
	KindAttachmentAdded:   socket.MessageAttachmentAdded,
	KindAttachmentRemoved: socket.MessageAttachmentRemoved,
	KindMemberUnassigned:  socket.MessageTaskAssigned,
}

type socketSink struct {
	broadcaster *socket.Broadcaster
}

// NewSocketSink pushes events to clients watching the workspace room.
func NewSocketSink(b *socket.Broadcaster) Sink {
	return &socketSink{broadcaster: b}
}

func (s *socketSink) Name() string { return "websocket" }

func (s *socketSink) Deliver(ctx context.Context, ev ChangeEvent) error {
	if s.broadcaster.WorkspaceWatchers(ev.WorkspaceID) == 0 {
		return nil
	}
	msgType, ok := socketMessageTypes[ev.Kind]
	if !ok {
		msgType = socket.MessageTaskUpdated
	}
	s.broadcaster.BroadcastWorkspaceEvent(ev.WorkspaceID, msgType, ev.Payload(), ev.ActorID)
	return nil
}

// ============================================
// Redis pub/sub sink
// ============================================

// Publisher is the subset of the redis client the sink needs.
type Publisher interface {
	Publish(ctx context.Context, channel string, value interface{}) error
}

type redisSink struct {
	publisher Publisher
	prefix    string
	breaker   *gobreaker.CircuitBreaker
}

// NewRedisSink publishes every event on "<prefix>:<workspaceId>". A
// circuit breaker stops hammering redis while it is unavailable.
func NewRedisSink(publisher Publisher, prefix string) Sink {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "redis-events-cb",
		MaxRequests: 1,
		Timeout:     5 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures > 3
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logging.For("notification").WithFields(map[string]interface{}{
				"breaker": name,
				"from":    from.String(),
				"to":      to.String(),
			}).Info("Circuit breaker state changed")
		},
	})
	return &redisSink{publisher: publisher, prefix: prefix, breaker: breaker}
}

func (s *redisSink) Name() string { return "redis" }

func (s *redisSink) Deliver(ctx context.Context, ev ChangeEvent) error {
	channel := fmt.Sprintf("%s:%s", s.prefix, ev.WorkspaceID)
	_, err := s.breaker.Execute(func() (interface{}, error) {
		return nil, s.publisher.Publish(ctx, channel, ev.Payload())
	})
	return err
}

// ============================================
// Audit log sink
// ============================================

type logSink struct{}

// NewLogSink records every change at info level.
func NewLogSink() Sink {
	return logSink{}
}

func (logSink) Name() string { return "log" }

func (logSink) Deliver(ctx context.Context, ev ChangeEvent) error {
	logging.For("audit").WithFields(map[string]interface{}{
		"kind":        ev.Kind,
		"workspaceId": ev.WorkspaceID,
		"taskId":      ev.TaskID,
		"actorId":     ev.ActorID,
	}).Info("Task changed")
	return nil
}
