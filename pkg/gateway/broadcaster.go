package gateway

import (
	"sync/atomic"
	"time"

	"github.com/harun/jiya/pkg/conversation"
	"github.com/rs/zerolog"
)

// TranscriptBroadcaster fans persisted conversation turns out to every
// connected observer. It implements the orchestrator's turn sink.
type TranscriptBroadcaster struct {
	observers *ObserverRegistry
	logger    zerolog.Logger
	seq       uint64
}

// NewTranscriptBroadcaster creates a broadcaster over the given registry.
func NewTranscriptBroadcaster(observers *ObserverRegistry, logger zerolog.Logger) *TranscriptBroadcaster {
	return &TranscriptBroadcaster{
		observers: observers,
		logger:    logger,
	}
}

// TurnAppended pushes one persisted turn to all observers. The
// orchestrator never forwards seed turns here.
func (b *TranscriptBroadcaster) TurnAppended(sessionID string, phase conversation.Phase, turn conversation.Turn) {
	event := TurnEvent{
		Event:     EventCallTurn,
		SessionID: sessionID,
		Role:      string(turn.Role),
		Content:   turn.Content,
		ToolName:  turn.ToolName,
		Payload:   turn.Payload,
		Phase:     phase.String(),
	}
	for _, call := range turn.ToolCalls {
		event.ToolCalls = append(event.ToolCalls, call.Name)
	}
	b.send(event)
}

// BroadcastShutdown tells observers the stream is closing.
func (b *TranscriptBroadcaster) BroadcastShutdown() {
	b.send(TurnEvent{
		Event: EventShutdown,
		Data:  map[string]interface{}{"message": "Server is shutting down"},
	})
}

func (b *TranscriptBroadcaster) send(event TurnEvent) {
	event.Type = "event"
	event.Seq = b.nextSeq()
	event.Timestamp = time.Now().UnixMilli()

	observers := b.observers.GetAll()
	if len(observers) == 0 {
		return
	}

	successCount := 0
	failureCount := 0

	for _, observer := range observers {
		if err := observer.Send(event); err != nil {
			b.logger.Warn().
				Err(err).
				Str("observerId", observer.ID).
				Str("event", event.Event).
				Int64("seq", event.Seq).
				Msg("Failed to broadcast to observer")
			failureCount++
		} else {
			successCount++
		}
	}

	b.logger.Debug().
		Str("event", event.Event).
		Str("sessionId", event.SessionID).
		Int64("seq", event.Seq).
		Int("success", successCount).
		Int("failed", failureCount).
		Msg("Event broadcast complete")
}

func (b *TranscriptBroadcaster) nextSeq() int64 {
	return int64(atomic.AddUint64(&b.seq, 1))
}
