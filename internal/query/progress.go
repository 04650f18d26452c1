package query

import (
	"context"

	"github.com/scout-project/scout/internal/events"
)

// ProgressSink is the output port for user-visible query progress. Ping
// progress spans 0.0-0.5, query progress 0.5-1.0.
type ProgressSink interface {
	Start(message string)
	Update(message string)
	Ping(message string, progress float32)
	Query(message string, progress float32)
	Done(message string, progress float32)
}

// NopSink discards progress.
type NopSink struct{}

func (NopSink) Start(string)          {}
func (NopSink) Update(string)         {}
func (NopSink) Ping(string, float32)  {}
func (NopSink) Query(string, float32) {}
func (NopSink) Done(string, float32)  {}

// BusSink publishes progress as query-status events on the bus, which the
// API, CLI, and telemetry layers subscribe to.
type BusSink struct {
	Bus *events.EventBus
}

func (s BusSink) emit(phase, message string, progress float32) {
	s.Bus.Emit(context.Background(), events.Event{
		Type:   events.EventQueryStatus,
		Source: "query",
		Payload: events.QueryStatusPayload{
			Phase:    phase,
			Message:  message,
			Progress: progress,
		},
	})
}

func (s BusSink) Start(message string)                   { s.emit("start", message, 0) }
func (s BusSink) Update(message string)                  { s.emit("update", message, 0) }
func (s BusSink) Ping(message string, progress float32)  { s.emit("ping", message, progress) }
func (s BusSink) Query(message string, progress float32) { s.emit("query", message, progress) }
func (s BusSink) Done(message string, progress float32)  { s.emit("done", message, progress) }
