package progress

import (
	"context"
	"encoding/json"
	"io"
	"sync"
	"time"
)

// Event kinds.
const (
	KindProgress = "progress"
	KindError    = "error"
	KindDone     = "done"
)

// Event is the canonical observation record emitted by the dispatcher.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
	Kind      string    `json:"kind"`
	Method    string    `json:"method,omitempty"`
	URI       string    `json:"uri,omitempty"`
	Message   string    `json:"message,omitempty"`
	Status    int       `json:"status,omitempty"`
	Bytes     int       `json:"bytes,omitempty"`
}

// Sink receives emitted events.
type Sink interface {
	Emit(ctx context.Context, event Event)
}

// NoOpSink drops events.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, Event) {}

// ChannelSink writes events into a buffered channel.
type ChannelSink struct {
	events chan Event
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{
		events: make(chan Event, buffer),
	}
}

func (s *ChannelSink) Emit(ctx context.Context, event Event) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Event {
	return s.events
}

// JSONWriterSink writes one JSON object per line.
type JSONWriterSink struct {
	writer io.Writer
	mu     sync.Mutex
}

func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return &JSONWriterSink{
		writer: w,
	}
}

func (s *JSONWriterSink) Emit(ctx context.Context, event Event) {
	if s == nil || s.writer == nil {
		return
	}
	data, err := json.Marshal(event)
	if err != nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = s.writer.Write(data)
	_, _ = s.writer.Write([]byte("\n"))
}
