package llm

// StreamEvent is one event on a streaming generation's event channel.
type StreamEvent struct {
	Type    StreamEventType `json:"type"`
	Content string          `json:"content,omitempty"`
}

// StreamEventType defines types of streaming events.
type StreamEventType string

const (
	// StreamEventText carries one incremental text delta.
	StreamEventText StreamEventType = "text"
	// StreamEventDone terminates a successful stream; Content holds the
	// full final text (after quote normalization).
	StreamEventDone StreamEventType = "done"
	// StreamEventError terminates a failed stream. Always the last event;
	// errors never propagate past the stream boundary any other way.
	StreamEventError StreamEventType = "error"
)

// NewTextEvent creates a text delta event.
func NewTextEvent(content string) StreamEvent {
	return StreamEvent{Type: StreamEventText, Content: content}
}

// NewDoneEvent creates a terminal success event carrying the final text.
func NewDoneEvent(finalText string) StreamEvent {
	return StreamEvent{Type: StreamEventDone, Content: finalText}
}

// NewErrorEvent creates a terminal failure event.
func NewErrorEvent(message string) StreamEvent {
	return StreamEvent{Type: StreamEventError, Content: message}
}
