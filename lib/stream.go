package lib

import (
	"encoding/json"
	"net/http"

	"github.com/gin-contrib/sse"
	"github.com/google/uuid"
)

// UIStreamHeader marks a response as a UI message stream (protocol v1).
const UIStreamHeader = "x-vercel-ai-ui-message-stream"

// Chunk is one event of the UI message stream.
type Chunk struct {
	Type       string          `json:"type"`
	ID         string          `json:"id,omitempty"`
	MessageID  string          `json:"messageId,omitempty"`
	Delta      string          `json:"delta,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	ErrorText  string          `json:"errorText,omitempty"`
}

// UIStream writes a chat turn as server-sent events: start, text blocks,
// tool inputs, then finish (or error) and the [DONE] sentinel.
type UIStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	textID  string
	closed  bool
}

func NewUIStream(w http.ResponseWriter) *UIStream {
	h := w.Header()
	h.Set("Content-Type", sse.ContentType)
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	h.Set(UIStreamHeader, "v1")

	flusher, _ := w.(http.Flusher)
	return &UIStream{w: w, flusher: flusher}
}

func (s *UIStream) write(data any) error {
	if err := sse.Encode(s.w, sse.Event{Data: data}); err != nil {
		return err
	}
	if s.flusher != nil {
		s.flusher.Flush()
	}
	return nil
}

func (s *UIStream) Start(messageID string) error {
	return s.write(Chunk{Type: "start", MessageID: messageID})
}

// TextDelta appends to the open text block, opening one if needed.
func (s *UIStream) TextDelta(delta string) error {
	if s.textID == "" {
		s.textID = uuid.NewString()
		if err := s.write(Chunk{Type: "text-start", ID: s.textID}); err != nil {
			return err
		}
	}
	return s.write(Chunk{Type: "text-delta", ID: s.textID, Delta: delta})
}

func (s *UIStream) EndText() error {
	if s.textID == "" {
		return nil
	}
	id := s.textID
	s.textID = ""
	return s.write(Chunk{Type: "text-end", ID: id})
}

// ToolInput announces a tool call whose input is complete.
func (s *UIStream) ToolInput(toolCallID, toolName string, input json.RawMessage) error {
	return s.write(Chunk{Type: "tool-input-available", ToolCallID: toolCallID, ToolName: toolName, Input: input})
}

func (s *UIStream) Finish() error {
	if err := s.EndText(); err != nil {
		return err
	}
	if err := s.write(Chunk{Type: "finish"}); err != nil {
		return err
	}
	return s.done()
}

// Error reports a failed turn to the client and closes the stream.
func (s *UIStream) Error(message string) error {
	if err := s.write(Chunk{Type: "error", ErrorText: message}); err != nil {
		return err
	}
	return s.done()
}

func (s *UIStream) done() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.write("[DONE]")
}
