package service

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseInboundParts(t *testing.T) {
	raw := []json.RawMessage{
		json.RawMessage(`{"type":"step-start"}`),
		json.RawMessage(`{"type":"text","text":"What can I make with eggs?"}`),
		json.RawMessage(`{"type":"file","url":"u/c/a.png","mediaType":"image/png"}`),
		json.RawMessage(`{"type":"tool-invocation","toolCallId":"call_1"}`),
	}

	parts, err := ParseInboundParts(raw)
	require.NoError(t, err)
	require.Len(t, parts, 2)
	assert.Equal(t, TextPart{Text: "What can I make with eggs?"}, parts[0])
	assert.Equal(t, FilePart{URL: "u/c/a.png", MediaType: "image/png"}, parts[1])
}

func TestParseInboundPartsRejectsBadInput(t *testing.T) {
	tests := []struct {
		name string
		raw  json.RawMessage
	}{
		{"not an object", json.RawMessage(`"hello"`)},
		{"text without text", json.RawMessage(`{"type":"text"}`)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseInboundParts([]json.RawMessage{tt.raw})
			assert.True(t, IsValidationError(err))
		})
	}
}

func TestNormalizedMessageJSON(t *testing.T) {
	msg := NormalizedMessage{
		ID:        "m1",
		ChatID:    "c1",
		Role:      RoleAssistant,
		CreatedAt: time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC),
		Parts: []Part{
			TextPart{Text: ""},
			ToolInvocationPart{
				ToolCallID: "call_1",
				ToolName:   RecipeToolName,
				State:      ToolStateResult,
				Input:      json.RawMessage(`{"title":"Soup","content":"water"}`),
				Output:     json.RawMessage(`{"action":"ignore"}`),
			},
		},
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded struct {
		ID     string `json:"id"`
		ChatID string `json:"chatId"`
		Parts  []map[string]any
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "c1", decoded.ChatID)
	require.Len(t, decoded.Parts, 2)
	assert.Equal(t, "text", decoded.Parts[0]["type"])
	assert.Equal(t, "", decoded.Parts[0]["text"])
	assert.Equal(t, "tool-invocation", decoded.Parts[1]["type"])
	assert.Equal(t, "result", decoded.Parts[1]["state"])
	assert.Equal(t, map[string]any{"action": "ignore"}, decoded.Parts[1]["output"])
}

func TestToolInvocationDecided(t *testing.T) {
	pending := ToolInvocationPart{State: ToolStateCall}
	decided := ToolInvocationPart{State: ToolStateResult, Output: json.RawMessage(`{"action":"ignore"}`)}
	assert.False(t, pending.Decided())
	assert.True(t, decided.Decided())
}
