package service

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"souschef/model"
	"souschef/platform"
)

var logger = platform.Logger

// ToolCall is a tool invocation produced by the model in one turn.
type ToolCall struct {
	ID    string
	Name  string
	Input json.RawMessage
}

// MessageService is the only writer of messages and their parts.
type MessageService struct {
	DB     *gorm.DB
	Bucket platform.Bucket
}

// SaveInbound stores a user message under the client-supplied id. Text and
// file parts keep their order; file parts outside the caller's uploads are
// dropped.
func (s *MessageService) SaveInbound(ctx context.Context, chatID, userID string, msg InboundMessage) (int, error) {
	db := s.DB.WithContext(ctx)
	if err := RequireChat(db, userID, chatID); err != nil {
		return 0, err
	}
	if strings.TrimSpace(msg.ID) == "" {
		return 0, NewValidationError("message.id", "Message ID is required")
	}
	parts, err := ParseInboundParts(msg.Parts)
	if err != nil {
		return 0, err
	}

	saved := 0
	err = db.Transaction(func(tx *gorm.DB) error {
		if err := model.CreateMessage(tx, &model.Message{
			ID:        msg.ID,
			ChatID:    chatID,
			Role:      RoleUser,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		n, err := encodeParts(tx, msg.ID, userID, parts)
		saved = n
		return err
	})
	if err != nil {
		return 0, existsOr(err, "failed to save user message %s", msg.ID)
	}
	return saved, nil
}

// AssistantTurn is what the model produced for one request. MessageID is
// optional; a new id is generated when it is empty.
type AssistantTurn struct {
	MessageID string
	Text      string
	ToolCalls []ToolCall
}

// SaveOutbound stores one assistant turn: the text as a single part followed
// by each tool call in the call state. A turn with tool calls but no text
// still gets its own message. It returns the message id, or "" when the turn
// produced nothing.
func (s *MessageService) SaveOutbound(ctx context.Context, chatID, userID string, turn AssistantTurn) (string, error) {
	db := s.DB.WithContext(ctx)
	if err := RequireChat(db, userID, chatID); err != nil {
		return "", err
	}
	if turn.Text == "" && len(turn.ToolCalls) == 0 {
		return "", nil
	}

	parts := make([]Part, 0, len(turn.ToolCalls)+1)
	if turn.Text != "" {
		parts = append(parts, TextPart{Text: turn.Text})
	}
	for _, call := range turn.ToolCalls {
		parts = append(parts, ToolInvocationPart{
			ToolCallID: call.ID,
			ToolName:   call.Name,
			State:      ToolStateCall,
			Input:      call.Input,
		})
	}

	messageID := turn.MessageID
	if messageID == "" {
		messageID = uuid.NewString()
	}
	err := db.Transaction(func(tx *gorm.DB) error {
		if err := model.CreateMessage(tx, &model.Message{
			ID:        messageID,
			ChatID:    chatID,
			Role:      RoleAssistant,
			CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		_, err := encodeParts(tx, messageID, userID, parts)
		return err
	})
	if err != nil {
		return "", existsOr(err, "failed to save assistant message %s", messageID)
	}
	return messageID, nil
}

// ClaimToolCallIDs gives every call an id no stored tool call uses yet.
// Provider ids are kept unless they are empty, repeated within the turn or
// already taken, in which case a fresh one replaces them.
func (s *MessageService) ClaimToolCallIDs(ctx context.Context, calls []ToolCall) ([]ToolCall, error) {
	db := s.DB.WithContext(ctx)
	seen := make(map[string]bool, len(calls))
	out := make([]ToolCall, len(calls))
	for i, call := range calls {
		taken := call.ID == "" || seen[call.ID]
		if !taken {
			exists, err := model.ToolCallIDExists(db, call.ID)
			if err != nil {
				return nil, err
			}
			taken = exists
		}
		if taken {
			fresh := "call_" + uuid.NewString()
			logger.Infof("tool call id %q already in use, using %s", truncate(call.ID, 64), fresh)
			call.ID = fresh
		}
		seen[call.ID] = true
		out[i] = call
	}
	return out, nil
}

// RecordToolDecision moves a tool call to the result state with output.
// A later call replaces the output; it can never be cleared.
func (s *MessageService) RecordToolDecision(ctx context.Context, toolCallID, userID string, output json.RawMessage) error {
	return recordToolDecision(s.DB.WithContext(ctx), toolCallID, userID, output)
}

func recordToolDecision(db *gorm.DB, toolCallID, userID string, output json.RawMessage) error {
	loc, err := RequireToolCall(db, userID, toolCallID)
	if err != nil {
		return err
	}
	return recordToolResult(db, loc.PartID, output)
}

func recordToolResult(db *gorm.DB, partID uint, output json.RawMessage) error {
	if len(output) == 0 || string(output) == "null" || !json.Valid(output) {
		return NewValidationError("output", "Tool output is required")
	}
	return model.UpdateToolInvocationResult(db, partID, string(ToolStateResult), toJSONColumn(output))
}

// History returns a chat's messages in UI form.
func (s *MessageService) History(ctx context.Context, chatID, userID string) ([]NormalizedMessage, error) {
	db := s.DB.WithContext(ctx)
	if err := RequireChat(db, userID, chatID); err != nil {
		return nil, err
	}
	rows, err := model.FindMessagesWithParts(db, chatID)
	if err != nil {
		return nil, err
	}
	return DecodeMessages(rows), nil
}

// ForModelCall returns the history as the model should see it: images are
// inlined as base64 data URLs, tool invocations are left out and messages
// left empty are dropped.
func (s *MessageService) ForModelCall(ctx context.Context, chatID, userID string) ([]NormalizedMessage, error) {
	history, err := s.History(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}

	out := make([]NormalizedMessage, 0, len(history))
	for _, msg := range history {
		parts := make([]Part, 0, len(msg.Parts))
		for _, p := range msg.Parts {
			switch v := p.(type) {
			case TextPart:
				parts = append(parts, v)
			case FilePart:
				inlined, err := s.inlineImage(ctx, userID, v)
				if err != nil {
					logger.Warnf("failed to load image %s for model call: %s", v.URL, err)
					continue
				}
				parts = append(parts, inlined)
			case ToolInvocationPart:
			}
		}
		if len(parts) == 0 {
			continue
		}
		msg.Parts = parts
		out = append(out, msg)
	}
	return out, nil
}

func (s *MessageService) inlineImage(ctx context.Context, userID string, part FilePart) (FilePart, error) {
	if strings.HasPrefix(part.URL, "data:") {
		return part, nil
	}
	if !OwnsStorageKey(userID, part.URL) {
		return FilePart{}, ErrForbidden
	}
	mediaType := part.MediaType
	if mediaType == "" {
		mediaType = "image/jpeg"
	}

	r, err := s.Bucket.Get(ctx, part.URL)
	if err != nil {
		return FilePart{}, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return FilePart{}, fmt.Errorf("failed to read image %s: %w", part.URL, err)
	}
	return FilePart{
		URL:       "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data),
		MediaType: mediaType,
	}, nil
}
