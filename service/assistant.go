package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// CookingSystemPrompt steers the assistant for every chat turn.
const CookingSystemPrompt = `You are a friendly, practical cooking assistant. You help people:

1. Find recipes from the ingredients they have, their diet or a cuisine they like
2. Cook step by step, with timing and technique tips
3. Substitute ingredients they are missing
4. Fix cooking problems as they happen
5. Plan meals for the week
6. Understand photos they share of ingredients, dishes, labels or problems

## Writing recipes
Keep recipes short and plain, the way a friend would write one down:
- Ingredients (bullet points)
- Steps for Cooking (numbered, brief)
- Tips, only when the recipe really needs them

Do not add ingredients that are not necessary. The user will ask for a fancier version if they want one.

## Saving recipes
After suggesting a complete recipe, ask whether the user wants to save it. When they do, call the ` + "`" + RecipeToolName + "`" + ` tool with:
- ` + "`title`" + `: a clear, descriptive recipe title
- ` + "`content`" + `: the full recipe in markdown

Then follow the user's choice:
- create: confirm the new recipe was saved
- update: confirm which recipe was updated
- ignore: offer other ideas

Be encouraging and concise. When the user is actively cooking, answer their immediate question first.`

// TurnSink receives an assistant turn as it streams.
type TurnSink interface {
	Start(messageID string) error
	TextDelta(delta string) error
	EndText() error
	ToolInput(toolCallID, toolName string, input json.RawMessage) error
	Finish() error
	Error(message string) error
}

// AssistantService runs one chat turn: persist the user's message, call the
// model with the chat history, stream the answer, persist the answer.
type AssistantService struct {
	Messages *MessageService
	Chats    *ChatService
	Model    ModelClient
}

// Prepare stores the inbound message and builds the model request. Errors
// here happen before any output is streamed.
func (s *AssistantService) Prepare(ctx context.Context, userID, chatID string, msg InboundMessage) (*ModelRequest, error) {
	if _, err := s.Messages.SaveInbound(ctx, chatID, userID, msg); err != nil {
		return nil, err
	}
	if err := s.Chats.Touch(ctx, userID, chatID); err != nil {
		return nil, err
	}
	history, err := s.Messages.ForModelCall(ctx, chatID, userID)
	if err != nil {
		return nil, err
	}
	return &ModelRequest{System: CookingSystemPrompt, Messages: history}, nil
}

// Stream runs the model and forwards its output to sink. The assistant
// message is written only once the model finishes; a cancelled or failed
// stream persists nothing.
func (s *AssistantService) Stream(ctx context.Context, userID, chatID string, req *ModelRequest, sink TurnSink) error {
	messageID := uuid.NewString()
	if err := sink.Start(messageID); err != nil {
		return err
	}

	result, err := s.Model.StreamChat(ctx, *req, sink.TextDelta)
	if err != nil {
		if ctx.Err() != nil {
			logger.Infof("chat %s turn cancelled by client, nothing persisted", chatID)
			return ctx.Err()
		}
		if sinkErr := sink.Error("The assistant could not answer. Please try again."); sinkErr != nil {
			logger.Warnf("failed to report stream error for chat %s: %s", chatID, sinkErr)
		}
		return fmt.Errorf("model call for chat %s failed: %w", chatID, err)
	}

	persistCtx := context.WithoutCancel(ctx)
	calls, err := s.Messages.ClaimToolCallIDs(persistCtx, result.ToolCalls)
	if err != nil {
		_ = sink.Error("The answer could not be saved.")
		return err
	}

	if err := sink.EndText(); err != nil {
		return err
	}
	for _, call := range calls {
		if err := sink.ToolInput(call.ID, call.Name, call.Input); err != nil {
			return err
		}
	}

	if _, err := s.Messages.SaveOutbound(persistCtx, chatID, userID, AssistantTurn{
		MessageID: messageID,
		Text:      result.Text,
		ToolCalls: calls,
	}); err != nil {
		_ = sink.Error("The answer could not be saved.")
		return err
	}
	if err := s.Chats.Touch(persistCtx, userID, chatID); err != nil && !errors.Is(err, context.Canceled) {
		logger.Warnf("failed to touch chat %s: %s", chatID, err)
	}
	return sink.Finish()
}
