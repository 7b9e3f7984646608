package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// ModelRequest is one chat completion call.
type ModelRequest struct {
	System   string
	Messages []NormalizedMessage
}

// ModelResult is the accumulated output of a completed stream.
type ModelResult struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
}

// ModelClient streams a completion, handing each text delta to onDelta as it
// arrives. An error from onDelta or a cancelled ctx stops the stream and no
// result is returned.
type ModelClient interface {
	StreamChat(ctx context.Context, req ModelRequest, onDelta func(delta string) error) (*ModelResult, error)
}

// OpenAIModel talks to any OpenAI compatible chat completion endpoint.
type OpenAIModel struct {
	Client *openai.Client
	Model  string
}

func (m *OpenAIModel) StreamChat(ctx context.Context, req ModelRequest, onDelta func(delta string) error) (*ModelResult, error) {
	params := openai.ChatCompletionNewParams{
		Model:    m.Model,
		Messages: toOpenAIMessages(req),
		Tools: []openai.ChatCompletionToolParam{
			{
				Function: openai.FunctionDefinitionParam{
					Name:        RecipeToolName,
					Description: openai.String(recipeToolDescription),
					Parameters:  openai.FunctionParameters(RecipeToolParameters()),
				},
			},
		},
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	stream := m.Client.Chat.Completions.NewStreaming(ctx, params)
	defer stream.Close()

	acc := openai.ChatCompletionAccumulator{}
	for stream.Next() {
		chunk := stream.Current()
		acc.AddChunk(chunk)
		if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
			if err := onDelta(chunk.Choices[0].Delta.Content); err != nil {
				return nil, err
			}
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("model stream failed: %w", err)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	result := &ModelResult{}
	if len(acc.Choices) == 0 {
		return result, nil
	}
	choice := acc.Choices[0]
	result.Text = choice.Message.Content
	result.FinishReason = choice.FinishReason
	for _, tc := range choice.Message.ToolCalls {
		args := strings.TrimSpace(tc.Function.Arguments)
		if args == "" {
			args = "{}"
		}
		if !json.Valid([]byte(args)) {
			logger.Warnf("dropping tool call %s with malformed arguments", tc.ID)
			continue
		}
		result.ToolCalls = append(result.ToolCalls, ToolCall{
			ID:    tc.ID,
			Name:  tc.Function.Name,
			Input: json.RawMessage(args),
		})
	}
	return result, nil
}

func toOpenAIMessages(req ModelRequest) []openai.ChatCompletionMessageParamUnion {
	messages := make([]openai.ChatCompletionMessageParamUnion, 0, len(req.Messages)+1)
	if req.System != "" {
		messages = append(messages, openai.SystemMessage(req.System))
	}
	for _, msg := range req.Messages {
		switch msg.Role {
		case RoleAssistant:
			var text strings.Builder
			for _, p := range msg.Parts {
				if t, ok := p.(TextPart); ok {
					text.WriteString(t.Text)
				}
			}
			messages = append(messages, openai.AssistantMessage(text.String()))
		default:
			content := make([]openai.ChatCompletionContentPartUnionParam, 0, len(msg.Parts))
			for _, p := range msg.Parts {
				switch v := p.(type) {
				case TextPart:
					content = append(content, openai.TextContentPart(v.Text))
				case FilePart:
					content = append(content, openai.ImageContentPart(openai.ChatCompletionContentPartImageImageURLParam{
						URL: v.URL,
					}))
				case ToolInvocationPart:
				}
			}
			messages = append(messages, openai.UserMessage(content))
		}
	}
	return messages
}
