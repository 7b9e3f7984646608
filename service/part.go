package service

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"souschef/model"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Part is one unit of message content. The set is closed: TextPart,
// FilePart and ToolInvocationPart.
type Part interface {
	isPart()
}

type TextPart struct {
	Text string
}

// FilePart references an uploaded image. URL is the storage key when read
// from the database and a data URL once inlined for the model.
type FilePart struct {
	URL       string
	MediaType string
}

type ToolState string

const (
	// ToolStateCall is a proposal waiting for the user.
	ToolStateCall ToolState = "call"
	// ToolStateResult is terminal: the user decided and Output is set.
	ToolStateResult ToolState = "result"
)

type ToolInvocationPart struct {
	ToolCallID string
	ToolName   string
	State      ToolState
	Input      json.RawMessage
	// Output is nil until the call is decided.
	Output json.RawMessage
}

func (TextPart) isPart()           {}
func (FilePart) isPart()           {}
func (ToolInvocationPart) isPart() {}

func (p ToolInvocationPart) Decided() bool {
	return p.State == ToolStateResult && len(p.Output) > 0
}

// NormalizedMessage is a message with its parts decoded in sequence order.
type NormalizedMessage struct {
	ID        string
	ChatID    string
	Role      string
	CreatedAt time.Time
	Parts     []Part
}

// wirePart is the JSON shape of a part as the UI sends and receives it.
type wirePart struct {
	Type       string          `json:"type"`
	Text       *string         `json:"text,omitempty"`
	URL        string          `json:"url,omitempty"`
	MediaType  string          `json:"mediaType,omitempty"`
	ToolCallID string          `json:"toolCallId,omitempty"`
	ToolName   string          `json:"toolName,omitempty"`
	State      string          `json:"state,omitempty"`
	Input      json.RawMessage `json:"input,omitempty"`
	Output     json.RawMessage `json:"output,omitempty"`
}

func toWirePart(p Part) (wirePart, error) {
	switch v := p.(type) {
	case TextPart:
		text := v.Text
		return wirePart{Type: "text", Text: &text}, nil
	case FilePart:
		return wirePart{Type: "file", URL: v.URL, MediaType: v.MediaType}, nil
	case ToolInvocationPart:
		return wirePart{
			Type:       "tool-invocation",
			ToolCallID: v.ToolCallID,
			ToolName:   v.ToolName,
			State:      string(v.State),
			Input:      v.Input,
			Output:     v.Output,
		}, nil
	default:
		return wirePart{}, fmt.Errorf("unknown part type %T", p)
	}
}

func (m NormalizedMessage) MarshalJSON() ([]byte, error) {
	parts := make([]wirePart, 0, len(m.Parts))
	for _, p := range m.Parts {
		wp, err := toWirePart(p)
		if err != nil {
			return nil, err
		}
		parts = append(parts, wp)
	}
	return json.Marshal(struct {
		ID        string     `json:"id"`
		ChatID    string     `json:"chatId"`
		Role      string     `json:"role"`
		CreatedAt time.Time  `json:"createdAt"`
		Parts     []wirePart `json:"parts"`
	}{m.ID, m.ChatID, m.Role, m.CreatedAt, parts})
}

// InboundMessage is a message as posted by the client.
type InboundMessage struct {
	ID    string            `json:"id" binding:"required"`
	Role  string            `json:"role" binding:"required,oneof=user assistant system"`
	Parts []json.RawMessage `json:"parts" binding:"required,min=1"`
}

// ParseInboundParts keeps the text and file parts of a client message in
// order. Other part kinds (tool bookkeeping, step markers) are not accepted
// from clients and are skipped.
func ParseInboundParts(raw []json.RawMessage) ([]Part, error) {
	parts := make([]Part, 0, len(raw))
	for i, item := range raw {
		var wp wirePart
		if err := json.Unmarshal(item, &wp); err != nil {
			return nil, NewValidationError(fmt.Sprintf("parts.%d", i), "Invalid message part")
		}
		switch wp.Type {
		case "text":
			if wp.Text == nil {
				return nil, NewValidationError(fmt.Sprintf("parts.%d.text", i), "Text part is missing text")
			}
			parts = append(parts, TextPart{Text: *wp.Text})
		case "file":
			parts = append(parts, FilePart{URL: wp.URL, MediaType: wp.MediaType})
		}
	}
	return parts, nil
}

// encodeParts appends parts to a message, giving each a sequence key after
// everything already stored for it. File parts that do not resolve to an
// upload owned by userID are skipped. It returns how many parts were stored.
func encodeParts(tx *gorm.DB, messageID, userID string, parts []Part) (int, error) {
	seq, err := model.NextPartSeq(tx, messageID)
	if err != nil {
		return 0, err
	}

	saved := 0
	for _, p := range parts {
		row := &model.MessagePart{MessageID: messageID, Seq: seq}
		switch v := p.(type) {
		case TextPart:
			row.Type = model.PartTypeText
			row.TextPart = &model.TextMessagePart{Text: v.Text}
		case FilePart:
			file, err := resolveUpload(tx, userID, v.URL)
			if err != nil {
				return saved, err
			}
			if file == nil {
				logger.Warnf("skipping file part %q on message %s", truncate(v.URL, 64), messageID)
				continue
			}
			mediaType := v.MediaType
			if mediaType == "" {
				mediaType = file.MimeType
			}
			row.Type = model.PartTypeImage
			row.ImagePart = &model.ImageMessagePart{FileID: file.ID, MimeType: mediaType}
		case ToolInvocationPart:
			input := v.Input
			if len(input) == 0 {
				input = json.RawMessage("{}")
			}
			row.Type = model.PartTypeToolInvocation
			row.ToolInvocationPart = &model.ToolInvocationMessagePart{
				ToolCallID: v.ToolCallID,
				ToolName:   v.ToolName,
				State:      string(v.State),
				Input:      datatypes.JSON(input),
				Output:     toJSONColumn(v.Output),
			}
		default:
			return saved, fmt.Errorf("unknown part type %T", p)
		}

		if err := model.CreatePart(tx, row); err != nil {
			return saved, err
		}
		seq++
		saved++
	}
	return saved, nil
}

// resolveUpload returns the File row behind a storage key, or nil when the
// reference is not a stored upload in userID's namespace.
func resolveUpload(tx *gorm.DB, userID, ref string) (*model.File, error) {
	if strings.HasPrefix(ref, "data:") || !strings.Contains(ref, "/") {
		return nil, nil
	}
	if !OwnsStorageKey(userID, ref) {
		return nil, nil
	}
	file, err := model.FindFileByStorageKey(tx, ref)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return file, nil
}

func toJSONColumn(raw json.RawMessage) datatypes.JSON {
	if len(raw) == 0 {
		return nil
	}
	return datatypes.JSON(raw)
}

func decodePart(row model.MessagePart) (Part, bool) {
	switch row.Type {
	case model.PartTypeText:
		if row.TextPart == nil {
			return nil, false
		}
		return TextPart{Text: row.TextPart.Text}, true
	case model.PartTypeImage:
		if row.ImagePart == nil || row.ImagePart.File == nil {
			return nil, false
		}
		return FilePart{URL: row.ImagePart.File.StorageKey, MediaType: row.ImagePart.MimeType}, true
	case model.PartTypeToolInvocation:
		if row.ToolInvocationPart == nil {
			return nil, false
		}
		return decodeToolInvocation(row.ToolInvocationPart), true
	default:
		return nil, false
	}
}

func decodeToolInvocation(t *model.ToolInvocationMessagePart) ToolInvocationPart {
	part := ToolInvocationPart{
		ToolCallID: t.ToolCallID,
		ToolName:   t.ToolName,
		State:      ToolState(t.State),
		Input:      json.RawMessage(t.Input),
	}
	if len(t.Output) > 0 && string(t.Output) != "null" {
		part.Output = json.RawMessage(t.Output)
	}
	return part
}

// DecodeMessages rebuilds normalized messages from rows loaded with
// model.FindMessagesWithParts. Parts are ordered by sequence key.
func DecodeMessages(rows []model.Message) []NormalizedMessage {
	messages := make([]NormalizedMessage, 0, len(rows))
	for _, row := range rows {
		msg := NormalizedMessage{
			ID:        row.ID,
			ChatID:    row.ChatID,
			Role:      row.Role,
			CreatedAt: row.CreatedAt,
			Parts:     make([]Part, 0, len(row.Parts)),
		}
		sort.SliceStable(row.Parts, func(i, j int) bool {
			return row.Parts[i].Seq < row.Parts[j].Seq
		})
		for _, partRow := range row.Parts {
			if part, ok := decodePart(partRow); ok {
				msg.Parts = append(msg.Parts, part)
			}
		}
		messages = append(messages, msg)
	}
	return messages
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
