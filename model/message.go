package model

import (
	"database/sql"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	PartTypeText           = "text"
	PartTypeImage          = "image"
	PartTypeToolInvocation = "tool-invocation"
)

type Message struct {
	ID        string    `gorm:"type:varchar(64);primaryKey" json:"id"`
	ChatID    string    `gorm:"type:varchar(36);not null;index:idx_chat_id_created_at" json:"chat_id"`
	Role      string    `gorm:"type:varchar(16);not null" json:"role"`
	CreatedAt time.Time `gorm:"index:idx_chat_id_created_at" json:"created_at"`

	Parts []MessagePart `gorm:"constraint:OnDelete:CASCADE" json:"parts"`
}

// MessagePart is the ordered envelope around exactly one typed sub-part.
// Seq is unique per message and only grows, so parts appended later sort last.
type MessagePart struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	MessageID string `gorm:"type:varchar(64);not null;uniqueIndex:idx_message_id_seq" json:"message_id"`
	Type      string `gorm:"type:varchar(32);not null" json:"type"`
	Seq       int64  `gorm:"not null;uniqueIndex:idx_message_id_seq" json:"seq"`

	TextPart           *TextMessagePart           `gorm:"constraint:OnDelete:CASCADE" json:"text_part,omitempty"`
	ImagePart          *ImageMessagePart          `gorm:"constraint:OnDelete:CASCADE" json:"image_part,omitempty"`
	ToolInvocationPart *ToolInvocationMessagePart `gorm:"constraint:OnDelete:CASCADE" json:"tool_invocation_part,omitempty"`
}

type TextMessagePart struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	MessagePartID uint   `gorm:"not null;uniqueIndex" json:"message_part_id"`
	Text          string `gorm:"type:text;not null" json:"text"`
}

type ImageMessagePart struct {
	ID            uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	MessagePartID uint   `gorm:"not null;uniqueIndex" json:"message_part_id"`
	FileID        string `gorm:"type:varchar(36);not null;index" json:"file_id"`
	MimeType      string `gorm:"type:varchar(64);not null" json:"mime_type"`
	File          *File  `json:"file,omitempty"`
}

// ToolInvocationMessagePart stores one assistant tool call. Output stays
// empty until the user decides.
type ToolInvocationMessagePart struct {
	ID            uint           `gorm:"primaryKey;autoIncrement" json:"id"`
	MessagePartID uint           `gorm:"not null;uniqueIndex" json:"message_part_id"`
	ToolCallID    string         `gorm:"type:varchar(128);not null;uniqueIndex" json:"tool_call_id"`
	ToolName      string         `gorm:"type:varchar(128);not null" json:"tool_name"`
	State         string         `gorm:"type:varchar(32);not null" json:"state"`
	Input         datatypes.JSON `json:"input"`
	Output        datatypes.JSON `json:"output,omitempty"`
}

func CreateMessage(db *gorm.DB, message *Message) error {
	if err := db.Omit("Parts").Create(message).Error; err != nil {
		return fmt.Errorf("failed to create message: %w", err)
	}
	return nil
}

// NextPartSeq returns the sequence key that sorts after every part already
// stored for the message.
func NextPartSeq(db *gorm.DB, messageID string) (int64, error) {
	var maxSeq sql.NullInt64
	err := db.Model(&MessagePart{}).
		Where("message_id = ?", messageID).
		Select("MAX(seq)").
		Row().
		Scan(&maxSeq)
	if err != nil {
		return 0, fmt.Errorf("failed to read part sequence: %w", err)
	}
	if !maxSeq.Valid {
		return 0, nil
	}
	return maxSeq.Int64 + 1, nil
}

// CreatePart inserts the part and then whichever sub-part it carries. The
// sub-part is a plain insert so unique constraints on it are enforced.
func CreatePart(db *gorm.DB, part *MessagePart) error {
	if err := db.Omit(clause.Associations).Create(part).Error; err != nil {
		return fmt.Errorf("failed to create %s part: %w", part.Type, err)
	}

	var sub any
	switch {
	case part.TextPart != nil:
		part.TextPart.MessagePartID = part.ID
		sub = part.TextPart
	case part.ImagePart != nil:
		part.ImagePart.MessagePartID = part.ID
		sub = part.ImagePart
	case part.ToolInvocationPart != nil:
		part.ToolInvocationPart.MessagePartID = part.ID
		sub = part.ToolInvocationPart
	}
	if sub == nil {
		return nil
	}
	if err := db.Omit(clause.Associations).Create(sub).Error; err != nil {
		return fmt.Errorf("failed to create %s part: %w", part.Type, err)
	}
	return nil
}

// FindMessagesWithParts loads a chat's messages in creation order with their
// parts sorted by sequence key and every sub-part preloaded.
func FindMessagesWithParts(db *gorm.DB, chatID string) ([]Message, error) {
	var messages []Message
	err := db.
		Preload("Parts", func(tx *gorm.DB) *gorm.DB {
			return tx.Order("seq ASC")
		}).
		Preload("Parts.TextPart").
		Preload("Parts.ImagePart.File").
		Preload("Parts.ToolInvocationPart").
		Where("chat_id = ?", chatID).
		Order("created_at ASC").
		Find(&messages).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch messages: %w", err)
	}
	return messages, nil
}

func FindToolInvocationByID(db *gorm.DB, id uint) (*ToolInvocationMessagePart, error) {
	var part ToolInvocationMessagePart
	if err := db.First(&part, id).Error; err != nil {
		return nil, fmt.Errorf("failed to get tool call part %d: %w", id, err)
	}
	return &part, nil
}

// ToolCallIDExists reports whether any stored tool call already uses id.
func ToolCallIDExists(db *gorm.DB, toolCallID string) (bool, error) {
	var count int64
	err := db.Model(&ToolInvocationMessagePart{}).
		Where("tool_call_id = ?", toolCallID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("database query failed: %w", err)
	}
	return count > 0, nil
}

// ToolCallLocation is where a tool call lives: its row, hosting chat and owner.
type ToolCallLocation struct {
	PartID    uint
	ChatID    string
	MessageID string
	UserID    string
}

// FindToolCallLocation resolves tool call -> part -> message -> chat in one
// query, matching only calls in chats owned by userID.
func FindToolCallLocation(db *gorm.DB, toolCallID, userID string) (*ToolCallLocation, error) {
	var loc ToolCallLocation
	result := db.Table("tool_invocation_message_parts AS t").
		Select("t.id AS part_id, c.id AS chat_id, m.id AS message_id, c.user_id AS user_id").
		Joins("JOIN message_parts AS p ON p.id = t.message_part_id").
		Joins("JOIN messages AS m ON m.id = p.message_id").
		Joins("JOIN chats AS c ON c.id = m.chat_id").
		Where("t.tool_call_id = ? AND c.user_id = ?", toolCallID, userID).
		Limit(1).
		Scan(&loc)
	if result.Error != nil {
		return nil, fmt.Errorf("failed to resolve tool call %s: %w", toolCallID, result.Error)
	}
	if result.RowsAffected == 0 {
		return nil, fmt.Errorf("failed to resolve tool call %s: %w", toolCallID, gorm.ErrRecordNotFound)
	}
	return &loc, nil
}

// UpdateToolInvocationResult moves the tool call part with primary key id to
// its terminal state.
func UpdateToolInvocationResult(db *gorm.DB, id uint, state string, output datatypes.JSON) error {
	err := db.Model(&ToolInvocationMessagePart{}).
		Where("id = ?", id).
		Updates(map[string]any{"state": state, "output": output}).Error
	if err != nil {
		return fmt.Errorf("failed to update tool call part %d: %w", id, err)
	}
	return nil
}
