package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// File is the metadata of an uploaded image; the bytes live in object storage
// under StorageKey ({userId}/{chatId}/{uuid}.{ext}).
type File struct {
	ID         string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	StorageKey string    `gorm:"type:varchar(512);not null;uniqueIndex" json:"storage_key"`
	MimeType   string    `gorm:"type:varchar(64);not null" json:"mime_type"`
	Size       int64     `gorm:"not null" json:"size"`
	UploadedAt time.Time `gorm:"autoCreateTime;index" json:"uploaded_at"`

	ImageParts []ImageMessagePart `gorm:"constraint:OnDelete:CASCADE" json:"-"`
}

func (f *File) BeforeCreate(tx *gorm.DB) (err error) {
	if f.ID == "" {
		f.ID = uuid.NewString()
	}
	return nil
}

func CreateFile(db *gorm.DB, file *File) error {
	if err := db.Create(file).Error; err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	return nil
}

func FindFileByStorageKey(db *gorm.DB, key string) (*File, error) {
	var file File
	if err := db.Where("storage_key = ?", key).First(&file).Error; err != nil {
		return nil, fmt.Errorf("failed to get file %s: %w", key, err)
	}
	return &file, nil
}

// FindOrphanFiles lists uploads older than before that no image part references.
func FindOrphanFiles(db *gorm.DB, before time.Time) ([]File, error) {
	var files []File
	err := db.
		Where("uploaded_at < ?", before).
		Where("id NOT IN (?)", db.Model(&ImageMessagePart{}).Select("file_id")).
		Find(&files).Error
	if err != nil {
		return nil, fmt.Errorf("failed to fetch orphan files: %w", err)
	}
	return files, nil
}

func DeleteFile(db *gorm.DB, id string) error {
	if err := db.Where("id = ?", id).Delete(&File{}).Error; err != nil {
		return fmt.Errorf("failed to delete file %s: %w", id, err)
	}
	return nil
}
