package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"souschef/model"
	"souschef/platform"
)

// MaxImageBytes is the largest accepted upload.
const MaxImageBytes = 5 << 20

// ErrChatAccessDenied is returned when uploading into a chat the caller does not own.
var ErrChatAccessDenied = errors.New("chat access denied")

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

type ImageService struct {
	DB     *gorm.DB
	Bucket platform.Bucket
}

// Upload is an image as received from a multipart form.
type Upload struct {
	ChatID      string
	ContentType string
	Size        int64
	Body        io.Reader
}

// Upload validates an image and stores it under {userId}/{chatId}/{uuid}.{ext}.
// It returns the storage key. Nothing is stored when validation fails.
func (s *ImageService) Upload(ctx context.Context, userID string, up Upload) (string, error) {
	if up.Body == nil {
		return "", NewValidationError("file", "Please select an image to upload")
	}
	if up.ChatID == "" {
		return "", NewValidationError("chatId", "Unable to upload: chat not found")
	}
	db := s.DB.WithContext(ctx)
	owned, err := OwnsChat(db, userID, up.ChatID)
	if err != nil {
		return "", err
	}
	if !owned {
		return "", ErrChatAccessDenied
	}

	contentType := strings.ToLower(strings.TrimSpace(strings.Split(up.ContentType, ";")[0]))
	ext, ok := imageExtensions[contentType]
	if !ok {
		return "", NewValidationError("file", "Please upload a JPEG, PNG, GIF, or WebP image")
	}
	if up.Size > MaxImageBytes {
		return "", NewValidationError("file", "Image must be smaller than 5MB")
	}

	data, err := io.ReadAll(io.LimitReader(up.Body, MaxImageBytes+1))
	if err != nil {
		return "", fmt.Errorf("failed to read upload: %w", err)
	}
	if len(data) > MaxImageBytes {
		return "", NewValidationError("file", "Image must be smaller than 5MB")
	}
	if detected := mimetype.Detect(data); !detected.Is(contentType) {
		return "", NewValidationError("file", "Please upload a JPEG, PNG, GIF, or WebP image")
	}

	key := fmt.Sprintf("%s/%s/%s.%s", userID, up.ChatID, uuid.NewString(), ext)
	if err := s.Bucket.Put(ctx, key, contentType, bytes.NewReader(data)); err != nil {
		return "", fmt.Errorf("failed to store image: %w", err)
	}
	if err := model.CreateFile(db, &model.File{
		StorageKey: key,
		MimeType:   contentType,
		Size:       int64(len(data)),
	}); err != nil {
		if delErr := s.Bucket.Delete(ctx, key); delErr != nil {
			logger.Warnf("failed to remove object %s after metadata error: %s", key, delErr)
		}
		return "", err
	}
	return key, nil
}

// Open returns an image the caller owns. Keys outside the caller's namespace
// fail with ErrForbidden before storage is touched.
func (s *ImageService) Open(ctx context.Context, userID, key string) (io.ReadCloser, string, error) {
	if strings.TrimSpace(key) == "" {
		return nil, "", NewValidationError("key", "Image key is required")
	}
	if !OwnsStorageKey(userID, key) {
		return nil, "", ErrForbidden
	}

	contentType := ""
	file, err := model.FindFileByStorageKey(s.DB.WithContext(ctx), key)
	switch {
	case err == nil:
		contentType = file.MimeType
	case !errors.Is(err, gorm.ErrRecordNotFound):
		return nil, "", err
	}
	if contentType == "" {
		contentType = contentTypeForKey(key)
	}

	r, err := s.Bucket.Get(ctx, key)
	if err != nil {
		if errors.Is(err, platform.ErrObjectNotFound) {
			return nil, "", ErrNotFound
		}
		return nil, "", err
	}
	return r, contentType, nil
}

func contentTypeForKey(key string) string {
	ext := strings.TrimPrefix(strings.ToLower(path.Ext(key)), ".")
	for mime, e := range imageExtensions {
		if e == ext || (ext == "jpeg" && e == "jpg") {
			return mime
		}
	}
	return "application/octet-stream"
}

// SweepOrphans deletes uploads older than maxAge that no message references.
func (s *ImageService) SweepOrphans(ctx context.Context, maxAge time.Duration) (int, error) {
	db := s.DB.WithContext(ctx)
	files, err := model.FindOrphanFiles(db, time.Now().Add(-maxAge))
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, f := range files {
		if err := s.Bucket.Delete(ctx, f.StorageKey); err != nil && !errors.Is(err, platform.ErrObjectNotFound) {
			logger.Warnf("failed to delete orphan object %s: %s", f.StorageKey, err)
			continue
		}
		if err := model.DeleteFile(db, f.ID); err != nil {
			logger.Warnf("failed to delete orphan file row %s: %s", f.ID, err)
			continue
		}
		removed++
	}
	return removed, nil
}
