package service

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"souschef/model"
	"souschef/platform"
)

// pngBytes is a valid PNG signature followed by padding.
var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

type testEnv struct {
	DB      *gorm.DB
	Bucket  *platform.MemoryBucket
	Chats   *ChatService
	Recipes *RecipeService
	Active  *ActiveRecipeService
	Msgs    *MessageService
	Tools   *ToolService
	Images  *ImageService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := platform.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, model.InstallDB(db))
	bucket := platform.NewMemoryBucket()
	return &testEnv{
		DB:      db,
		Bucket:  bucket,
		Chats:   &ChatService{DB: db},
		Recipes: &RecipeService{DB: db},
		Active:  &ActiveRecipeService{DB: db},
		Msgs:    &MessageService{DB: db, Bucket: bucket},
		Tools:   &ToolService{DB: db},
		Images:  &ImageService{DB: db, Bucket: bucket},
	}
}

func (e *testEnv) user(t *testing.T, email string) *model.User {
	t.Helper()
	u := &model.User{Email: email, Password: "x"}
	require.NoError(t, model.CreateUser(e.DB, u))
	return u
}

func (e *testEnv) chat(t *testing.T, userID, title string) *model.Chat {
	t.Helper()
	c, err := e.Chats.Create(context.Background(), userID, "", title)
	require.NoError(t, err)
	return c
}

func (e *testEnv) upload(t *testing.T, userID, chatID string) string {
	t.Helper()
	key, err := e.Images.Upload(context.Background(), userID, Upload{
		ChatID:      chatID,
		ContentType: "image/png",
		Size:        int64(len(pngBytes)),
		Body:        bytes.NewReader(pngBytes),
	})
	require.NoError(t, err)
	return key
}

// proposal stores an assistant turn carrying one recipe tool call.
func (e *testEnv) proposal(t *testing.T, userID, chatID, toolCallID, input string) {
	t.Helper()
	_, err := e.Msgs.SaveOutbound(context.Background(), chatID, userID, AssistantTurn{
		Text: "Want me to save this?",
		ToolCalls: []ToolCall{{
			ID:    toolCallID,
			Name:  RecipeToolName,
			Input: []byte(input),
		}},
	})
	require.NoError(t, err)
}
