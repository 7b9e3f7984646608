package model

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"souschef/platform"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := platform.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, InstallDB(db))
	return db
}

func seedChat(t *testing.T, db *gorm.DB) (*User, *Chat) {
	t.Helper()
	user := &User{Email: "cook@example.com", Password: "x"}
	require.NoError(t, CreateUser(db, user))
	chat := &Chat{UserID: user.ID, Title: "Dinner"}
	require.NoError(t, CreateChat(db, chat))
	return user, chat
}

func TestAddActiveRecipeIsIdempotent(t *testing.T) {
	db := newTestDB(t)
	user, chat := seedChat(t, db)
	recipe := &Recipe{UserID: user.ID, Title: "Smash Burger", Content: "# Smash Burger"}
	require.NoError(t, CreateRecipe(db, recipe))

	first, err := AddActiveRecipe(db, chat.ID, recipe.ID)
	require.NoError(t, err)
	second, err := AddActiveRecipe(db, chat.ID, recipe.ID)
	require.NoError(t, err)

	assert.Equal(t, first.ID, second.ID)
	links, err := FindActiveRecipesByChatID(db, chat.ID)
	require.NoError(t, err)
	assert.Len(t, links, 1)
}

func TestNextPartSeqGrowsPastExistingParts(t *testing.T) {
	db := newTestDB(t)
	_, chat := seedChat(t, db)
	msg := &Message{ID: "m1", ChatID: chat.ID, Role: "assistant"}
	require.NoError(t, CreateMessage(db, msg))

	seq, err := NextPartSeq(db, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(0), seq)

	require.NoError(t, CreatePart(db, &MessagePart{
		MessageID: msg.ID, Type: PartTypeText, Seq: 7,
		TextPart: &TextMessagePart{Text: "hello"},
	}))

	seq, err = NextPartSeq(db, msg.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8), seq)
}

func TestDeleteChatCascades(t *testing.T) {
	db := newTestDB(t)
	user, chat := seedChat(t, db)
	recipe := &Recipe{UserID: user.ID, Title: "Soup", Content: "water"}
	require.NoError(t, CreateRecipe(db, recipe))
	_, err := AddActiveRecipe(db, chat.ID, recipe.ID)
	require.NoError(t, err)
	chatID := chat.ID
	require.NoError(t, CreateRecipeSnapshot(db, &RecipeSnapshot{RecipeID: recipe.ID, ChatID: &chatID, Content: "water"}))

	msg := &Message{ID: "m1", ChatID: chat.ID, Role: "assistant"}
	require.NoError(t, CreateMessage(db, msg))
	require.NoError(t, CreatePart(db, &MessagePart{
		MessageID: msg.ID, Type: PartTypeToolInvocation, Seq: 0,
		ToolInvocationPart: &ToolInvocationMessagePart{
			ToolCallID: "call_1", ToolName: "promptUserWithRecipeUpdate", State: "call",
			Input: datatypes.JSON(`{"title":"Soup","content":"water"}`),
		},
	}))

	rows, err := DeleteChat(db, chat.ID, user.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), rows)

	var count int64
	db.Model(&Message{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&MessagePart{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&ToolInvocationMessagePart{}).Count(&count)
	assert.Zero(t, count)
	db.Model(&ChatActiveRecipe{}).Count(&count)
	assert.Zero(t, count)

	snapshots, err := FindSnapshotsByRecipeID(db, recipe.ID)
	require.NoError(t, err)
	require.Len(t, snapshots, 1)
	assert.Nil(t, snapshots[0].ChatID)
}

func TestDeleteRecipeCascadesActiveLinks(t *testing.T) {
	db := newTestDB(t)
	user, chat := seedChat(t, db)
	recipe := &Recipe{UserID: user.ID, Title: "Soup", Content: "water"}
	require.NoError(t, CreateRecipe(db, recipe))
	_, err := AddActiveRecipe(db, chat.ID, recipe.ID)
	require.NoError(t, err)

	_, err = DeleteRecipe(db, recipe.ID, user.ID)
	require.NoError(t, err)

	links, err := FindActiveRecipesByChatID(db, chat.ID)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestFindToolCallLocation(t *testing.T) {
	db := newTestDB(t)
	user, chat := seedChat(t, db)
	stranger := &User{Email: "stranger@example.com", Password: "x"}
	require.NoError(t, CreateUser(db, stranger))

	msg := &Message{ID: "m1", ChatID: chat.ID, Role: "assistant"}
	require.NoError(t, CreateMessage(db, msg))
	require.NoError(t, CreatePart(db, &MessagePart{
		MessageID: msg.ID, Type: PartTypeToolInvocation,
		ToolInvocationPart: &ToolInvocationMessagePart{
			ToolCallID: "call_1", ToolName: "promptUserWithRecipeUpdate", State: "call",
			Input: datatypes.JSON(`{}`),
		},
	}))

	loc, err := FindToolCallLocation(db, "call_1", user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.ID, loc.UserID)
	assert.Equal(t, chat.ID, loc.ChatID)
	assert.Equal(t, msg.ID, loc.MessageID)

	part, err := FindToolInvocationByID(db, loc.PartID)
	require.NoError(t, err)
	assert.Equal(t, "call_1", part.ToolCallID)

	_, err = FindToolCallLocation(db, "call_1", stranger.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
	_, err = FindToolCallLocation(db, "call_missing", user.ID)
	assert.True(t, errors.Is(err, gorm.ErrRecordNotFound))
}

func TestToolCallIDIsUnique(t *testing.T) {
	db := newTestDB(t)
	_, chat := seedChat(t, db)
	msg := &Message{ID: "m1", ChatID: chat.ID, Role: "assistant"}
	require.NoError(t, CreateMessage(db, msg))

	for seq, want := range []error{nil, gorm.ErrDuplicatedKey} {
		err := CreatePart(db, &MessagePart{
			MessageID: msg.ID, Type: PartTypeToolInvocation, Seq: int64(seq),
			ToolInvocationPart: &ToolInvocationMessagePart{
				ToolCallID: "call_0", ToolName: "promptUserWithRecipeUpdate", State: "call",
				Input: datatypes.JSON(`{}`),
			},
		})
		if want == nil {
			require.NoError(t, err)
		} else {
			assert.True(t, errors.Is(err, want))
		}
	}

	exists, err := ToolCallIDExists(db, "call_0")
	require.NoError(t, err)
	assert.True(t, exists)
	exists, err = ToolCallIDExists(db, "call_1")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFindOrphanFiles(t *testing.T) {
	db := newTestDB(t)
	user, chat := seedChat(t, db)

	used := &File{StorageKey: user.ID + "/" + chat.ID + "/a.png", MimeType: "image/png", Size: 3}
	orphan := &File{StorageKey: user.ID + "/" + chat.ID + "/b.png", MimeType: "image/png", Size: 3}
	require.NoError(t, CreateFile(db, used))
	require.NoError(t, CreateFile(db, orphan))

	msg := &Message{ID: "m1", ChatID: chat.ID, Role: "user"}
	require.NoError(t, CreateMessage(db, msg))
	require.NoError(t, CreatePart(db, &MessagePart{
		MessageID: msg.ID, Type: PartTypeImage,
		ImagePart: &ImageMessagePart{FileID: used.ID, MimeType: "image/png"},
	}))

	files, err := FindOrphanFiles(db, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, orphan.ID, files[0].ID)

	files, err = FindOrphanFiles(db, time.Now().Add(-time.Hour))
	require.NoError(t, err)
	assert.Empty(t, files)
}
