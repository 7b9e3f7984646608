package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"souschef/model"
	"souschef/platform"
	"souschef/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var pngBytes = append([]byte("\x89PNG\r\n\x1a\n\x00\x00\x00\rIHDR"), bytes.Repeat([]byte{0}, 64)...)

type scriptedModel struct {
	result *service.ModelResult
}

func (m *scriptedModel) StreamChat(ctx context.Context, req service.ModelRequest, onDelta func(string) error) (*service.ModelResult, error) {
	if err := onDelta(m.result.Text); err != nil {
		return nil, err
	}
	return m.result, nil
}

type testServer struct {
	router *gin.Engine
	tokens *service.TokenService
	users  *service.UserService
	chats  *service.ChatService
	bucket *platform.MemoryBucket
}

func newTestServer(t *testing.T, m service.ModelClient) *testServer {
	t.Helper()
	db, err := platform.OpenSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, model.InstallDB(db))

	bucket := platform.NewMemoryBucket()
	tokens := &service.TokenService{Secret: []byte("test-secret")}
	chats := &service.ChatService{DB: db}
	messages := &service.MessageService{DB: db, Bucket: bucket}
	users := &service.UserService{DB: db, Tokens: tokens}
	deps := Deps{
		CORSOrigin: "http://localhost",
		Tokens:     tokens,
		Users:      users,
		Chats:      chats,
		Messages:   messages,
		Recipes:    &service.RecipeService{DB: db},
		Active:     &service.ActiveRecipeService{DB: db},
		Tools:      &service.ToolService{DB: db},
		Images:     &service.ImageService{DB: db, Bucket: bucket},
		Assistant:  &service.AssistantService{Messages: messages, Chats: chats, Model: m},
	}
	return &testServer{router: NewRouter(deps), tokens: tokens, users: users, chats: chats, bucket: bucket}
}

// signup registers a user and returns its id and bearer token.
func (s *testServer) signup(t *testing.T, email string) (string, string) {
	t.Helper()
	u, err := s.users.Register(context.Background(), &service.User{Email: email, Password: "Secret123"})
	require.NoError(t, err)
	td, err := s.tokens.CreateToken(u.ID)
	require.NoError(t, err)
	return u.ID, td.AccessToken
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *testServer) upload(t *testing.T, token, chatID string, data []byte) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("chatId", chatID))
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", `form-data; name="file"; filename="photo.png"`)
	h.Set("Content-Type", "image/png")
	part, err := mw.CreatePart(h)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func errorBody(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error
}

func TestMapServiceError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantMsg    string
	}{
		{"validation", service.NewValidationError("title", "Title is required"), http.StatusBadRequest, "Title is required"},
		{"wrapped validation", fmt.Errorf("outer: %w", service.NewValidationError("x", "bad x")), http.StatusBadRequest, "bad x"},
		{"unauthorized", service.ErrUnauthorized, http.StatusUnauthorized, "Please login first"},
		{"chat access", service.ErrChatAccessDenied, http.StatusForbidden, "Unauthorized: Chat access denied"},
		{"forbidden", service.ErrForbidden, http.StatusForbidden, "Forbidden"},
		{"not found", fmt.Errorf("load: %w", service.ErrNotFound), http.StatusNotFound, "Not found"},
		{"exists", service.ErrAlreadyExists, http.StatusConflict, "Already exists"},
		{"conflict", service.ErrDecisionConflict, http.StatusConflict, "This proposal was already decided differently"},
		{"unknown", errors.New("db down"), http.StatusInternalServerError, "Internal server error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			status, msg := mapServiceError(tt.err)
			assert.Equal(t, tt.wantStatus, status)
			assert.Equal(t, tt.wantMsg, msg)
		})
	}
}

func TestProtectedRoutesRequireToken(t *testing.T) {
	s := newTestServer(t, &scriptedModel{})
	for _, path := range []string{"/v1/chats", "/v1/recipes", "/api/image?key=a/b/c.png"} {
		w := s.do(t, http.MethodGet, path, "", nil)
		assert.Equal(t, http.StatusUnauthorized, w.Code, path)
	}
	w := s.do(t, http.MethodGet, "/v1/chats", "not-a-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRegisterLoginFlow(t *testing.T) {
	s := newTestServer(t, &scriptedModel{})

	w := s.do(t, http.MethodPost, "/v1/user/register", "", gin.H{"email": "cook@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/v1/user/register", "", gin.H{"email": "cook@example.com", "password": "Secret123"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodPost, "/v1/user/register", "", gin.H{"email": "not-an-email", "password": "Secret123"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "email must be a valid email address", errorBody(t, w))

	w = s.do(t, http.MethodPost, "/v1/user/login", "", gin.H{"email": "cook@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = s.do(t, http.MethodPost, "/v1/user/login", "", gin.H{"email": "cook@example.com", "password": "Secret123"})
	require.Equal(t, http.StatusOK, w.Code)
	var login struct {
		Token string `json:"token"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))

	w = s.do(t, http.MethodGet, "/v1/chats", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = s.do(t, http.MethodPost, "/v1/token/refresh", login.Token, nil)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestImageAccess(t *testing.T) {
	s := newTestServer(t, &scriptedModel{})
	aliceID, alice := s.signup(t, "alice@example.com")
	_, bob := s.signup(t, "bob@example.com")
	chat, err := s.chats.Create(context.Background(), aliceID, "", "Dinner")
	require.NoError(t, err)

	w := s.upload(t, bob, chat.ID, pngBytes)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, "Unauthorized: Chat access denied", errorBody(t, w))

	w = s.upload(t, alice, chat.ID, pngBytes)
	require.Equal(t, http.StatusOK, w.Code)
	var uploaded struct {
		Key string `json:"key"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &uploaded))

	w = s.do(t, http.MethodGet, "/api/image?key="+uploaded.Key, alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "image/png", w.Header().Get("Content-Type"))
	assert.Equal(t, "public, max-age=31536000, immutable", w.Header().Get("Cache-Control"))
	assert.Equal(t, pngBytes, w.Body.Bytes())

	reads := s.bucket.Reads()
	w = s.do(t, http.MethodGet, "/api/image?key="+uploaded.Key, bob, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Equal(t, reads, s.bucket.Reads())
}

func TestChatStream(t *testing.T) {
	m := &scriptedModel{result: &service.ModelResult{
		Text: "Here is a burger.",
		ToolCalls: []service.ToolCall{{
			ID: "call_1", Name: service.RecipeToolName,
			Input: json.RawMessage(`{"title":"Smash Burger","content":"beef"}`),
		}},
	}}
	s := newTestServer(t, m)
	_, alice := s.signup(t, "alice@example.com")
	chatID := uuid.NewString()

	w := s.do(t, http.MethodPost, "/v1/chats", alice, gin.H{"id": chatID, "title": "Burgers"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = s.do(t, http.MethodPost, "/api/chat", alice, gin.H{
		"chatId": chatID,
		"message": gin.H{
			"id":    "msg-1",
			"role":  "user",
			"parts": []gin.H{{"type": "text", "text": "Burger please"}},
		},
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "v1", w.Header().Get("x-vercel-ai-ui-message-stream"))

	var types []string
	for _, line := range strings.Split(w.Body.String(), "\n") {
		data, ok := strings.CutPrefix(line, "data:")
		if !ok {
			continue
		}
		if data == "[DONE]" {
			types = append(types, data)
			continue
		}
		var chunk struct {
			Type string `json:"type"`
		}
		require.NoError(t, json.Unmarshal([]byte(data), &chunk))
		types = append(types, chunk.Type)
	}
	assert.Equal(t, []string{"start", "text-start", "text-delta", "text-end", "tool-input-available", "finish", "[DONE]"}, types)

	w = s.do(t, http.MethodGet, "/v1/chats/"+chatID+"/messages", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var history struct {
		Messages []struct {
			Role  string           `json:"role"`
			Parts []map[string]any `json:"parts"`
		} `json:"messages"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &history))
	require.Len(t, history.Messages, 2)
	assert.Equal(t, "assistant", history.Messages[1].Role)
	assert.Equal(t, "tool-invocation", history.Messages[1].Parts[1]["type"])

	w = s.do(t, http.MethodPost, "/v1/tool-decisions", alice, gin.H{"toolCallId": "call_1", "action": "create"})
	require.Equal(t, http.StatusOK, w.Code)
	w = s.do(t, http.MethodPost, "/v1/tool-decisions", alice, gin.H{"toolCallId": "call_1", "action": "ignore"})
	assert.Equal(t, http.StatusConflict, w.Code)

	w = s.do(t, http.MethodGet, "/v1/chats/"+chatID+"/active-recipes", alice, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Smash Burger")
}

func TestChatRequiresValidChatID(t *testing.T) {
	s := newTestServer(t, &scriptedModel{})
	_, alice := s.signup(t, "alice@example.com")

	w := s.do(t, http.MethodPost, "/api/chat", alice, gin.H{
		"chatId":  "nope",
		"message": gin.H{"id": "m", "role": "user", "parts": []gin.H{{"type": "text", "text": "hi"}}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "chatId must be a valid ID", errorBody(t, w))

	w = s.do(t, http.MethodPost, "/api/chat", alice, gin.H{
		"chatId":  uuid.NewString(),
		"message": gin.H{"id": "m", "role": "user", "parts": []gin.H{{"type": "text", "text": "hi"}}},
	})
	assert.Equal(t, http.StatusNotFound, w.Code)
}
