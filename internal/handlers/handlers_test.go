package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"webresearch/internal/errs"
	"webresearch/internal/models"
)

type fakeResolver struct {
	result *models.QueryResult
	err    error

	gotQuery  string
	gotChatID string
}

func (f *fakeResolver) Resolve(_ context.Context, query, chatID string) (*models.QueryResult, error) {
	f.gotQuery = query
	f.gotChatID = chatID
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

type fakeChatStore struct {
	chats map[string]*models.Chat
}

func newFakeChatStore() *fakeChatStore {
	return &fakeChatStore{chats: make(map[string]*models.Chat)}
}

func (f *fakeChatStore) Create(_ context.Context, userID string) (*models.Chat, error) {
	chat := &models.Chat{
		ChatID:    "chat-1",
		UserID:    userID,
		Messages:  []models.Message{},
		Version:   1,
		CreatedAt: time.Now(),
		UpdatedAt: time.Now(),
	}
	f.chats[chat.ChatID] = chat
	return chat, nil
}

func (f *fakeChatStore) GetByID(_ context.Context, chatID string) (*models.Chat, error) {
	chat, ok := f.chats[chatID]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return chat, nil
}

func (f *fakeChatStore) List(_ context.Context) ([]models.ChatListItem, error) {
	items := []models.ChatListItem{}
	for _, chat := range f.chats {
		items = append(items, models.ChatListItem{
			ChatID:       chat.ChatID,
			MessageCount: len(chat.Messages),
		})
	}
	return items, nil
}

func (f *fakeChatStore) AppendMessages(_ context.Context, chatID string, messages ...models.Message) error {
	chat, ok := f.chats[chatID]
	if !ok {
		return errs.ErrNotFound
	}
	chat.Messages = append(chat.Messages, messages...)
	return nil
}

func parseBody(t *testing.T, body io.Reader) map[string]interface{} {
	t.Helper()
	raw, err := io.ReadAll(body)
	if err != nil {
		t.Fatalf("Failed to read response: %v", err)
	}
	var result map[string]interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		t.Fatalf("Failed to parse JSON %q: %v", raw, err)
	}
	return result
}

func TestQueryHandler_Success(t *testing.T) {
	app := fiber.New()
	resolver := &fakeResolver{result: &models.QueryResult{Answer: "Paris.", ExtendedSearch: false}}
	app.Post("/api/query", NewQueryHandler(resolver).Handle)

	req := httptest.NewRequest("POST", "/api/query",
		strings.NewReader(`{"query": "What is the capital of France?", "chat_id": "chat-9"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	if resolver.gotQuery != "What is the capital of France?" || resolver.gotChatID != "chat-9" {
		t.Errorf("resolver got (%q, %q)", resolver.gotQuery, resolver.gotChatID)
	}

	result := parseBody(t, resp.Body)
	if result["response"] != "Paris." {
		t.Errorf("Expected response 'Paris.', got %v", result["response"])
	}
	if result["extended_search"] != false {
		t.Errorf("Expected extended_search false, got %v", result["extended_search"])
	}
}

func TestQueryHandler_ValidationError(t *testing.T) {
	app := fiber.New()
	resolver := &fakeResolver{err: errs.Validation("query must be at least 2 characters long")}
	app.Post("/api/query", NewQueryHandler(resolver).Handle)

	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(`{"query": "x"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestQueryHandler_OpaqueInternalError(t *testing.T) {
	app := fiber.New()
	resolver := &fakeResolver{err: errs.ErrOrchestration}
	app.Post("/api/query", NewQueryHandler(resolver).Handle)

	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(`{"query": "a valid query"}`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusInternalServerError {
		t.Errorf("Expected status 500, got %d", resp.StatusCode)
	}
	result := parseBody(t, resp.Body)
	if result["error"] != "Failed to process the query" {
		t.Errorf("Internal detail must not leak, got %v", result["error"])
	}
}

func TestQueryHandler_MalformedBody(t *testing.T) {
	app := fiber.New()
	app.Post("/api/query", NewQueryHandler(&fakeResolver{}).Handle)

	req := httptest.NewRequest("POST", "/api/query", strings.NewReader(`{not json`))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusBadRequest {
		t.Errorf("Expected status 400, got %d", resp.StatusCode)
	}
}

func TestChatHandler_CreateAndGet(t *testing.T) {
	app := fiber.New()
	store := newFakeChatStore()
	handler := NewChatHandler(store)
	app.Post("/api/chats", handler.Create)
	app.Get("/api/chats/:id", handler.Get)

	req := httptest.NewRequest("POST", "/api/chats", strings.NewReader(`{"user_id": "u-1"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusCreated {
		t.Errorf("Expected status 201, got %d", resp.StatusCode)
	}
	created := parseBody(t, resp.Body)
	chatID, _ := created["id"].(string)
	if chatID == "" {
		t.Fatal("Expected created chat to have an id")
	}

	getReq := httptest.NewRequest("GET", "/api/chats/"+chatID, nil)
	getResp, err := app.Test(getReq)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer getResp.Body.Close()

	if getResp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", getResp.StatusCode)
	}
}

func TestChatHandler_GetMissingChat(t *testing.T) {
	app := fiber.New()
	app.Get("/api/chats/:id", NewChatHandler(newFakeChatStore()).Get)

	req := httptest.NewRequest("GET", "/api/chats/nope", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestChatHandler_AddMessageValidation(t *testing.T) {
	app := fiber.New()
	store := newFakeChatStore()
	if _, err := store.Create(context.Background(), ""); err != nil {
		t.Fatal(err)
	}
	app.Post("/api/chats/:id/messages", NewChatHandler(store).AddMessage)

	tests := []struct {
		name string
		body string
		want int
	}{
		{"valid user message", `{"role": "user", "content": "hi"}`, fiber.StatusCreated},
		{"valid assistant message", `{"role": "assistant", "content": "hello"}`, fiber.StatusCreated},
		{"bad role", `{"role": "system", "content": "hi"}`, fiber.StatusBadRequest},
		{"missing content", `{"role": "user"}`, fiber.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/api/chats/chat-1/messages", strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("Failed to send request: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("Expected status %d, got %d", tt.want, resp.StatusCode)
			}
		})
	}
}

func TestChatHandler_AddMessageMissingChat(t *testing.T) {
	app := fiber.New()
	app.Post("/api/chats/:id/messages", NewChatHandler(newFakeChatStore()).AddMessage)

	req := httptest.NewRequest("POST", "/api/chats/nope/messages",
		strings.NewReader(`{"role": "user", "content": "hi"}`))
	req.Header.Set("Content-Type", "application/json")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusNotFound {
		t.Errorf("Expected status 404, got %d", resp.StatusCode)
	}
}

func TestHealthHandler(t *testing.T) {
	app := fiber.New()
	app.Get("/health", NewHealthHandler(nil).Handle)

	req := httptest.NewRequest("GET", "/health", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("Failed to send request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != fiber.StatusOK {
		t.Errorf("Expected status 200, got %d", resp.StatusCode)
	}
	result := parseBody(t, resp.Body)
	if result["status"] != "healthy" {
		t.Errorf("Expected status 'healthy', got %v", result["status"])
	}
	if result["database"] != "disabled" {
		t.Errorf("Expected database 'disabled' with nil store, got %v", result["database"])
	}
}
