package handlers

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/gofiber/fiber/v2"

	"webresearch/internal/errs"
	"webresearch/internal/models"
)

// ChatStore is the persistence surface the chat endpoints need.
type ChatStore interface {
	Create(ctx context.Context, userID string) (*models.Chat, error)
	GetByID(ctx context.Context, chatID string) (*models.Chat, error)
	List(ctx context.Context) ([]models.ChatListItem, error)
	AppendMessages(ctx context.Context, chatID string, messages ...models.Message) error
}

// ChatHandler handles conversation management requests
type ChatHandler struct {
	chats ChatStore
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chats ChatStore) *ChatHandler {
	return &ChatHandler{chats: chats}
}

// Create creates a new empty conversation
// POST /api/chats
func (h *ChatHandler) Create(c *fiber.Ctx) error {
	var req models.CreateChatRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "Invalid request body",
			})
		}
	}

	chat, err := h.chats.Create(c.Context(), req.UserID)
	if err != nil {
		log.Printf("❌ [CHAT] Failed to create chat: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to create chat",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(chat)
}

// Get returns one conversation with its full message history
// GET /api/chats/:id
func (h *ChatHandler) Get(c *fiber.Ctx) error {
	chatID := c.Params("id")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Chat ID is required",
		})
	}

	chat, err := h.chats.GetByID(c.Context(), chatID)
	if errors.Is(err, errs.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chat not found",
		})
	}
	if err != nil {
		log.Printf("❌ [CHAT] Failed to get chat %s: %v", chatID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to get chat",
		})
	}

	return c.JSON(chat)
}

// List returns summaries of all conversations, most recently updated first
// GET /api/chats
func (h *ChatHandler) List(c *fiber.Ctx) error {
	items, err := h.chats.List(c.Context())
	if err != nil {
		log.Printf("❌ [CHAT] Failed to list chats: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to list chats",
		})
	}

	return c.JSON(fiber.Map{"chats": items})
}

// AddMessage appends one turn to a conversation
// POST /api/chats/:id/messages
func (h *ChatHandler) AddMessage(c *fiber.Ctx) error {
	chatID := c.Params("id")
	if chatID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Chat ID is required",
		})
	}

	var req models.AddMessageRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Role != models.RoleUser && req.Role != models.RoleAssistant {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Role must be 'user' or 'assistant'",
		})
	}
	if req.Content == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Content is required",
		})
	}

	msg := models.Message{Role: req.Role, Content: req.Content, Timestamp: time.Now()}
	err := h.chats.AppendMessages(c.Context(), chatID, msg)
	if errors.Is(err, errs.ErrNotFound) {
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
			"error": "Chat not found",
		})
	}
	if err != nil {
		log.Printf("❌ [CHAT] Failed to add message to chat %s: %v", chatID, err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to add message",
		})
	}

	return c.Status(fiber.StatusCreated).JSON(msg)
}
