package handlers

import (
	"context"
	"errors"
	"log"

	"github.com/gofiber/fiber/v2"

	"webresearch/internal/errs"
	"webresearch/internal/models"
)

// QueryResolver resolves one query against optional conversation state.
type QueryResolver interface {
	Resolve(ctx context.Context, query, chatID string) (*models.QueryResult, error)
}

// QueryHandler handles query resolution requests
type QueryHandler struct {
	resolver QueryResolver
}

// NewQueryHandler creates a new query handler
func NewQueryHandler(resolver QueryResolver) *QueryHandler {
	return &QueryHandler{resolver: resolver}
}

// Handle resolves a query
// POST /api/query
func (h *QueryHandler) Handle(c *fiber.Ctx) error {
	var req models.QueryRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.resolver.Resolve(c.Context(), req.Query, req.ChatID)
	if errors.Is(err, errs.ErrValidation) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Query must be at least 2 characters long",
		})
	}
	if err != nil {
		// Detail stays in logs; callers get one opaque message
		log.Printf("❌ [QUERY] Resolution failed: %v", err)
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to process the query",
		})
	}

	return c.JSON(result)
}
