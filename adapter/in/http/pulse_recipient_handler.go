package http

import (
	"context"

	"github.com/gofiber/fiber/v2"

	"feedpulse/core/domain"
	"feedpulse/pkg/response"
)

// RecipientStore is the slice of the profile store the operator API uses.
type RecipientStore interface {
	ListActive(ctx context.Context) ([]*domain.Recipient, error)
	Upsert(ctx context.Context, recipient *domain.Recipient) error
}

// RecipientHandler exposes operator endpoints for managing subscribers.
type RecipientHandler struct {
	store RecipientStore
}

// NewRecipientHandler creates the handler.
func NewRecipientHandler(store RecipientStore) *RecipientHandler {
	return &RecipientHandler{store: store}
}

// Register mounts the handler routes.
func (h *RecipientHandler) Register(app *fiber.App) {
	api := app.Group("/api/v1")

	api.Get("/recipients", h.ListActive)
	api.Put("/recipients", h.Upsert)
}

// ListActive returns subscribers eligible for delivery.
func (h *RecipientHandler) ListActive(c *fiber.Ctx) error {
	recipients, err := h.store.ListActive(c.Context())
	if err != nil {
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, recipients)
}

type upsertRecipientRequest struct {
	ChatID      int64               `json:"chat_id"`
	Active      bool                `json:"active"`
	Preferences *domain.Preferences `json:"preferences,omitempty"`
}

// Upsert creates or updates a subscriber, keyed by chat id. Preferences
// default when the request omits them.
func (h *RecipientHandler) Upsert(c *fiber.Ctx) error {
	var req upsertRecipientRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "invalid request body")
	}
	if req.ChatID == 0 {
		return response.BadRequest(c, "chat_id is required")
	}

	recipient := &domain.Recipient{
		ChatID: req.ChatID,
		Active: req.Active,
	}
	if req.Preferences != nil {
		recipient.Preferences = *req.Preferences
	} else {
		recipient.Preferences = domain.DefaultPreferences()
	}

	if err := h.store.Upsert(c.Context(), recipient); err != nil {
		return response.InternalError(c, err.Error())
	}
	return response.OK(c, recipient)
}
