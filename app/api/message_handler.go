package api

import (
	"errors"

	"askpdf/store"
	"askpdf/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

type MessageHandler struct {
	store store.DBStorer
}

func NewMessageHandler(db store.DBStorer) *MessageHandler {
	return &MessageHandler{store: db}
}

// HandleListMessages returns a chat's turns in persisted order.
func (h *MessageHandler) HandleListMessages(c *fiber.Ctx) error {
	who, err := requireIdentity(c)
	if err != nil {
		return err
	}

	chatID, err := parseChatID(c.Params("chatId"))
	if err != nil {
		return err
	}

	chat, err := h.store.GetChat(c.Context(), chatID)
	if errors.Is(err, types.ErrNotFound) {
		return ErrNotFound(chatID, "chat")
	}
	if err != nil {
		return err
	}
	if chat.UserID != who.UserID && !who.IsAdmin {
		return ErrUnAuthorized("chat belongs to another user")
	}

	messages, err := h.store.ListMessages(c.Context(), chatID)
	if err != nil {
		return err
	}
	return c.JSON(messages)
}

// HandleMessageSources returns the citations backing one assistant turn.
// An answer without citations yields an empty list, not an error.
func (h *MessageHandler) HandleMessageSources(c *fiber.Ctx) error {
	if _, err := requireIdentity(c); err != nil {
		return err
	}

	messageID, err := uuid.Parse(c.Params("messageId"))
	if err != nil {
		return ErrInvalidID()
	}

	sources, err := h.store.GetSourcesByMessage(c.Context(), messageID)
	if err != nil {
		return err
	}
	if sources == nil {
		sources = []types.Source{}
	}
	return c.JSON(sources)
}
