package api

import (
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

// Identity headers are supplied by the authenticating proxy in front of
// this service. The core never authenticates directly.
const (
	HeaderUserID = "X-User-Id"
	HeaderAdmin  = "X-Admin"
)

type identity struct {
	UserID  string
	IsAdmin bool
}

func requireIdentity(c *fiber.Ctx) (identity, error) {
	userID := c.Get(HeaderUserID)
	if userID == "" {
		return identity{}, ErrUnAuthorized("missing user identity")
	}
	return identity{
		UserID:  userID,
		IsAdmin: c.Get(HeaderAdmin) == "true",
	}, nil
}

func parseChatID(raw string) (uuid.UUID, error) {
	chatID, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, ErrInvalidID()
	}
	return chatID, nil
}
