package api

import (
	"bufio"
	"context"
	"encoding/base64"
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"askpdf/app/agent"
	"askpdf/app/usage"
	"askpdf/types"

	"github.com/gofiber/fiber/v2"
)

// Citation sidecar headers. Sources are known as soon as retrieval finishes,
// so they ship in headers before the first token of the streamed body, keyed
// to the assistant turn by its 1-based index.
const (
	HeaderSources      = "X-Sources"
	HeaderMessageIndex = "X-Message-Index"
)

type ChatHandler struct {
	agent  *agent.Agent
	gate   *usage.Gate
	logger *slog.Logger
}

func NewChatHandler(a *agent.Agent, gate *usage.Gate, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{
		agent:  a,
		gate:   gate,
		logger: logger,
	}
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	who, err := requireIdentity(c)
	if err != nil {
		return err
	}

	var params types.ChatParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	chatID, err := parseChatID(params.ChatID)
	if err != nil {
		return err
	}

	if err := h.gate.CanProceed(c.Context(), who.UserID, who.IsAdmin, usage.KindMessage); err != nil {
		return err
	}

	var keys types.APIKeys
	if params.APIKeys != nil {
		keys = *params.APIKeys
	}

	answer, err := h.agent.Answer(c.Context(), agent.AnswerRequest{
		Question:      params.Question,
		History:       params.Messages,
		FileKey:       params.FileKey,
		ChatID:        chatID,
		UserID:        who.UserID,
		IsAdmin:       who.IsAdmin,
		SelectedModel: params.SelectedModel,
		Keys:          keys,
	})
	if err != nil {
		return err
	}

	if err := h.gate.Record(c.Context(), who.UserID, usage.KindMessage); err != nil {
		h.logger.Warn("failed to record usage", "userID", who.UserID, "error", err)
	}

	encoded, err := json.Marshal(answer.Sources)
	if err != nil {
		return err
	}
	c.Set(HeaderSources, base64.StdEncoding.EncodeToString(encoded))
	c.Set(HeaderMessageIndex, strconv.Itoa(answer.MessageIndex))
	c.Set(fiber.HeaderContentType, "text/plain; charset=utf-8")

	// Persistence must survive the request context: the stream writer runs
	// after the handler returns, when c.Context() may already be done.
	persistCtx := context.Background()
	logger := h.logger

	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		defer answer.Stream.Close()

		var full strings.Builder
		for answer.Stream.Next() {
			token := answer.Stream.Current()
			full.WriteString(token)
			if _, err := w.WriteString(token); err != nil {
				// Client disconnected: abandon generation, persist nothing.
				logger.Info("client disconnected mid-stream", "chatID", chatID)
				return
			}
			if err := w.Flush(); err != nil {
				logger.Info("client disconnected mid-stream", "chatID", chatID)
				return
			}
		}
		if err := answer.Stream.Err(); err != nil {
			// A failed stream must not leave a truncated assistant turn.
			logger.Error("generation stream failed", "chatID", chatID, "model", answer.Model, "error", err)
			return
		}
		if err := answer.Complete(persistCtx, full.String()); err != nil {
			logger.Error("failed to persist assistant turn", "chatID", chatID, "error", err)
		}
	})
	return nil
}
