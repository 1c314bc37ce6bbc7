package api

import (
	"log/slog"

	"askpdf/loader"
	"askpdf/store"
	"askpdf/types"

	"github.com/gofiber/fiber/v2"
)

type IngestHandler struct {
	loader *loader.Loader
	files  store.FileStore
	store  store.DBStorer
	logger *slog.Logger
}

func NewIngestHandler(l *loader.Loader, files store.FileStore, db store.DBStorer, logger *slog.Logger) *IngestHandler {
	return &IngestHandler{
		loader: l,
		files:  files,
		store:  db,
		logger: logger,
	}
}

// HandleIngest runs the ingestion pipeline for an uploaded document. Meant
// to be called once per upload, before the document is queryable; re-runs
// converge to the same vector set.
func (h *IngestHandler) HandleIngest(c *fiber.Ctx) error {
	if _, err := requireIdentity(c); err != nil {
		return err
	}

	var params types.IngestParams
	if c.BodyParser(&params) != nil {
		return ErrBadRequest()
	}
	if errors := types.Validate(&params); len(errors) > 0 {
		return NewValidationError(errors)
	}

	if err := h.loader.Ingest(c.Context(), params.FileKey); err != nil {
		return err
	}
	return c.JSON(fiber.Map{"result": "ok", "fileKey": params.FileKey})
}

// HandleDeleteDocument removes the storage object, its vectors, and the
// conversation tied to the chat.
func (h *IngestHandler) HandleDeleteDocument(c *fiber.Ctx) error {
	if _, err := requireIdentity(c); err != nil {
		return err
	}

	var params types.DeleteDocumentParams
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

	if err := h.files.Delete(c.Context(), params.FileKey); err != nil {
		h.logger.Warn("failed to delete stored file", "fileKey", params.FileKey, "error", err)
	}
	if err := h.loader.DeleteVectors(c.Context(), params.FileKey); err != nil {
		return err
	}
	if err := h.store.DeleteSources(c.Context(), chatID); err != nil {
		return err
	}
	if err := h.store.DeleteMessages(c.Context(), chatID); err != nil {
		return err
	}
	if err := h.store.DeleteChat(c.Context(), chatID); err != nil {
		return err
	}

	h.logger.Info("document deleted", "fileKey", params.FileKey, "chatID", chatID)
	return c.JSON(fiber.Map{"result": "ok"})
}
