package api

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"askpdf/app/usage"
	"askpdf/store"
	"askpdf/types"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

const maxUploadBytes = 32 << 20

type FileHandler struct {
	files  store.FileStore
	store  store.DBStorer
	gate   *usage.Gate
	logger *slog.Logger
}

func NewFileHandler(files store.FileStore, db store.DBStorer, gate *usage.Gate, logger *slog.Logger) *FileHandler {
	return &FileHandler{
		files:  files,
		store:  db,
		gate:   gate,
		logger: logger,
	}
}

// HandleUpload stores a PDF and opens a chat for it. The returned fileKey
// must then be passed to the ingest endpoint before the chat is usable.
func (h *FileHandler) HandleUpload(c *fiber.Ctx) error {
	who, err := requireIdentity(c)
	if err != nil {
		return err
	}

	if err := h.gate.CanProceed(c.Context(), who.UserID, who.IsAdmin, usage.KindFile); err != nil {
		return err
	}

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return ErrBadRequest()
	}
	if fileHeader.Size > maxUploadBytes {
		return NewError(fiber.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
	}
	if !strings.EqualFold(filepath.Ext(fileHeader.Filename), ".pdf") {
		return NewError(fiber.StatusBadRequest, "only PDF files are supported")
	}

	file, err := fileHeader.Open()
	if err != nil {
		return err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return err
	}

	fileKey, err := h.files.Upload(c.Context(), data, fileHeader.Filename)
	if err != nil {
		return err
	}

	chat := types.Chat{
		ID:        uuid.New(),
		UserID:    who.UserID,
		PDFName:   fileHeader.Filename,
		FileKey:   fileKey,
		CreatedAt: time.Now(),
	}
	if err := h.store.CreateChat(c.Context(), chat); err != nil {
		return err
	}

	if err := h.gate.Record(c.Context(), who.UserID, usage.KindFile); err != nil {
		h.logger.Warn("failed to record usage", "userID", who.UserID, "error", err)
	}

	h.logger.Info("file uploaded", "fileKey", fileKey, "chatID", chat.ID, "size", fileHeader.Size)
	return c.JSON(fiber.Map{"fileKey": fileKey, "chatId": chat.ID})
}
