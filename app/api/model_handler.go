package api

import (
	"askpdf/model"

	"github.com/gofiber/fiber/v2"
)

type ModelHandler struct {
	catalog *model.Catalog
}

func NewModelHandler(catalog *model.Catalog) *ModelHandler {
	return &ModelHandler{catalog: catalog}
}

// HandleListModels exposes the model catalog so clients can populate their
// model picker. The catalog is closed; selections outside it fall back to
// the default policy server-side.
func (h *ModelHandler) HandleListModels(c *fiber.Ctx) error {
	return c.JSON(h.catalog.Options())
}
