package types

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

type Validater interface {
	Validate() map[string]string
}

// ChatParams is the body of POST /api/v1/chat.
type ChatParams struct {
	Question      string           `json:"question" validate:"required"`
	Messages      []HistoryMessage `json:"messages"`
	FileKey       string           `json:"fileKey" validate:"required"`
	ChatID        string           `json:"chatId" validate:"required,uuid4"`
	SelectedModel string           `json:"selectedModel,omitempty"`
	APIKeys       *APIKeys         `json:"apiKeys,omitempty"`
}

// IngestParams is the body of POST /api/v1/ingest.
type IngestParams struct {
	FileKey string `json:"fileKey" validate:"required"`
}

// DeleteDocumentParams is the body of POST /api/v1/documents/delete.
type DeleteDocumentParams struct {
	FileKey string `json:"fileKey" validate:"required"`
	ChatID  string `json:"chatId" validate:"required,uuid4"`
}

func Validate(v Validater) map[string]string {
	return v.Validate()
}

func validateStruct(s any) map[string]string {
	validate := validator.New()
	if err := validate.Struct(s); err != nil {
		errs := err.(validator.ValidationErrors)
		errors := make(map[string]string)
		for _, e := range errs {
			errors[e.Field()] = fmt.Sprintf("failed on '%s' tag", e.Tag())
		}
		return errors
	}
	return nil
}

func (params *ChatParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *IngestParams) Validate() map[string]string {
	return validateStruct(params)
}

func (params *DeleteDocumentParams) Validate() map[string]string {
	return validateStruct(params)
}
