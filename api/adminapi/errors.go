package adminapi

import (
	"github.com/gofiber/fiber/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/candlepin/candlepin-sub033/manifest"
	"github.com/candlepin/candlepin-sub033/manifest/conflict"
	"github.com/candlepin/candlepin-sub033/storage/model"
)

// Error codes
const (
	errInvalidRequest = "invalid_request"
	errNotFound       = "not_found"
	errConflict       = "conflict"
	errServerError    = "server_error"
	errUnavailable    = "temporarily_unavailable"
)

// errorResponse is the body of every failed admin API request
type errorResponse struct {
	Error            string   `json:"error"`
	ErrorDescription string   `json:"error_description,omitempty"`
	Conflicts        []string `json:"conflicts,omitempty"`
}

func errorInvalidRequest(description string) errorResponse {
	return errorResponse{Error: errInvalidRequest, ErrorDescription: description}
}

func errorNotFound(description string) errorResponse {
	return errorResponse{Error: errNotFound, ErrorDescription: description}
}

func errorServerError(description string) errorResponse {
	return errorResponse{Error: errServerError, ErrorDescription: description}
}

// sendError maps manifest and storage errors onto a status code
func sendError(c *fiber.Ctx, err error) error {
	var (
		notFound     model.NotFoundError
		exists       model.AlreadyExistsError
		conflictErr  *conflict.ImportConflictError
		duplicateErr *manifest.DuplicateUpstreamConsumerError
		formatErr    *manifest.DataFormatError
		extractErr   *manifest.ExtractionError
		importerErr  *manifest.ImporterError
		exportErr    *manifest.ExportCreationError
	)
	switch {
	case errors.As(err, &notFound):
		return c.Status(fiber.StatusNotFound).JSON(errorNotFound(notFound.Error()))
	case errors.As(err, &conflictErr):
		return c.Status(fiber.StatusConflict).JSON(
			errorResponse{
				Error:            errConflict,
				ErrorDescription: conflictErr.Error(),
				Conflicts:        conflictErr.Tokens(),
			},
		)
	case errors.As(err, &duplicateErr), errors.As(err, &exists):
		return c.Status(fiber.StatusConflict).JSON(
			errorResponse{
				Error:            errConflict,
				ErrorDescription: err.Error(),
			},
		)
	case errors.As(err, &formatErr), errors.As(err, &extractErr), errors.As(err, &importerErr):
		return c.Status(fiber.StatusBadRequest).JSON(errorInvalidRequest(err.Error()))
	case errors.Is(err, manifest.ErrQueueFull):
		return c.Status(fiber.StatusServiceUnavailable).JSON(
			errorResponse{
				Error:            errUnavailable,
				ErrorDescription: err.Error(),
			},
		)
	case errors.As(err, &exportErr):
		log.WithError(err).Error("export failed")
		return c.Status(fiber.StatusInternalServerError).JSON(errorServerError(exportErr.Message))
	}
	log.WithError(err).Error("admin api request failed")
	return c.Status(fiber.StatusInternalServerError).JSON(errorServerError(err.Error()))
}
