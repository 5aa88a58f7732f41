package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sakuuj/blogsite/internal/authz"
	"github.com/sakuuj/blogsite/internal/idempotency"
	"github.com/sakuuj/blogsite/internal/metrics"
	"github.com/sakuuj/blogsite/internal/storage"
	"github.com/sakuuj/blogsite/internal/topics"
	"github.com/sakuuj/blogsite/internal/validation"
)

// respondServiceError maps the write-protocol failure kinds onto client-facing
// statuses. Every kind is recoverable at this boundary; nothing is retried here.
func (h *httpHandler) respondServiceError(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	message := "internal_error"

	switch {
	case errors.Is(err, authz.ErrDenied):
		status, message = http.StatusForbidden, "access_denied"
	case errors.Is(err, validation.ErrInvalid):
		status, message = http.StatusBadRequest, "validation_failed"
	case errors.Is(err, idempotency.ErrInvalidTokenKey):
		status, message = http.StatusBadRequest, "invalid_idempotency_token"
	case errors.Is(err, idempotency.ErrTokenExists):
		status, message = http.StatusConflict, "idempotency_token_exists"
	case errors.Is(err, storage.ErrVersionConflict):
		status, message = http.StatusConflict, "version_conflict"
	case errors.Is(err, topics.ErrNameExists):
		status, message = http.StatusConflict, "name_exists"
	case errors.Is(err, storage.ErrNotFound):
		status, message = http.StatusNotFound, "not_found"
	}

	if status == http.StatusInternalServerError {
		h.logger.Error("request failed", zap.Error(err))
	}

	body := gin.H{"error": message}
	var coded interface{ Code() string }
	if errors.As(err, &coded) {
		body["code"] = coded.Code()
	}
	c.JSON(status, body)
}

func writeOutcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeSuccess
	case errors.Is(err, authz.ErrDenied):
		return metrics.OutcomeDenied
	case errors.Is(err, validation.ErrInvalid), errors.Is(err, idempotency.ErrInvalidTokenKey):
		return metrics.OutcomeInvalid
	case errors.Is(err, idempotency.ErrTokenExists):
		return metrics.OutcomeTokenExists
	case errors.Is(err, storage.ErrVersionConflict):
		return metrics.OutcomeVersionConflict
	case errors.Is(err, storage.ErrNotFound):
		return metrics.OutcomeNotFound
	default:
		return metrics.OutcomeError
	}
}
