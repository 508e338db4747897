package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/versio-data/versio/cmd/versio/service"
)

// statusFor maps service errors to HTTP statuses. Not-found identities are
// 404, policy violations 409, malformed input 400, storage outages 503 so
// clients know to retry with backoff, and graph corruption is a plain 500.
func statusFor(err error) int {
	switch {
	case errors.Is(err, service.ErrDatasetNotFound),
		errors.Is(err, service.ErrVersionNotFound),
		errors.Is(err, service.ErrParentNotFound),
		errors.Is(err, service.ErrPointerNotFound),
		errors.Is(err, service.ErrArtifactNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrDuplicateName),
		errors.Is(err, service.ErrProtectedBranch),
		errors.Is(err, service.ErrImmutablePointer),
		errors.Is(err, service.ErrVersionInUse),
		errors.Is(err, service.ErrAlreadyCaptured),
		errors.Is(err, service.ErrAdvanceContention):
		return http.StatusConflict
	case errors.Is(err, service.ErrInvalidName):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrStorage),
		errors.Is(err, service.ErrCommitIncomplete):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// serviceError writes the standard error envelope for a service failure
func serviceError(c echo.Context, err error) error {
	status := statusFor(err)
	body := map[string]interface{}{"error": err.Error()}
	if status == http.StatusInternalServerError {
		body["error"] = "internal error"
	}
	return c.JSON(status, body)
}
