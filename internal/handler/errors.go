package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-lifecycle/internal/response"
	"github.com/stemsi/exstem-lifecycle/internal/service"
)

// failWith maps a service error onto the API envelope. Domain errors keep
// their own code; anything else is logged and reported as a server error.
func failWith(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrNotFound)
	case errors.Is(err, service.ErrInvalidWindow):
		response.FailWithFields(c, http.StatusBadRequest, response.ErrInvalidWindow, map[string]string{
			"detail": err.Error(),
		})
	case errors.Is(err, service.ErrNotActive):
		response.Fail(c, http.StatusConflict, response.ErrExamNotAvailable)
	case errors.Is(err, service.ErrRegistrationRequired):
		response.Fail(c, http.StatusForbidden, response.ErrRegistrationRequired)
	case errors.Is(err, service.ErrRegistrationNotRequired):
		response.Fail(c, http.StatusConflict, response.ErrRegistrationNotRequired)
	case errors.Is(err, service.ErrNotStarted):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotStarted)
	case errors.Is(err, service.ErrDeadlineExceeded):
		response.Fail(c, http.StatusConflict, response.ErrDeadlineExceeded)
	case errors.Is(err, service.ErrAlreadyCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSessionCompleted)
	case errors.Is(err, service.ErrNotCompleted):
		response.Fail(c, http.StatusConflict, response.ErrSessionNotCompleted)
	case errors.Is(err, service.ErrUnknownQuestion):
		response.Fail(c, http.StatusBadRequest, response.ErrUnknownQuestion)
	case errors.Is(err, service.ErrPersistence):
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Store unavailable")
		response.Fail(c, http.StatusServiceUnavailable, response.ErrUnavailable)
	default:
		zerolog.Ctx(c.Request.Context()).Error().Err(err).Msg("Unhandled service error")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}

// examIDParam parses :exam_id, writing a 400 when it is malformed.
func examIDParam(c *gin.Context) (uuid.UUID, bool) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return uuid.Nil, false
	}
	return examID, true
}
