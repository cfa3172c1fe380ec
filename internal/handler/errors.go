package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/service"
)

// Outcome reasons returned to scanner clients.
const (
	reasonAlreadyCheckedIn = "AlreadyCheckedIn"
	reasonNotFound         = "NotFound"
	reasonWrongEvent       = "WrongEvent"
)

// writeError maps service errors onto HTTP responses.  Anything not in the
// taxonomy is logged and hidden behind a 500.
func writeError(c echo.Context, log *zap.Logger, err error) error {
	var (
		ve *service.ValidationError
		ae *service.AlreadyCheckedInError
	)
	switch {
	case errors.As(err, &ve):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": ve.Fields})
	case errors.Is(err, service.ErrMalformedPayload):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
	case errors.As(err, &ae):
		return c.JSON(http.StatusConflict, echo.Map{
			"success":     false,
			"reason":      reasonAlreadyCheckedIn,
			"message":     alreadyCheckedInMessage(ae),
			"name":        ae.Guest.Name,
			"checkInTime": ae.Guest.CheckInTime,
			"guest":       ae.Guest,
		})
	case errors.Is(err, service.ErrWrongEvent):
		return c.JSON(http.StatusNotFound, echo.Map{
			"success": false,
			"reason":  reasonWrongEvent,
			"message": "Ticket not found. It may be for a different event.",
		})
	case errors.Is(err, service.ErrNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{
			"success": false,
			"reason":  reasonNotFound,
			"message": "Ticket not found.",
		})
	case errors.Is(err, service.ErrEventNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
	case errors.Is(err, service.ErrInvalidCredentials):
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "invalid credentials"})
	}
	log.Error("request failed", zap.String("path", c.Path()), zap.Error(err))
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}

func alreadyCheckedInMessage(ae *service.AlreadyCheckedInError) string {
	if ae.Guest.CheckInTime == nil {
		return fmt.Sprintf("%s is already checked in.", ae.Guest.Name)
	}
	return fmt.Sprintf("%s was already checked in at %s.", ae.Guest.Name, ae.Guest.CheckInTime.UTC().Format(time.RFC3339))
}
