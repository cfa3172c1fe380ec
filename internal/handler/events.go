package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/service"
)

// EventService lists events and reports door progress.
type EventService interface {
	List(ctx context.Context) ([]model.Event, error)
	Stats(ctx context.Context, eventID uint64) (model.EventStats, error)
	SyncFromProvider(ctx context.Context) (service.SyncResult, error)
}

type EventHandler struct {
	svc EventService
	log *zap.Logger
}

func NewEventHandler(svc EventService, log *zap.Logger) *EventHandler {
	if log == nil {
		log = zap.L()
	}
	return &EventHandler{svc: svc, log: log.Named("events")}
}

// List handles GET /v1/events.
func (h *EventHandler) List(c echo.Context) error {
	events, err := h.svc.List(c.Request().Context())
	if err != nil {
		return writeError(c, h.log, err)
	}
	if events == nil {
		events = []model.Event{}
	}
	return c.JSON(http.StatusOK, echo.Map{"events": events})
}

// Stats handles GET /v1/events/:id/stats.
func (h *EventHandler) Stats(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	st, err := h.svc.Stats(c.Request().Context(), id)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, st)
}

// Sync handles POST /v1/events/sync.
func (h *EventHandler) Sync(c echo.Context) error {
	res, err := h.svc.SyncFromProvider(c.Request().Context())
	if errors.Is(err, service.ErrProviderNotConfigured) {
		return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "form provider API key is not configured"})
	}
	if err != nil {
		h.log.Warn("provider sync failed", zap.Error(err))
		return c.JSON(http.StatusBadGateway, echo.Map{"error": "form provider sync failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{
		"created":   res.Created,
		"updated":   res.Updated,
		"unchanged": res.Unchanged,
	})
}
