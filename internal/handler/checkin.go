package handler

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/middleware"
	"github.com/iliyamo/event-checkin/internal/model"
	"github.com/iliyamo/event-checkin/internal/service"
)

// CheckInService is the door-side use case.
type CheckInService interface {
	CheckIn(ctx context.Context, req service.CheckInRequest) (model.Guest, error)
	Lookup(ctx context.Context, invoiceNo string, eventID *uint64) (model.Guest, error)
	Search(ctx context.Context, eventID uint64, query string) ([]model.Guest, error)
}

// CheckInHandler serves the scanner API.
type CheckInHandler struct {
	svc CheckInService
	log *zap.Logger
}

func NewCheckInHandler(svc CheckInService, log *zap.Logger) *CheckInHandler {
	if log == nil {
		log = zap.L()
	}
	return &CheckInHandler{svc: svc, log: log.Named("checkin")}
}

// ----- DTOs -----

type checkInReq struct {
	TicketID  uint64  `json:"ticketId"`
	InvoiceNo string  `json:"invoiceNo"`
	EventID   *uint64 `json:"eventId"`
}

var errIdentifierRequired = errors.New("ticketId or invoiceNo is required")

func (r *checkInReq) Validate() error {
	r.InvoiceNo = strings.TrimSpace(r.InvoiceNo)
	return validation.ValidateStruct(r,
		validation.Field(&r.InvoiceNo, validation.By(func(any) error {
			if r.TicketID == 0 && r.InvoiceNo == "" {
				return errIdentifierRequired
			}
			return nil
		})),
		validation.Field(&r.EventID, validation.Min(uint64(1))),
	)
}

type searchReq struct {
	EventID uint64
	Query   string
}

func (r *searchReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.EventID, validation.Required),
		validation.Field(&r.Query, validation.Length(0, 100)),
	)
}

type lookupReq struct {
	InvoiceNo string
	EventID   *uint64
}

func (r *lookupReq) Validate() error {
	return validation.ValidateStruct(r,
		validation.Field(&r.InvoiceNo, validation.Required),
		validation.Field(&r.EventID, validation.Min(uint64(1))),
	)
}

// CheckIn handles POST /v1/checkin.
func (h *CheckInHandler) CheckIn(c echo.Context) error {
	var req checkInReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if err := req.Validate(); err != nil {
		return badRequest(c, err)
	}
	staffID, _ := middleware.UserID(c)

	g, err := h.svc.CheckIn(c.Request().Context(), service.CheckInRequest{
		TicketID:  req.TicketID,
		InvoiceNo: req.InvoiceNo,
		EventID:   req.EventID,
		StaffID:   staffID,
	})
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"message": "Checked in " + g.Name,
		"guest":   g,
	})
}

// Search handles GET /v1/checkin/search?eventId=&q=.
func (h *CheckInHandler) Search(c echo.Context) error {
	eventID, err := parseID(c.QueryParam("eventId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid eventId"})
	}
	req := searchReq{EventID: eventID, Query: strings.TrimSpace(c.QueryParam("q"))}
	if err := req.Validate(); err != nil {
		return badRequest(c, err)
	}
	guests, err := h.svc.Search(c.Request().Context(), req.EventID, req.Query)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"eventId": req.EventID,
		"query":   req.Query,
		"count":   len(guests),
		"guests":  guests,
	})
}

// Lookup handles GET /v1/checkin/lookup?invoiceNo=&eventId=.  It never
// changes the ticket.
func (h *CheckInHandler) Lookup(c echo.Context) error {
	eventID, err := parseOptionalID(c.QueryParam("eventId"))
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid eventId"})
	}
	req := lookupReq{InvoiceNo: strings.TrimSpace(c.QueryParam("invoiceNo")), EventID: eventID}
	if err := req.Validate(); err != nil {
		return badRequest(c, err)
	}
	g, err := h.svc.Lookup(c.Request().Context(), req.InvoiceNo, req.EventID)
	if err != nil {
		return writeError(c, h.log, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"guest": g})
}

func badRequest(c echo.Context, err error) error {
	return c.JSON(http.StatusBadRequest, echo.Map{"error": "validation failed", "fields": err})
}

// parseID parses a required positive id; "" yields 0 so validation can
// report it.
func parseID(s string) (uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseUint(s, 10, 64)
}

func parseOptionalID(s string) (*uint64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	id, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return nil, err
	}
	return &id, nil
}
