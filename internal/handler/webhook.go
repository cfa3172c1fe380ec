package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/event-checkin/internal/service"
	"github.com/iliyamo/event-checkin/internal/submission"
)

// maxWebhookBody caps what we read from the provider.
const maxWebhookBody = 1 << 20

// Ingester is the ingestion use case.
type Ingester interface {
	Ingest(ctx context.Context, body []byte) (service.IngestResult, error)
	IngestPayload(ctx context.Context, payload map[string]any) (service.IngestResult, error)
}

// WebhookHandler receives form-provider submissions.  The endpoint is
// unauthenticated; the provider cannot sign its requests.
type WebhookHandler struct {
	svc Ingester
	log *zap.Logger
}

func NewWebhookHandler(svc Ingester, log *zap.Logger) *WebhookHandler {
	if log == nil {
		log = zap.L()
	}
	return &WebhookHandler{svc: svc, log: log.Named("webhook")}
}

type submissionResp struct {
	Status    string `json:"status"` // created | duplicate
	TicketID  uint64 `json:"ticketId"`
	InvoiceNo string `json:"invoiceNo"`
	EventID   uint64 `json:"eventId"`
	Issuance  string `json:"issuance,omitempty"` // sent | delayed
	Synthetic bool   `json:"syntheticInvoice,omitempty"`
}

// Submit handles POST /webhooks/submissions.  JSON bodies and form-encoded
// bodies (urlencoded or multipart) are both accepted, up to maxWebhookBody.
func (h *WebhookHandler) Submit(c echo.Context) error {
	req := c.Request()
	req.Body = http.MaxBytesReader(c.Response(), req.Body, maxWebhookBody)
	ctx := req.Context()

	var (
		res service.IngestResult
		err error
	)
	if isForm(req.Header.Get(echo.HeaderContentType)) {
		form, ferr := c.FormParams()
		if ferr != nil {
			if tooLarge(ferr) {
				return bodyTooLarge(c)
			}
			h.log.Warn("unreadable form body", zap.Error(ferr))
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "malformed payload"})
		}
		res, err = h.svc.IngestPayload(ctx, submission.PayloadFromForm(form))
	} else {
		raw, rerr := io.ReadAll(req.Body)
		if rerr != nil {
			if tooLarge(rerr) {
				return bodyTooLarge(c)
			}
			return c.JSON(http.StatusBadRequest, echo.Map{"error": "unreadable body"})
		}
		res, err = h.svc.Ingest(ctx, raw)
		if errors.Is(err, service.ErrMalformedPayload) {
			h.log.Warn("malformed webhook payload", zap.ByteString("body", truncate(raw, 4096)), zap.Error(err))
		}
	}
	if err != nil {
		return writeError(c, h.log, err)
	}

	out := submissionResp{
		TicketID:  res.Ticket.ID,
		InvoiceNo: res.Ticket.InvoiceNo,
		EventID:   res.Ticket.EventID,
		Synthetic: res.Synthetic,
	}
	if !res.Created {
		out.Status = "duplicate"
		return c.JSON(http.StatusOK, out)
	}
	out.Status = "created"
	out.Issuance = "sent"
	if res.IssuanceErr != nil {
		out.Issuance = "delayed"
	}
	return c.JSON(http.StatusCreated, out)
}

func tooLarge(err error) bool {
	var mbe *http.MaxBytesError
	return errors.As(err, &mbe)
}

func bodyTooLarge(c echo.Context) error {
	return c.JSON(http.StatusRequestEntityTooLarge, echo.Map{"error": "payload too large"})
}

func isForm(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, echo.MIMEApplicationForm) || strings.HasPrefix(ct, echo.MIMEMultipartForm)
}

func truncate(b []byte, n int) []byte {
	if len(b) > n {
		return b[:n]
	}
	return b
}
