// Package submission turns loosely-typed form-provider webhook payloads
// into a canonical model.ParsedSubmission.
//
// Extraction never fails for missing or oddly shaped answers; it falls back
// to defaults.  Only a body that is not a JSON object at all is rejected.
package submission

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/iliyamo/event-checkin/internal/model"
)

// ErrMalformedPayload is returned when the webhook body is not a JSON
// object.
var ErrMalformedPayload = errors.New("malformed payload")

// Options configures a Normalizer.
type Options struct {
	// SessionLabels are the day-selector labels recognised in the
	// chooseYour answer, e.g. Friday, Saturday.  The configured spelling is
	// what ends up in ParsedSubmission.ChooseYour.
	SessionLabels []string
	// Now is the clock used for synthetic invoice numbers.
	Now func() time.Time
}

// Normalizer extracts ParsedSubmission values.  It is stateless apart from
// its options and safe for concurrent use.
type Normalizer struct {
	labels []string
	now    func() time.Time
}

// New returns a Normalizer.  A nil clock defaults to time.Now.
func New(opts Options) *Normalizer {
	n := &Normalizer{now: opts.Now}
	if n.now == nil {
		n.now = time.Now
	}
	for _, l := range opts.SessionLabels {
		if l = strings.TrimSpace(l); l != "" {
			n.labels = append(n.labels, l)
		}
	}
	return n
}

// Parse decodes a JSON webhook body and normalizes it.
func (n *Normalizer) Parse(body []byte) (model.ParsedSubmission, error) {
	var payload map[string]any
	if err := decodeJSON(body, &payload); err != nil {
		return model.ParsedSubmission{}, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	if payload == nil {
		return model.ParsedSubmission{}, fmt.Errorf("%w: body is not an object", ErrMalformedPayload)
	}
	return n.Normalize(payload), nil
}

// Normalize extracts a ParsedSubmission from an already decoded payload.
func (n *Normalizer) Normalize(payload map[string]any) model.ParsedSubmission {
	out := model.ParsedSubmission{Quantity: 1}

	raw := []map[string]any{payload}
	out.FormID, _ = firstMatch(raw, FieldFormID, plainText)
	out.FormTitle, _ = firstMatch(raw, FieldFormTitle, plainText)

	envelope, present, ok := envelopeFields(payload)
	if present && !ok {
		out.EnvelopeInvalid = true
	}
	sources := []map[string]any{envelope, payload}
	if out.FormID == "" {
		out.FormID, _ = firstMatch(sources, FieldFormID, plainText)
	}

	email, _ := firstMatch(sources, FieldEmail, plainText)
	out.Email = strings.ToLower(email)
	out.Name, _ = firstMatch(sources, FieldName, nameText)
	out.Phone, _ = firstMatch(sources, FieldPhone, phoneText)
	out.Church, _ = firstMatch(sources, FieldChurch, plainText)

	invoice, _ := firstMatch(sources, FieldInvoice, plainText)
	out.InvoiceNo = NormalizeInvoice(invoice)
	if out.InvoiceNo == "" {
		out.InvoiceNo = syntheticInvoice(n.now())
		out.SyntheticInvoice = true
	}

	if v, ok := firstRaw(sources, FieldProducts); ok {
		if blob, ok := decodeProducts(v); ok {
			out.ProductDetails = blob.details()
			out.Quantity = blob.quantity()
			switch {
			case blob.hasTotal:
				out.TotalAmount = blob.total
			default:
				if t, ok := blob.lineTotal(); ok {
					out.TotalAmount = t
				}
			}
		}
	}
	if out.TotalAmount == 0 {
		if s, _ := firstMatch(sources, FieldTotal, plainText); s != "" {
			if f, ok := parseAmount(s); ok {
				out.TotalAmount = f
			}
		}
	}

	day, _ := firstMatch(sources, FieldDay, plainText)
	out.ChooseYour = n.matchSession(day)
	out.EventDate, _ = firstMatch(sources, FieldEventDate, plainText)
	if out.EventDate == "" {
		out.EventDate = day
	}
	clipText(&out)
	return out
}

// Widths of the free-text columns.  Keys (form id, email, invoice) are not
// clipped: a clipped key could merge two registrations, so ingestion
// rejects oversized keys instead.
const (
	maxTextLen    = 255
	maxPhoneLen   = 64
	maxDetailsLen = 16000
)

func clipText(p *model.ParsedSubmission) {
	p.FormTitle = clip(p.FormTitle, maxTextLen)
	p.Name = clip(p.Name, maxTextLen)
	p.Church = clip(p.Church, maxTextLen)
	p.EventDate = clip(p.EventDate, maxTextLen)
	p.Phone = clip(p.Phone, maxPhoneLen)
	p.ProductDetails = clip(p.ProductDetails, maxDetailsLen)
}

// clip shortens s to at most n runes.
func clip(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return strings.TrimSpace(string([]rune(s)[:n]))
}

// matchSession returns the first configured label contained in s,
// case-insensitively, or "" when none matches.
func (n *Normalizer) matchSession(s string) string {
	if s == "" {
		return ""
	}
	lower := strings.ToLower(s)
	for _, l := range n.labels {
		if strings.Contains(lower, strings.ToLower(l)) {
			return l
		}
	}
	return ""
}

// envelopeFields decodes the nested answer set carried in an envelope field
// such as rawRequest.  present reports whether an envelope field existed;
// ok reports whether it held an object.
func envelopeFields(payload map[string]any) (fields map[string]any, present, ok bool) {
	for _, k := range aliases[FieldEnvelope] {
		for _, v := range k.candidates(payload) {
			present = true
			switch t := v.(type) {
			case map[string]any:
				return t, true, true
			case string:
				var m map[string]any
				if err := decodeJSON([]byte(t), &m); err == nil && m != nil {
					return m, true, true
				}
			}
		}
	}
	return nil, present, false
}

// PayloadFromForm converts form-encoded webhook values into the payload
// shape Normalize expects.  Repeated keys become lists.
func PayloadFromForm(form map[string][]string) map[string]any {
	out := make(map[string]any, len(form))
	for k, vals := range form {
		switch len(vals) {
		case 0:
		case 1:
			out[k] = vals[0]
		default:
			list := make([]any, len(vals))
			for i, v := range vals {
				list[i] = v
			}
			out[k] = list
		}
	}
	return out
}

// decodeJSON decodes exactly one JSON value; anything after it is an error.
func decodeJSON(b []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(dst); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}
