package submission

import (
	"sort"
	"strings"
)

// Key is one candidate form-field key.  Exact keys match a field name
// verbatim; suffix keys match sanitized-label keys such as "q4_email" whose
// numeric prefix differs per template.
type Key struct {
	Name   string
	Suffix bool
}

// Exact matches the field name verbatim.
func Exact(name string) Key { return Key{Name: name} }

// Suffix matches any field name ending in s.
func Suffix(s string) Key { return Key{Name: s, Suffix: true} }

// Field identifies a logical ParsedSubmission field.
type Field string

const (
	FieldFormID    Field = "formId"
	FieldFormTitle Field = "formTitle"
	FieldEnvelope  Field = "envelope"
	FieldEmail     Field = "email"
	FieldName      Field = "name"
	FieldInvoice   Field = "invoiceNo"
	FieldPhone     Field = "phone"
	FieldChurch    Field = "church"
	FieldDay       Field = "chooseYour"
	FieldEventDate Field = "eventDate"
	FieldProducts  Field = "products"
	FieldTotal     Field = "totalAmount"
)

// aliases is the strategy table: per logical field, the candidate keys in
// priority order.  Supporting a new form template means adding keys here.
var aliases = map[Field][]Key{
	FieldFormID:    {Exact("formID"), Exact("form_id"), Exact("formId")},
	FieldFormTitle: {Exact("formTitle"), Exact("form_title"), Exact("title")},
	FieldEnvelope:  {Exact("rawRequest"), Exact("raw_request"), Exact("rawrequest")},
	FieldEmail: {
		Exact("q4_email"), Exact("email"), Exact("Email"), Exact("emailAddress"),
		Suffix("_email"), Suffix("_emailAddress"), Suffix("_yourEmail"),
	},
	FieldName: {
		Exact("q3_name"), Exact("name"), Exact("fullName"), Exact("full_name"),
		Suffix("_name"), Suffix("_fullName"), Suffix("_yourName"),
	},
	FieldInvoice: {
		Exact("q11_invoiceId"), Exact("invoiceId"), Exact("invoice_id"), Exact("invoiceNo"), Exact("invoice"),
		Suffix("_invoiceId"), Suffix("_invoiceNumber"), Suffix("_invoice"),
	},
	FieldPhone: {
		Exact("q5_phoneNumber"), Exact("phone"), Exact("phoneNumber"),
		Suffix("_phoneNumber"), Suffix("_phone"),
	},
	FieldChurch: {
		Exact("q6_church"), Exact("church"), Exact("churchName"), Exact("affiliation"),
		Suffix("_church"), Suffix("_churchName"), Suffix("_affiliation"),
	},
	FieldDay: {
		Exact("chooseYour"), Exact("whichDay"), Exact("day"),
		Suffix("_chooseYour"), Suffix("_whichDay"), Suffix("_selectDay"), Suffix("_day"),
	},
	FieldEventDate: {Exact("eventDate"), Exact("event_date"), Suffix("_eventDate")},
	FieldProducts: {
		Exact("myProducts"), Exact("products"), Exact("productDetails"),
		Suffix("_myProducts"), Suffix("_products"), Suffix("_payment"),
	},
	FieldTotal: {Exact("totalAmount"), Exact("total"), Exact("amount"), Suffix("_total")},
}

// candidates yields the values in fields matching key, in a deterministic
// order.
func (k Key) candidates(fields map[string]any) []any {
	if !k.Suffix {
		if v, ok := fields[k.Name]; ok {
			return []any{v}
		}
		return nil
	}
	var names []string
	for name := range fields {
		if len(name) > len(k.Name) && strings.HasSuffix(name, k.Name) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	out := make([]any, 0, len(names))
	for _, n := range names {
		out = append(out, fields[n])
	}
	return out
}

// firstMatch walks sources in order and, within each, the field's keys in
// order, returning the first value that renders non-empty under render.
func firstMatch(sources []map[string]any, f Field, render func(FieldValue) string) (string, any) {
	for _, src := range sources {
		if src == nil {
			continue
		}
		for _, k := range aliases[f] {
			for _, v := range k.candidates(src) {
				if s := render(Classify(v)); s != "" {
					return s, v
				}
			}
		}
	}
	return "", nil
}

// firstRaw is firstMatch for fields whose raw value is interpreted by the
// caller (products).  Values that render to "" are skipped.
func firstRaw(sources []map[string]any, f Field) (any, bool) {
	_, v := firstMatch(sources, f, plainText)
	return v, v != nil
}
