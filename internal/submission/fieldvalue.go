package submission

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"
)

// FieldValue is the shape a single form answer arrives in.  Providers send
// the same logical field as a flat string on one template and as a
// structured sub-object on another; Classify folds those into one of:
//
//	Text      – a plain string
//	NameParts – an object with first/last sub-fields
//	FullText  – an object with a full sub-field
//	Other     – anything else (numbers, lists, unknown objects, null)
type FieldValue interface {
	fieldValue()
}

// Text is a flat string answer.
type Text string

// NameParts is an object carrying first/last sub-fields.  Full is kept when
// the provider sent it alongside.
type NameParts struct {
	First string
	Last  string
	Full  string
}

// FullText is an object whose meaningful content is its full sub-field,
// e.g. a phone widget {"full": "(555) 010-0199"}.
type FullText struct {
	Full string
}

// Other wraps any value that is not one of the shapes above.
type Other struct {
	Raw any
}

func (Text) fieldValue()      {}
func (NameParts) fieldValue() {}
func (FullText) fieldValue()  {}
func (Other) fieldValue()     {}

// Classify maps a decoded JSON value onto a FieldValue variant.
func Classify(v any) FieldValue {
	switch t := v.(type) {
	case string:
		return Text(t)
	case map[string]any:
		first, hasFirst := t["first"]
		last, hasLast := t["last"]
		full, hasFull := t["full"]
		switch {
		case hasFirst || hasLast:
			return NameParts{First: scalar(first), Last: scalar(last), Full: scalar(full)}
		case hasFull:
			return FullText{Full: scalar(full)}
		}
		return Other{Raw: t}
	default:
		return Other{Raw: v}
	}
}

// nameText renders a name answer: first and last joined by one space.
func nameText(v FieldValue) string {
	switch t := v.(type) {
	case Text:
		return strings.TrimSpace(string(t))
	case NameParts:
		if s := joinWords(t.First, t.Last); s != "" {
			return s
		}
		return strings.TrimSpace(t.Full)
	case FullText:
		return strings.TrimSpace(t.Full)
	case Other:
		return coerce(t.Raw)
	}
	return ""
}

// phoneText renders a phone answer, preferring the full sub-field.
func phoneText(v FieldValue) string {
	switch t := v.(type) {
	case Text:
		return strings.TrimSpace(string(t))
	case FullText:
		return strings.TrimSpace(t.Full)
	case NameParts:
		if s := strings.TrimSpace(t.Full); s != "" {
			return s
		}
		return joinWords(t.First, t.Last)
	case Other:
		if m, ok := t.Raw.(map[string]any); ok {
			// {area, phone} widgets
			if s := joinWords(scalar(m["area"]), scalar(m["phone"])); s != "" {
				return s
			}
		}
		return coerce(t.Raw)
	}
	return ""
}

// plainText renders any answer as a trimmed string.
func plainText(v FieldValue) string {
	switch t := v.(type) {
	case Text:
		return strings.TrimSpace(string(t))
	case NameParts:
		return nameText(t)
	case FullText:
		return strings.TrimSpace(t.Full)
	case Other:
		return coerce(t.Raw)
	}
	return ""
}

func joinWords(parts ...string) string {
	words := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			words = append(words, p)
		}
	}
	return strings.Join(words, " ")
}

// scalar renders a scalar JSON value; objects and lists yield "".
func scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	}
	return ""
}

// coerce renders any JSON value as text.  Lists join their elements with
// ", " and objects join their values in key order.
func coerce(v any) string {
	switch t := v.(type) {
	case []any:
		parts := make([]string, 0, len(t))
		for _, e := range t {
			if s := coerce(e); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		parts := make([]string, 0, len(keys))
		for _, k := range keys {
			if s := coerce(t[k]); s != "" {
				parts = append(parts, s)
			}
		}
		return strings.Join(parts, " ")
	}
	return scalar(v)
}
