package submission

import (
	"regexp"
	"strconv"
	"strings"
)

var (
	quantityRe = regexp.MustCompile(`(?i)Quantity:\s*(\d+)`)
	amountRe   = regexp.MustCompile(`(?i)Amount:\s*([0-9][0-9,]*(?:\.[0-9]+)?)`)
)

// productBlob is the decoded payment/product answer: its line items and,
// when the provider sent one, the order total.
type productBlob struct {
	lines    []string
	total    float64
	hasTotal bool
}

// decodeProducts interprets a product answer.  Accepted shapes:
//
//	{"paymentArray": "<json>"} or {"paymentArray": {...}}
//	"<json>" with product/total keys
//	"General Admission (Amount: 25.00 USD, Quantity: 2)"
//	["line 1", "line 2"]
func decodeProducts(v any) (productBlob, bool) {
	switch t := v.(type) {
	case map[string]any:
		if pa, ok := t["paymentArray"]; ok {
			return decodeProducts(pa)
		}
		if _, ok := t["product"]; ok {
			return blobFromPaymentArray(t), true
		}
		return productBlob{}, false
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return productBlob{}, false
		}
		if strings.HasPrefix(s, "{") {
			var m map[string]any
			if err := decodeJSON([]byte(s), &m); err == nil {
				return decodeProducts(m)
			}
		}
		return productBlob{lines: []string{s}}, true
	case []any:
		b := productBlob{}
		for _, e := range t {
			if s := coerce(e); s != "" {
				b.lines = append(b.lines, s)
			}
		}
		return b, len(b.lines) > 0
	}
	return productBlob{}, false
}

func blobFromPaymentArray(m map[string]any) productBlob {
	b := productBlob{}
	switch p := m["product"].(type) {
	case []any:
		for _, e := range p {
			if s := coerce(e); s != "" {
				b.lines = append(b.lines, s)
			}
		}
	default:
		if s := coerce(p); s != "" {
			b.lines = append(b.lines, s)
		}
	}
	if f, ok := parseAmount(scalar(m["total"])); ok {
		b.total, b.hasTotal = f, true
	}
	return b
}

// quantity sums every "Quantity: N" across the line items.  Blobs without
// a parseable quantity count as one ticket.
func (b productBlob) quantity() int {
	sum, found := 0, false
	for _, line := range b.lines {
		for _, m := range quantityRe.FindAllStringSubmatch(line, -1) {
			if n, err := strconv.Atoi(m[1]); err == nil {
				sum += n
				found = true
			}
		}
	}
	if !found || sum < 1 {
		return 1
	}
	return sum
}

// lineTotal is the fallback total: each line's Amount times its Quantity.
func (b productBlob) lineTotal() (float64, bool) {
	total, found := 0.0, false
	for _, line := range b.lines {
		am := amountRe.FindStringSubmatch(line)
		if am == nil {
			continue
		}
		price, ok := parseAmount(am[1])
		if !ok {
			continue
		}
		qty := 1
		if qm := quantityRe.FindStringSubmatch(line); qm != nil {
			if n, err := strconv.Atoi(qm[1]); err == nil {
				qty = n
			}
		}
		total += price * float64(qty)
		found = true
	}
	return total, found
}

func (b productBlob) details() string {
	return strings.Join(b.lines, "; ")
}

// parseAmount accepts "50", "50.00", "1,250.00" and "$50.00".
func parseAmount(s string) (float64, bool) {
	s = strings.TrimSpace(strings.TrimLeft(strings.TrimSpace(s), "$€£"))
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil || f < 0 {
		return 0, false
	}
	return f, true
}
