package submission

import (
	"strconv"
	"strings"
	"time"
)

// invoicePrefixes are cosmetic prefixes the provider and printed badges put
// in front of the invoice number.  Matching is case-sensitive.
var invoicePrefixes = []string{"#", "INV-"}

// NormalizeInvoice returns the canonical invoice number used for storage
// and lookup: "# INV-000026", "INV-000026", "# 000026" and "000026" all map
// to "000026".  Prefixes are stripped until none is left, so the result is
// a fixed point: NormalizeInvoice(NormalizeInvoice(s)) == NormalizeInvoice(s).
// A bare prefix such as "# " normalizes to "".
func NormalizeInvoice(raw string) string {
	s := strings.TrimSpace(raw)
	for stripped := true; stripped; {
		stripped = false
		for _, p := range invoicePrefixes {
			if strings.HasPrefix(s, p) {
				s = strings.TrimSpace(strings.TrimPrefix(s, p))
				stripped = true
			}
		}
	}
	return s
}

// syntheticInvoice builds the fallback invoice for submissions that carry
// none.  It is normalized like any other value.
func syntheticInvoice(now time.Time) string {
	return NormalizeInvoice("INV-" + strconv.FormatInt(now.UnixMilli(), 10))
}
