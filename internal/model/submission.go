package model

// ParsedSubmission is the normalizer's canonical view of one webhook
// payload.  It is never persisted.  Unextractable string fields are "",
// Quantity defaults to 1 and TotalAmount to 0, so downstream code never
// checks for absence.
type ParsedSubmission struct {
	FormID         string  `json:"formId"`
	FormTitle      string  `json:"formTitle"`
	Name           string  `json:"name"`
	Email          string  `json:"email"`
	InvoiceNo      string  `json:"invoiceNo"`
	Phone          string  `json:"phone"`
	Church         string  `json:"church"`
	Quantity       int     `json:"quantity"`
	ProductDetails string  `json:"productDetails"`
	TotalAmount    float64 `json:"totalAmount"`
	EventDate      string  `json:"eventDate"`
	ChooseYour     string  `json:"chooseYour"`

	// SyntheticInvoice is set when no invoice was present and InvoiceNo was
	// generated from the clock.  Such ids are a data-quality problem, not a
	// trustworthy business key.
	SyntheticInvoice bool `json:"syntheticInvoice"`
	// EnvelopeInvalid is set when an envelope field was present but did not
	// hold a JSON object, so extraction fell back to the raw payload.
	EnvelopeInvalid bool `json:"envelopeInvalid"`
}
