// Package queue defines the domain events exchanged over RabbitMQ, the
// publisher used by the services and the audit consumer.
package queue

// Queue names.  Routing keys equal queue names on the default exchange.
const (
	TicketIssuedQueue    = "ticket.issued"
	TicketCheckedInQueue = "ticket.checked_in"
)

// TicketIssuedEvent is published after a new ticket has been created by
// ingestion.  Issuance reports whether the QR + email step succeeded.
type TicketIssuedEvent struct {
	TicketID  uint64 `json:"ticket_id"`
	InvoiceNo string `json:"invoice_no"`
	EventID   uint64 `json:"event_id"`
	FormID    string `json:"form_id"`
	Email     string `json:"email"`
	Name      string `json:"name"`
	Quantity  int    `json:"quantity"`
	Synthetic bool   `json:"synthetic_invoice"`
	Issuance  string `json:"issuance"` // "sent" or "delayed"
	IssuedAt  string `json:"issued_at"`
}

// TicketCheckedInEvent is published after a successful check-in.  Losing
// racers publish nothing.
type TicketCheckedInEvent struct {
	TicketID    uint64 `json:"ticket_id"`
	InvoiceNo   string `json:"invoice_no"`
	EventID     uint64 `json:"event_id"`
	Name        string `json:"name"`
	Quantity    int    `json:"quantity"`
	StaffID     uint64 `json:"staff_id,omitempty"`
	CheckedInAt string `json:"checked_in_at"`
}
