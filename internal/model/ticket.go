package model

import "time"

// Ticket is one paid registration line.  InvoiceNo is stored in its
// canonical (prefix-stripped) form.  CheckedIn only ever moves from false
// to true, and CheckInTime is non-nil exactly when CheckedIn is true.
type Ticket struct {
	ID             uint64
	InvoiceNo      string
	EventID        uint64
	UserID         uint64
	Name           string
	Email          string
	Phone          string
	Church         string
	Quantity       int
	ProductDetails string
	TotalAmount    float64
	EventDate      string
	ChooseYour     string
	CheckedIn      bool
	CheckInTime    *time.Time
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Guest is the display/receipt projection of a ticket returned by search,
// lookup and check-in.
type Guest struct {
	TicketID       uint64     `json:"ticketId"`
	EventID        uint64     `json:"eventId"`
	Name           string     `json:"name"`
	Email          string     `json:"email"`
	Phone          string     `json:"phone,omitempty"`
	Church         string     `json:"church,omitempty"`
	InvoiceNo      string     `json:"invoiceNo"`
	Quantity       int        `json:"quantity"`
	ProductDetails string     `json:"productDetails"`
	TotalAmount    float64    `json:"totalAmount"`
	EventDate      string     `json:"eventDate,omitempty"`
	ChooseYour     string     `json:"chooseYour,omitempty"`
	CheckedIn      bool       `json:"checkedIn"`
	CheckInTime    *time.Time `json:"checkInTime"`
}

// Guest projects t for display.
func (t Ticket) Guest() Guest {
	return Guest{
		TicketID:       t.ID,
		EventID:        t.EventID,
		Name:           t.Name,
		Email:          t.Email,
		Phone:          t.Phone,
		Church:         t.Church,
		InvoiceNo:      t.InvoiceNo,
		Quantity:       t.Quantity,
		ProductDetails: t.ProductDetails,
		TotalAmount:    t.TotalAmount,
		EventDate:      t.EventDate,
		ChooseYour:     t.ChooseYour,
		CheckedIn:      t.CheckedIn,
		CheckInTime:    t.CheckInTime,
	}
}
