// Package issuance renders the ticket artefacts sent to a registrant: a QR
// code for the invoice number and the confirmation email carrying it.
package issuance

import (
	"errors"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QREncoder encodes strings as PNG QR codes.
type QREncoder struct {
	Size  int
	Level qrcode.RecoveryLevel
}

// NewQREncoder returns an encoder producing 256px PNGs at medium recovery.
func NewQREncoder() *QREncoder {
	return &QREncoder{Size: 256, Level: qrcode.Medium}
}

// Encode returns content as a PNG QR code.
func (e *QREncoder) Encode(content string) ([]byte, error) {
	if content == "" {
		return nil, errors.New("qr: empty content")
	}
	png, err := qrcode.Encode(content, e.Level, e.Size)
	if err != nil {
		return nil, fmt.Errorf("qr: %w", err)
	}
	return png, nil
}
