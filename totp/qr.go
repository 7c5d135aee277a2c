package totp

import (
	"encoding/base64"
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// Payload is what a client needs to enrol an authenticator.
type Payload struct {
	Secret string
	URI    string
	// QRCode is a data:image/png;base64 URI that can be dropped into an <img>.
	QRCode string
}

// ProvisioningPayload renders the otpauth URI for label/secret as a PNG QR code.
func (e *Engine) ProvisioningPayload(label, secret string) (*Payload, error) {
	if _, err := decodeSecret(secret); err != nil {
		return nil, err
	}

	uri := e.ProvisionURI(label, secret)
	png, err := qrcode.Encode(uri, qrcode.Medium, e.config.QRSize)
	if err != nil {
		return nil, fmt.Errorf("render qr code: %w", err)
	}

	return &Payload{
		Secret: secret,
		URI:    uri,
		QRCode: "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	}, nil
}
