package gateway

import (
	"encoding/base64"

	"github.com/pkg/errors"
	qrcode "github.com/skip2/go-qrcode"
)

// renderPairingImage turns a raw pairing code into a PNG data URL that
// a browser can drop straight into an img tag.
func renderPairingImage(code string) (string, error) {
	png, err := qrcode.Encode(code, qrcode.Medium, 256)
	if err != nil {
		return "", errors.Wrap(err, "encode pairing qr")
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
