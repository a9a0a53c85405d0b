package gmail

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/jhillyerd/enmime"
)

// parsedMessage holds the parts of a raw RFC 822 message the pipeline uses.
type parsedMessage struct {
	From    string
	Subject string
	Date    time.Time
	Body    string
}

// decodeRaw decodes the base64url raw field of a Gmail message. Gmail pads
// the encoding, but unpadded input is accepted as well.
func decodeRaw(raw string) ([]byte, error) {
	if data, err := base64.URLEncoding.DecodeString(raw); err == nil {
		return data, nil
	}
	data, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(raw, "="))
	if err != nil {
		return nil, fmt.Errorf("failed to decode raw message: %w", err)
	}
	return data, nil
}

// parseMessage parses a raw message. fallbackDate is used when the Date
// header is missing or unreadable.
func parseMessage(data []byte, fallbackDate time.Time) (*parsedMessage, error) {
	env, err := enmime.ReadEnvelope(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse MIME message: %w", err)
	}

	date := fallbackDate
	if header := env.GetHeader("Date"); header != "" {
		if parsed, err := mail.ParseDate(header); err == nil {
			date = parsed
		}
	}

	return &parsedMessage{
		From:    env.GetHeader("From"),
		Subject: env.GetHeader("Subject"),
		Date:    date,
		// enmime converts the HTML part to text when there is no text part
		Body: env.Text,
	}, nil
}
