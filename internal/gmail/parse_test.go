package gmail

import (
	"encoding/base64"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const plainMessage = "From: Wholesale Deals <deals@example.com>\r\n" +
	"To: buyer@example.com\r\n" +
	"Subject: Off-market 3/2 on Main St\r\n" +
	"Date: Mon, 02 Jun 2025 10:15:00 -0500\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/plain; charset=utf-8\r\n" +
	"\r\n" +
	"123 Main St, Springfield, IL 62701\r\n" +
	"Asking $150,000\r\n"

const htmlOnlyMessage = "From: deals@example.com\r\n" +
	"Subject: HTML deal\r\n" +
	"MIME-Version: 1.0\r\n" +
	"Content-Type: text/html; charset=utf-8\r\n" +
	"\r\n" +
	"<html><body><p>Property at <b>42 Oak Ave</b></p><p>ARV 300k</p></body></html>\r\n"

func TestDecodeRaw(t *testing.T) {
	payload := []byte("Subject: hi\r\n\r\nbody??>")

	tests := []struct {
		name string
		raw  string
	}{
		{name: "padded", raw: base64.URLEncoding.EncodeToString(payload)},
		{name: "unpadded", raw: base64.RawURLEncoding.EncodeToString(payload)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := decodeRaw(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, payload, got)
		})
	}

	_, err := decodeRaw("not base64 at all!")
	assert.Error(t, err)
}

func TestParseMessage_PlainText(t *testing.T) {
	fallback := time.Unix(0, 0)

	msg, err := parseMessage([]byte(plainMessage), fallback)
	require.NoError(t, err)

	assert.Equal(t, "Wholesale Deals <deals@example.com>", msg.From)
	assert.Equal(t, "Off-market 3/2 on Main St", msg.Subject)
	assert.True(t, msg.Date.Equal(time.Date(2025, 6, 2, 15, 15, 0, 0, time.UTC)), "got %s", msg.Date)
	assert.Contains(t, msg.Body, "123 Main St, Springfield, IL 62701")
	assert.Contains(t, msg.Body, "Asking $150,000")
}

func TestParseMessage_HTMLOnly(t *testing.T) {
	fallback := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	msg, err := parseMessage([]byte(htmlOnlyMessage), fallback)
	require.NoError(t, err)

	assert.Equal(t, "HTML deal", msg.Subject)
	assert.Equal(t, fallback, msg.Date, "missing Date header falls back")
	assert.Contains(t, msg.Body, "42 Oak Ave")
	assert.Contains(t, msg.Body, "ARV 300k")
	assert.NotContains(t, msg.Body, "<p>")
}

func TestParseMessage_BadDateFallsBack(t *testing.T) {
	fallback := time.Date(2025, 3, 4, 5, 6, 7, 0, time.UTC)
	raw := strings.Replace(plainMessage, "Mon, 02 Jun 2025 10:15:00 -0500", "sometime last week", 1)

	msg, err := parseMessage([]byte(raw), fallback)
	require.NoError(t, err)
	assert.Equal(t, fallback, msg.Date)
}
