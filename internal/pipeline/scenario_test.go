package pipeline

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/dealscout/internal/enrich"
	"github.com/teemow/dealscout/internal/extract"
)

// modelServer answers generateContent requests. Prompts mentioning "boom"
// get a 500, prompts mentioning "chatter" get prose instead of JSON.
func modelServer(t *testing.T) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		prompt := string(raw)

		switch {
		case strings.Contains(prompt, "boom"):
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		case strings.Contains(prompt, "chatter"):
			writeCandidate(t, w, "Sorry, I could not find a property in this email.")
			return
		}
		writeCandidate(t, w, "```json\n"+`{
  "senderName": "Bob",
  "propertyStreetAddress": "123 Main St",
  "propertyCity": "Springfield",
  "propertyState": "IL",
  "propertyZip": "62701",
  "bedrooms": 3,
  "askingPrice": "$150,000",
  "closingDate": "2025-07-15"
}`+"\n```")
	}))
	t.Cleanup(server.Close)
	return server
}

func writeCandidate(t *testing.T, w http.ResponseWriter, text string) {
	resp := map[string]interface{}{
		"candidates": []interface{}{map[string]interface{}{
			"content":      map[string]interface{}{"parts": []interface{}{map[string]interface{}{"text": text}}},
			"finishReason": "STOP",
		}},
	}
	w.Header().Set("Content-Type", "application/json")
	assert.NoError(t, json.NewEncoder(w).Encode(resp))
}

func lookupServer(t *testing.T, addresses *[]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*addresses = append(*addresses, r.URL.Query().Get("fullAddress"))
		_, _ = io.WriteString(w, `{"result":{"owner_name":"Jane Doe"}}`)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestScenario_EndToEnd(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	model := modelServer(t)
	var addresses []string
	lookup := lookupServer(t, &addresses)

	extractor, err := extract.NewClient(extract.Options{
		Endpoint:   model.URL,
		APIKey:     "test-key",
		HTTPClient: model.Client(),
		Logger:     logger,
	})
	require.NoError(t, err)

	enricher, err := enrich.NewClient(enrich.Options{
		Endpoint:   lookup.URL,
		HTTPClient: lookup.Client(),
		Logger:     logger,
	})
	require.NoError(t, err)

	h := newHarness(
		thread("t1", message("t1", "m1", "boom: the model is down for this one")),
		thread("t2", message("t2", "m2", "chatter without a deal")),
		thread("t3", message("t3", "m3", "")),
		thread("t4", message("t4", "m4", "3/2 at 123 Main St, Springfield IL, asking $150k")),
	)

	opts := h.opts
	opts.Mailbox = h.mailbox
	opts.Extractor = extractor
	opts.Enricher = enricher
	opts.Sink = h.sink

	runner, err := NewRunner(opts)
	require.NoError(t, err)

	summary, err := runner.Run(t.Context())
	require.NoError(t, err, "per-message failures never fail the run")

	assert.Equal(t, 4, summary.Messages)
	assert.Equal(t, 1, summary.Count(OutcomeExtractFailed))
	assert.Equal(t, 1, summary.Count(OutcomeNoData))
	assert.Equal(t, 1, summary.Count(OutcomeEmptyBody))
	assert.Equal(t, 1, summary.Count(OutcomeMarked))

	assert.Equal(t, []string{"m4"}, h.mailbox.markedRead)
	assert.Equal(t, []string{"t4"}, h.mailbox.labelled)
	assert.Equal(t, []string{"123 Main St, Springfield, IL 62701"}, addresses)

	require.Len(t, h.sink.records, 1)
	rec := h.sink.records[0]
	require.NotNil(t, rec.OwnerName)
	assert.Equal(t, "Jane Doe", *rec.OwnerName)
	assert.Equal(t, 150000.0, *rec.AskingPrice)
	assert.Equal(t, "2025-07-15", rec.ClosingDate.String())
}
