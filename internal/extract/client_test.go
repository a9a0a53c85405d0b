package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-key"

// modelReply wraps text in a generateContent response envelope.
func modelReply(text, finishReason string) string {
	resp := map[string]interface{}{
		"candidates": []interface{}{
			map[string]interface{}{
				"content":      map[string]interface{}{"parts": []interface{}{map[string]interface{}{"text": text}}},
				"finishReason": finishReason,
			},
		},
	}
	raw, _ := json.Marshal(resp)
	return string(raw)
}

func newTestClient(t *testing.T, handler http.HandlerFunc, mutate ...func(*Options)) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	opts := Options{
		Endpoint:     server.URL,
		APIKey:       testAPIKey,
		Instructions: "Extract the deal.",
		HTTPClient:   server.Client(),
	}
	for _, m := range mutate {
		m(&opts)
	}

	client, err := NewClient(opts)
	require.NoError(t, err)
	return client
}

func TestExtract_Success(t *testing.T) {
	var gotReq generateRequest
	var gotKey, gotQuery string

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		gotKey = r.Header.Get("x-goog-api-key")
		gotQuery = r.URL.RawQuery
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		_, _ = io.WriteString(w, modelReply("```json\n{\"propertyStreetAddress\": \"123 Main St\", \"askingPrice\": 450000}\n```", "STOP"))
	})

	result, err := client.Extract(t.Context(), "Great deal at 123 Main St")
	require.NoError(t, err)

	assert.Equal(t, KindExtracted, result.Kind)
	require.NotNil(t, result.Deal)
	assert.Equal(t, "123 Main St", *result.Deal.PropertyStreetAddress)
	assert.Equal(t, 450000.0, *result.Deal.AskingPrice)
	assert.Equal(t, "STOP", result.FinishReason)
	assert.False(t, result.Truncated)

	assert.Equal(t, testAPIKey, gotKey)
	assert.NotContains(t, gotQuery, testAPIKey)
	require.Len(t, gotReq.Contents, 1)
	require.Len(t, gotReq.Contents[0].Parts, 1)
	assert.Contains(t, gotReq.Contents[0].Parts[0].Text, "--- EMAIL BODY START ---\nGreat deal at 123 Main St\n--- EMAIL BODY END ---")
	assert.True(t, strings.HasPrefix(gotReq.Contents[0].Parts[0].Text, "Extract the deal."))
	assert.Nil(t, gotReq.GenerationConfig)
}

func TestExtract_GenerationConfig(t *testing.T) {
	var body map[string]interface{}
	temp := 0.2

	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		_, _ = io.WriteString(w, modelReply(`{}`, "STOP"))
	}, func(o *Options) {
		o.Temperature = &temp
		o.ResponseMIMEType = "application/json"
	})

	_, err := client.Extract(t.Context(), "body")
	require.NoError(t, err)

	cfg, ok := body["generationConfig"].(map[string]interface{})
	require.True(t, ok, "generationConfig missing")
	assert.Equal(t, 0.2, cfg["temperature"])
	assert.Equal(t, "application/json", cfg["responseMimeType"])
}

func TestExtract_StatusError(t *testing.T) {
	longBody := strings.Repeat("x", 2000)
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = io.WriteString(w, longBody)
	})

	result, err := client.Extract(t.Context(), "body")
	require.Error(t, err)

	var statusErr *StatusError
	require.True(t, errors.As(err, &statusErr))
	assert.Equal(t, http.StatusInternalServerError, statusErr.Code)
	assert.Len(t, statusErr.Body, 500)
	assert.Nil(t, result.Deal)
}

func TestExtract_TransportError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	client, err := NewClient(Options{Endpoint: url, APIKey: testAPIKey})
	require.NoError(t, err)

	_, err = client.Extract(t.Context(), "body")
	var transportErr *TransportError
	require.True(t, errors.As(err, &transportErr))
	assert.NotNil(t, errors.Unwrap(transportErr))
}

func TestExtract_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}, func(o *Options) {
		o.HTTPClient = &http.Client{Timeout: 20 * time.Millisecond}
	})

	_, err := client.Extract(t.Context(), "body")
	var transportErr *TransportError
	assert.True(t, errors.As(err, &transportErr))
}

func TestExtract_SoftFailures(t *testing.T) {
	tests := []struct {
		name       string
		response   string
		wantReason string
	}{
		{"not json", "<html>oops</html>", "unparseable response envelope"},
		{"no candidates", `{"candidates": []}`, "no candidates in response"},
		{"blocked prompt", `{"promptFeedback": {"blockReason": "SAFETY"}}`, "prompt blocked: SAFETY"},
		{"no content", `{"candidates": [{"finishReason": "SAFETY"}]}`, "no text content"},
		{"no parts", `{"candidates": [{"content": {"parts": []}, "finishReason": "STOP"}]}`, "no text content"},
		{"empty text", modelReply("", "MAX_TOKENS"), "no text content"},
		{"prose instead of json", modelReply("I could not find a deal.", "STOP"), "invalid model output"},
		{"broken json", modelReply(`{"askingPrice": 450000`, "STOP"), "invalid model output"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				_, _ = io.WriteString(w, tt.response)
			})

			result, err := client.Extract(t.Context(), "body")
			require.NoError(t, err)
			assert.Equal(t, KindEmpty, result.Kind)
			assert.Nil(t, result.Deal)
			assert.Contains(t, result.Reason, tt.wantReason)
		})
	}
}

func TestExtract_DropsUnreadableFields(t *testing.T) {
	var logs bytes.Buffer
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, modelReply(`{"propertyStreetAddress": "123 Main St", "askingPrice": 450000, "yearBuilt": "1990s"}`, "STOP"))
	}, func(o *Options) {
		o.Logger = slog.New(slog.NewTextHandler(&logs, nil))
	})

	result, err := client.Extract(t.Context(), "body")
	require.NoError(t, err)
	assert.Equal(t, KindExtracted, result.Kind)
	require.NotNil(t, result.Deal)
	assert.Equal(t, "123 Main St", *result.Deal.PropertyStreetAddress)
	assert.Nil(t, result.Deal.YearBuilt)

	assert.Contains(t, logs.String(), "dropped unreadable field")
	assert.Contains(t, logs.String(), "field=yearBuilt")
	assert.Contains(t, logs.String(), "1990s")
}

func TestExtract_TruncatedFlag(t *testing.T) {
	var prompt string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req generateRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		prompt = req.Contents[0].Parts[0].Text
		_, _ = io.WriteString(w, modelReply(`{}`, "STOP"))
	}, func(o *Options) {
		o.MaxPromptChars = 200
	})

	result, err := client.Extract(t.Context(), strings.Repeat("long body ", 100))
	require.NoError(t, err)
	assert.True(t, result.Truncated)
	assert.Contains(t, prompt, "--- EMAIL BODY START (TRUNCATED) ---")
	assert.True(t, strings.HasPrefix(prompt, "Extract the deal."))
}

func TestNewClient_Validation(t *testing.T) {
	_, err := NewClient(Options{APIKey: testAPIKey})
	assert.Error(t, err)

	_, err = NewClient(Options{Endpoint: "http://localhost"})
	assert.Error(t, err)

	client, err := NewClient(Options{Endpoint: "http://localhost", APIKey: testAPIKey})
	require.NoError(t, err)
	assert.Equal(t, DefaultInstructions(), client.instructions)
	assert.Equal(t, DefaultMaxPromptChars, client.limit)
}

func TestKind_String(t *testing.T) {
	assert.Equal(t, "empty", KindEmpty.String())
	assert.Equal(t, "extracted", KindExtracted.String())
}
