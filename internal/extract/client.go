package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/teemow/dealscout/internal/instrumentation"
	"github.com/teemow/dealscout/internal/logging"
)

// maxErrorBody is how many characters of a failed response body are kept.
const maxErrorBody = 500

// maxResponseBytes bounds how much of a reply is read.
const maxResponseBytes = 10 << 20

// Kind tags the outcome of an extraction that did not fail hard.
type Kind int

const (
	// KindEmpty means the endpoint answered but no Deal could be read.
	KindEmpty Kind = iota
	// KindExtracted means Deal holds the decoded reply.
	KindExtracted
)

func (k Kind) String() string {
	switch k {
	case KindExtracted:
		return "extracted"
	default:
		return "empty"
	}
}

// Result is the outcome of Extract when no hard error occurred.
type Result struct {
	Kind Kind
	Deal *Deal
	// Reason explains a KindEmpty result.
	Reason string
	// FinishReason is the model's finish reason, when one was returned.
	FinishReason string
	// Truncated reports whether the body was cut to fit the prompt limit.
	Truncated bool
}

// StatusError is returned when the endpoint answers with a non-2xx status.
type StatusError struct {
	Code int
	// Body is the start of the response body.
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("extraction endpoint returned status %d: %s", e.Code, e.Body)
}

// TransportError is returned when the request could not be completed.
type TransportError struct {
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("extraction request failed: %v", e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// Options configure a Client.
type Options struct {
	Endpoint     string
	APIKey       string
	Instructions string
	// MaxPromptChars bounds the prompt; 0 uses DefaultMaxPromptChars.
	MaxPromptChars   int
	Temperature      *float64
	ResponseMIMEType string
	// HTTPClient defaults to a client with a 60s timeout.
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// Client calls a generateContent endpoint.
type Client struct {
	endpoint     string
	apiKey       string
	instructions string
	limit        int
	genConfig    *generationConfig
	httpClient   *http.Client
	logger       *slog.Logger
	metrics      *instrumentation.Metrics
}

// NewClient creates an extraction client.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("extraction endpoint is required")
	}
	if opts.APIKey == "" {
		return nil, errors.New("extraction API key is required")
	}

	instructions := opts.Instructions
	if instructions == "" {
		instructions = DefaultInstructions()
	}
	limit := opts.MaxPromptChars
	if limit == 0 {
		limit = DefaultMaxPromptChars
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	var genConfig *generationConfig
	if opts.Temperature != nil || opts.ResponseMIMEType != "" {
		genConfig = &generationConfig{
			Temperature:      opts.Temperature,
			ResponseMIMEType: opts.ResponseMIMEType,
		}
	}

	return &Client{
		endpoint:     opts.Endpoint,
		apiKey:       opts.APIKey,
		instructions: instructions,
		limit:        limit,
		genConfig:    genConfig,
		httpClient:   httpClient,
		logger:       logging.WithService(logger, instrumentation.ServiceExtraction),
		metrics:      opts.Metrics,
	}, nil
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text string `json:"text"`
}

type generationConfig struct {
	Temperature      *float64 `json:"temperature,omitempty"`
	ResponseMIMEType string   `json:"responseMimeType,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      *content `json:"content"`
		FinishReason string   `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Extract sends body to the model and decodes its reply.
//
// A non-nil error is always a *StatusError or *TransportError. Replies that
// carry no usable Deal are reported as a KindEmpty Result with a nil error.
func (c *Client) Extract(ctx context.Context, body string) (Result, error) {
	ctx, span := instrumentation.StartClientSpan(ctx, instrumentation.ServiceExtraction, instrumentation.OperationGenerate)
	defer span.End()
	start := time.Now()

	prompt := BuildPrompt(c.instructions, body, c.limit)
	if prompt.Truncated {
		c.logger.Warn("email body truncated to fit prompt limit",
			slog.Int("limit", c.limit),
			slog.Int("body_chars", prompt.BodyChars))
		c.metrics.RecordPromptTruncated(ctx)
	}

	result, err := c.generate(ctx, prompt.Text)
	result.Truncated = prompt.Truncated

	status := instrumentation.StatusSuccess
	switch {
	case err != nil:
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	case result.Kind == KindEmpty:
		status = instrumentation.StatusEmpty
	default:
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordEndpointCall(ctx, instrumentation.ServiceExtraction, status, time.Since(start))

	return result, err
}

func (c *Client) generate(ctx context.Context, prompt string) (Result, error) {
	payload, err := json.Marshal(generateRequest{
		Contents:         []content{{Parts: []part{{Text: prompt}}}},
		GenerationConfig: c.genConfig,
	})
	if err != nil {
		return Result{}, &TransportError{Err: fmt.Errorf("failed to encode request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return Result{}, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return Result{}, &StatusError{
			Code: resp.StatusCode,
			Body: truncateRunes(string(raw), maxErrorBody),
		}
	}

	var envelope generateResponse
	if err := json.Unmarshal(raw, &envelope); err != nil {
		c.logger.Warn("could not parse response envelope",
			logging.Err(err),
			slog.String("body", logging.Truncate(string(raw), maxErrorBody)))
		return Result{Kind: KindEmpty, Reason: "unparseable response envelope"}, nil
	}

	if len(envelope.Candidates) == 0 {
		reason := "no candidates in response"
		if envelope.PromptFeedback != nil && envelope.PromptFeedback.BlockReason != "" {
			reason = "prompt blocked: " + envelope.PromptFeedback.BlockReason
		}
		c.logger.Warn("model returned no candidates", slog.String("reason", reason))
		return Result{Kind: KindEmpty, Reason: reason}, nil
	}

	candidate := envelope.Candidates[0]
	if candidate.FinishReason != "" && candidate.FinishReason != "STOP" {
		c.logger.Warn("model finished abnormally", slog.String("finish_reason", candidate.FinishReason))
	}

	if candidate.Content == nil || len(candidate.Content.Parts) == 0 || candidate.Content.Parts[0].Text == "" {
		c.logger.Warn("response has no text content",
			slog.String("finish_reason", candidate.FinishReason),
			slog.String("body", logging.Truncate(string(raw), maxErrorBody)))
		return Result{Kind: KindEmpty, Reason: "no text content", FinishReason: candidate.FinishReason}, nil
	}

	text := candidate.Content.Parts[0].Text
	deal, problems, err := DecodeDeal(StripCodeFence(text))
	if err != nil {
		c.logger.Warn("model output is not a valid deal",
			logging.Err(err),
			slog.String("text", text))
		return Result{
			Kind:         KindEmpty,
			Reason:       fmt.Sprintf("invalid model output: %v", err),
			FinishReason: candidate.FinishReason,
		}, nil
	}

	for _, p := range problems {
		c.logger.Warn("dropped unreadable field from model output",
			slog.String("field", p.Field),
			slog.String("value", logging.Truncate(p.Raw, maxErrorBody)),
			logging.Err(p.Err))
	}

	return Result{Kind: KindExtracted, Deal: deal, FinishReason: candidate.FinishReason}, nil
}
