package enrich

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/teemow/dealscout/internal/extract"
	"github.com/teemow/dealscout/internal/instrumentation"
	"github.com/teemow/dealscout/internal/logging"
)

const maxErrorBody = 500

// Owner is the result of a lookup.
type Owner struct {
	// OwnerName is nil when the lookup found no owner.
	OwnerName *string
}

// StatusError is returned when the lookup endpoint answers with a status other than 200.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("owner lookup returned status %d: %s", e.Code, e.Body)
}

// FullAddress formats the deal's address as "<street>, <city>, <state> <zip>".
// Missing parts are left empty.
func FullAddress(deal *extract.Deal) string {
	if deal == nil {
		return ""
	}
	return fmt.Sprintf("%s, %s, %s %s",
		deref(deal.PropertyStreetAddress),
		deref(deal.PropertyCity),
		deref(deal.PropertyState),
		deref(deal.PropertyZip))
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Options configure a Client.
type Options struct {
	Endpoint   string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
}

// Client calls the owner lookup endpoint.
type Client struct {
	endpoint   string
	httpClient *http.Client
	logger     *slog.Logger
	metrics    *instrumentation.Metrics
}

// NewClient creates a lookup client.
func NewClient(opts Options) (*Client, error) {
	if opts.Endpoint == "" {
		return nil, errors.New("enrichment endpoint is required")
	}
	if _, err := url.Parse(opts.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid enrichment endpoint: %w", err)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint:   opts.Endpoint,
		httpClient: httpClient,
		logger:     logging.WithService(logger, instrumentation.ServiceEnrichment),
		metrics:    opts.Metrics,
	}, nil
}

type lookupRequest struct {
	FullAddress string `json:"fullAddress"`
}

type lookupResponse struct {
	Result *struct {
		OwnerName *string `json:"owner_name"`
	} `json:"result"`
}

// Lookup returns the owner of the deal's property. A deal without a street
// address is not looked up and yields an empty Owner.
func (c *Client) Lookup(ctx context.Context, deal *extract.Deal) (Owner, error) {
	if deal == nil || deal.PropertyStreetAddress == nil || strings.TrimSpace(*deal.PropertyStreetAddress) == "" {
		c.logger.Debug("no street address, skipping owner lookup")
		return Owner{}, nil
	}

	ctx, span := instrumentation.StartClientSpan(ctx, instrumentation.ServiceEnrichment, instrumentation.OperationLookup)
	defer span.End()
	start := time.Now()

	owner, err := c.lookup(ctx, FullAddress(deal))

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	c.metrics.RecordEndpointCall(ctx, instrumentation.ServiceEnrichment, status, time.Since(start))

	return owner, err
}

func (c *Client) lookup(ctx context.Context, address string) (Owner, error) {
	payload, err := json.Marshal(lookupRequest{FullAddress: address})
	if err != nil {
		return Owner{}, fmt.Errorf("failed to encode lookup request: %w", err)
	}

	u, err := url.Parse(c.endpoint)
	if err != nil {
		return Owner{}, fmt.Errorf("invalid enrichment endpoint: %w", err)
	}
	q := u.Query()
	q.Set("fullAddress", address)
	u.RawQuery = q.Encode()

	// The endpoint reads the address from a GET body; the query parameter
	// carries it for servers that drop GET bodies.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), bytes.NewReader(payload))
	if err != nil {
		return Owner{}, fmt.Errorf("failed to create lookup request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Owner{}, fmt.Errorf("owner lookup request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return Owner{}, fmt.Errorf("failed to read lookup response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return Owner{}, &StatusError{Code: resp.StatusCode, Body: logging.Truncate(string(raw), maxErrorBody)}
	}

	c.logger.Debug("owner lookup response", slog.String("body", logging.Truncate(string(raw), maxErrorBody)))

	var decoded lookupResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return Owner{}, fmt.Errorf("failed to decode lookup response: %w", err)
	}

	if decoded.Result == nil || decoded.Result.OwnerName == nil || strings.TrimSpace(*decoded.Result.OwnerName) == "" {
		return Owner{}, nil
	}
	name := strings.TrimSpace(*decoded.Result.OwnerName)
	return Owner{OwnerName: &name}, nil
}
