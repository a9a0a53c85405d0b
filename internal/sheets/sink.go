package sheets

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"slices"
	"strings"
	"time"

	"google.golang.org/api/option"
	sheetsapi "google.golang.org/api/sheets/v4"

	"github.com/teemow/dealscout/internal/instrumentation"
	"github.com/teemow/dealscout/internal/logging"
	"github.com/teemow/dealscout/internal/pipeline"
)

// Options configure a Sink.
type Options struct {
	SpreadsheetID string
	SheetName     string
	// Account is only used for span attributes.
	Account    string
	HTTPClient *http.Client
	Logger     *slog.Logger
	Metrics    *instrumentation.Metrics
	// ClientOptions are passed to the Sheets service, e.g. an endpoint override.
	ClientOptions []option.ClientOption
}

// Status describes the destination sheet after EnsureSheet.
type Status struct {
	// Created is true when the sheet did not exist and was created.
	Created bool
	// Headers is the first row of the sheet.
	Headers []string
	// HeadersMatch reports whether Headers equals the expected header row.
	HeadersMatch bool
}

// Sink writes records to one sheet of a spreadsheet.
type Sink struct {
	svc           *sheetsapi.Service
	spreadsheetID string
	sheetName     string
	account       string
	logger        *slog.Logger
	metrics       *instrumentation.Metrics

	ensured bool
}

var _ pipeline.Sink = (*Sink)(nil)

// valueInputRaw stores values exactly as sent.
const valueInputRaw = "RAW"

// NewSink creates a Sink using an authenticated HTTP client.
func NewSink(ctx context.Context, opts Options) (*Sink, error) {
	if opts.HTTPClient == nil {
		return nil, errors.New("an authenticated HTTP client is required")
	}
	if opts.SpreadsheetID == "" {
		return nil, errors.New("spreadsheet id is required")
	}
	if opts.SheetName == "" {
		return nil, errors.New("sheet name is required")
	}

	clientOpts := append([]option.ClientOption{option.WithHTTPClient(opts.HTTPClient)}, opts.ClientOptions...)
	svc, err := sheetsapi.NewService(ctx, clientOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create Sheets service: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Sink{
		svc:           svc,
		spreadsheetID: opts.SpreadsheetID,
		sheetName:     opts.SheetName,
		account:       opts.Account,
		logger:        logging.WithService(logger, instrumentation.ServiceSheets),
		metrics:       opts.Metrics,
	}, nil
}

// Log appends rec as one row. Cells are written RAW so mail text is never
// parsed as a formula or coerced to a number. The sheet is ensured on the first call. Errors
// are logged with the row and reported as false.
func (s *Sink) Log(ctx context.Context, rec pipeline.Record) bool {
	row := Row(rec)

	if !s.ensured {
		if _, err := s.EnsureSheet(ctx); err != nil {
			s.logFailure(err, row)
			return false
		}
		s.ensured = true
	}

	err := s.observe(ctx, instrumentation.OperationAppend, func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, s.a1("A1"), &sheetsapi.ValueRange{
			Values: [][]interface{}{row},
		}).ValueInputOption(valueInputRaw).InsertDataOption("INSERT_ROWS").Context(ctx).Do()
		return err
	})
	if err != nil {
		s.logFailure(fmt.Errorf("failed to append row: %w", err), row)
		return false
	}

	s.logger.Debug("row appended", slog.String("sheet", s.sheetName))
	return true
}

func (s *Sink) logFailure(err error, row []interface{}) {
	s.logger.Error("failed to log record to sheet",
		slog.String("spreadsheet_id", s.spreadsheetID),
		slog.String("sheet", s.sheetName),
		logging.Err(err),
		slog.Any("row", row))
}

// EnsureSheet creates the sheet with a frozen header row if it does not
// exist, otherwise reads its header row and warns when it differs from
// Headers.
func (s *Sink) EnsureSheet(ctx context.Context) (*Status, error) {
	var spreadsheet *sheetsapi.Spreadsheet
	err := s.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		spreadsheet, err = s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties").Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open spreadsheet %s: %w", s.spreadsheetID, err)
	}

	exists := slices.ContainsFunc(spreadsheet.Sheets, func(sh *sheetsapi.Sheet) bool {
		return sh.Properties != nil && sh.Properties.Title == s.sheetName
	})
	if !exists {
		if err := s.createSheet(ctx); err != nil {
			return nil, err
		}
		return &Status{Created: true, Headers: slices.Clone(Headers), HeadersMatch: true}, nil
	}

	var values *sheetsapi.ValueRange
	err = s.observe(ctx, instrumentation.OperationGet, func(ctx context.Context) error {
		var err error
		values, err = s.svc.Spreadsheets.Values.Get(s.spreadsheetID, s.a1("1:1")).Context(ctx).Do()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read header row: %w", err)
	}

	status := &Status{Headers: headerRow(values)}
	status.HeadersMatch = slices.Equal(status.Headers, Headers)
	if !status.HeadersMatch {
		s.logger.Warn("sheet headers don't match expected headers, data might be logged incorrectly",
			slog.String("sheet", s.sheetName),
			slog.Any("headers", status.Headers))
	}
	return status, nil
}

func (s *Sink) createSheet(ctx context.Context) error {
	err := s.observe(ctx, instrumentation.OperationCreate, func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheetsapi.BatchUpdateSpreadsheetRequest{
			Requests: []*sheetsapi.Request{{
				AddSheet: &sheetsapi.AddSheetRequest{
					Properties: &sheetsapi.SheetProperties{
						Title:          s.sheetName,
						GridProperties: &sheetsapi.GridProperties{FrozenRowCount: 1},
					},
				},
			}},
		}).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to create sheet %q: %w", s.sheetName, err)
	}

	header := make([]interface{}, len(Headers))
	for i, h := range Headers {
		header[i] = h
	}
	err = s.observe(ctx, instrumentation.OperationModify, func(ctx context.Context) error {
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, s.a1("A1"), &sheetsapi.ValueRange{
			Values: [][]interface{}{header},
		}).ValueInputOption(valueInputRaw).Context(ctx).Do()
		return err
	})
	if err != nil {
		return fmt.Errorf("failed to write header row: %w", err)
	}

	s.logger.Info("created sheet", slog.String("sheet", s.sheetName))
	return nil
}

// a1 returns a range in A1 notation on the sink's sheet.
func (s *Sink) a1(cells string) string {
	return "'" + strings.ReplaceAll(s.sheetName, "'", "''") + "'!" + cells
}

func (s *Sink) observe(ctx context.Context, operation string, call func(ctx context.Context) error) error {
	ctx, span := instrumentation.StartGoogleAPISpan(ctx, instrumentation.ServiceSheets, operation,
		instrumentation.NewSpanAttributeBuilder().WithAccount(s.account).Build()...)
	defer span.End()

	start := time.Now()
	err := call(ctx)

	status := instrumentation.StatusSuccess
	if err != nil {
		status = instrumentation.StatusError
		instrumentation.SetSpanError(span, err)
	} else {
		instrumentation.SetSpanSuccess(span)
	}
	s.metrics.RecordGoogleAPIOperation(ctx, instrumentation.ServiceSheets, operation, status, time.Since(start))
	return err
}

func headerRow(values *sheetsapi.ValueRange) []string {
	if values == nil || len(values.Values) == 0 {
		return nil
	}
	row := make([]string, len(values.Values[0]))
	for i, v := range values.Values[0] {
		row[i] = fmt.Sprint(v)
	}
	return row
}

// NopSink is used when sheet logging is disabled. It logs the record at
// debug level and reports success.
type NopSink struct {
	Logger *slog.Logger
}

var _ pipeline.Sink = NopSink{}

// Log implements pipeline.Sink.
func (n NopSink) Log(_ context.Context, rec pipeline.Record) bool {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Debug("sheet logging disabled, record not written", slog.Any("row", Row(rec)))
	return true
}
