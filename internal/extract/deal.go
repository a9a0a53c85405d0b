package extract

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"time"
)

// Deal is the structured data extracted from one email. Every field is
// optional; a nil pointer means the model did not find the value.
type Deal struct {
	SenderName            *string  `json:"senderName,omitempty"`
	SenderPhoneNumber     *string  `json:"senderPhoneNumber,omitempty"`
	PropertyStreetAddress *string  `json:"propertyStreetAddress,omitempty"`
	PropertyCity          *string  `json:"propertyCity,omitempty"`
	PropertyState         *string  `json:"propertyState,omitempty"`
	PropertyZip           *string  `json:"propertyZip,omitempty"`
	Bedrooms              *float64 `json:"bedrooms,omitempty"`
	Bathrooms             *float64 `json:"bathrooms,omitempty"`
	GarageSpaces          *float64 `json:"garageSpaces,omitempty"`
	SquareFootage         *float64 `json:"squareFootage,omitempty"`
	LotSize               *float64 `json:"lotSize,omitempty"`
	YearBuilt             *float64 `json:"yearBuilt,omitempty"`
	EarnestMoney          *float64 `json:"earnestMoney,omitempty"`
	ClosingDate           *Date    `json:"closingDate,omitempty"`
	AskingPrice           *float64 `json:"askingPrice,omitempty"`
	ProvidedARV           *float64 `json:"providedARV,omitempty"`
	SourceURL             *string  `json:"sourceURL,omitempty"`
	Notes                 *string  `json:"notes,omitempty"`
}

// wireDeal holds the undecoded field values of a model reply.
type wireDeal struct {
	SenderName            json.RawMessage `json:"senderName"`
	SenderPhoneNumber     json.RawMessage `json:"senderPhoneNumber"`
	PropertyStreetAddress json.RawMessage `json:"propertyStreetAddress"`
	PropertyCity          json.RawMessage `json:"propertyCity"`
	PropertyState         json.RawMessage `json:"propertyState"`
	PropertyZip           json.RawMessage `json:"propertyZip"`
	Bedrooms              json.RawMessage `json:"bedrooms"`
	Bathrooms             json.RawMessage `json:"bathrooms"`
	GarageSpaces          json.RawMessage `json:"garageSpaces"`
	SquareFootage         json.RawMessage `json:"squareFootage"`
	LotSize               json.RawMessage `json:"lotSize"`
	YearBuilt             json.RawMessage `json:"yearBuilt"`
	EarnestMoney          json.RawMessage `json:"earnestMoney"`
	ClosingDate           json.RawMessage `json:"closingDate"`
	AskingPrice           json.RawMessage `json:"askingPrice"`
	ProvidedARV           json.RawMessage `json:"providedARV"`
	SourceURL             json.RawMessage `json:"sourceURL"`
	Notes                 json.RawMessage `json:"notes"`
}

// FieldError describes a field of a model reply that could not be read.
type FieldError struct {
	Field string
	Raw   string
	Err   error
}

func (e FieldError) Error() string {
	return fmt.Sprintf("%s: %v", e.Field, e.Err)
}

func (e FieldError) Unwrap() error {
	return e.Err
}

// UnmarshalJSON decodes a model reply. String fields also accept JSON
// numbers, numeric fields also accept strings such as "$450,000" or "450k",
// and empty strings count as missing. A field that cannot be read is left
// nil; only a reply that is not a JSON object is an error.
func (d *Deal) UnmarshalJSON(data []byte) error {
	out, _, err := decodeFields(data)
	if err != nil {
		return err
	}
	*d = out
	return nil
}

func decodeFields(data []byte) (Deal, []FieldError, error) {
	var w wireDeal
	if err := json.Unmarshal(data, &w); err != nil {
		return Deal{}, nil, err
	}

	var (
		out      Deal
		problems []FieldError
	)
	drop := func(field string, raw json.RawMessage, err error) {
		problems = append(problems, FieldError{
			Field: field,
			Raw:   string(bytes.TrimSpace(raw)),
			Err:   err,
		})
	}
	text := func(field string, raw json.RawMessage) *string {
		v, err := decodeText(raw)
		if err != nil {
			drop(field, raw, err)
			return nil
		}
		return v
	}
	number := func(field string, raw json.RawMessage) *float64 {
		v, err := decodeNumber(raw)
		if err != nil {
			drop(field, raw, err)
			return nil
		}
		return v
	}

	out.SenderName = text("senderName", w.SenderName)
	out.SenderPhoneNumber = text("senderPhoneNumber", w.SenderPhoneNumber)
	out.PropertyStreetAddress = text("propertyStreetAddress", w.PropertyStreetAddress)
	out.PropertyCity = text("propertyCity", w.PropertyCity)
	out.PropertyState = text("propertyState", w.PropertyState)
	out.PropertyZip = text("propertyZip", w.PropertyZip)
	out.Bedrooms = number("bedrooms", w.Bedrooms)
	out.Bathrooms = number("bathrooms", w.Bathrooms)
	out.GarageSpaces = number("garageSpaces", w.GarageSpaces)
	out.SquareFootage = number("squareFootage", w.SquareFootage)
	out.LotSize = number("lotSize", w.LotSize)
	out.YearBuilt = number("yearBuilt", w.YearBuilt)
	out.EarnestMoney = number("earnestMoney", w.EarnestMoney)
	out.AskingPrice = number("askingPrice", w.AskingPrice)
	out.ProvidedARV = number("providedARV", w.ProvidedARV)
	out.SourceURL = text("sourceURL", w.SourceURL)
	out.Notes = text("notes", w.Notes)

	closing, err := decodeDate(w.ClosingDate)
	if err != nil {
		drop("closingDate", w.ClosingDate, err)
	} else {
		out.ClosingDate = closing
	}

	return out, problems, nil
}

// DecodeDeal decodes model text into a Deal. The text must hold exactly one
// JSON object. Fields that could not be read are left nil and returned as
// FieldErrors.
func DecodeDeal(text string) (*Deal, []FieldError, error) {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "{") {
		return nil, nil, errors.New("model output is not a JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(trimmed))
	var raw json.RawMessage
	if err := dec.Decode(&raw); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, errors.New("unexpected data after JSON object")
	}

	deal, problems, err := decodeFields(raw)
	if err != nil {
		return nil, nil, err
	}
	return &deal, problems, nil
}

func isAbsent(raw json.RawMessage) bool {
	raw = bytes.TrimSpace(raw)
	return len(raw) == 0 || bytes.Equal(raw, []byte("null"))
}

func decodeText(raw json.RawMessage) (*string, error) {
	if isAbsent(raw) {
		return nil, nil
	}

	raw = bytes.TrimSpace(raw)
	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		if s == "" {
			return nil, nil
		}
		return &s, nil
	case '-', '0', '1', '2', '3', '4', '5', '6', '7', '8', '9':
		// zip codes and phone numbers sometimes come back unquoted
		s := string(raw)
		return &s, nil
	default:
		return nil, fmt.Errorf("expected a string, got %s", raw)
	}
}

func decodeNumber(raw json.RawMessage) (*float64, error) {
	if isAbsent(raw) {
		return nil, nil
	}

	raw = bytes.TrimSpace(raw)
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return ParseNumber(s)
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err != nil {
		return nil, fmt.Errorf("expected a number, got %s", raw)
	}
	return &n, nil
}

// ParseNumber reads a number written the way wholesalers write prices:
// "$450,000", "450k", "1.2M", "+25,000". An empty string yields nil.
func ParseNumber(s string) (*float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	cleaned := strings.NewReplacer("$", "", ",", "", "+", "", " ", "").Replace(s)
	multiplier := 1.0
	switch {
	case strings.HasSuffix(cleaned, "k"), strings.HasSuffix(cleaned, "K"):
		multiplier = 1e3
		cleaned = cleaned[:len(cleaned)-1]
	case strings.HasSuffix(cleaned, "m"), strings.HasSuffix(cleaned, "M"):
		multiplier = 1e6
		cleaned = cleaned[:len(cleaned)-1]
	}

	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(n) || math.IsInf(n, 0) {
		return nil, fmt.Errorf("cannot read %q as a number", s)
	}
	n *= multiplier
	return &n, nil
}

// Date is a calendar date without time of day.
type Date struct {
	t time.Time
}

// dateLayouts are the forms accepted for closingDate.
var dateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// NewDate returns the Date for year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses an ISO-8601 date or date-time.
func ParseDate(s string) (Date, error) {
	s = strings.TrimSpace(s)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return NewDate(t.Year(), t.Month(), t.Day()), nil
		}
	}
	return Date{}, fmt.Errorf("cannot read %q as an ISO-8601 date", s)
}

// Time returns the date at midnight UTC.
func (d Date) Time() time.Time {
	return d.t
}

// String formats the date as YYYY-MM-DD.
func (d Date) String() string {
	return d.t.Format("2006-01-02")
}

// MarshalJSON encodes the date as a YYYY-MM-DD string.
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes an ISO-8601 date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected a date string, got %s", data)
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func decodeDate(raw json.RawMessage) (*Date, error) {
	if isAbsent(raw) {
		return nil, nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, fmt.Errorf("expected a date string, got %s", bytes.TrimSpace(raw))
	}
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	d, err := ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
