// Package sheets appends pipeline records to a Google Sheet.
//
// The sink creates the destination sheet with a frozen header row the first
// time it is used in a run. If the sheet already exists its first row is
// compared with Headers and a warning is logged on mismatch; the write still
// goes ahead. Write failures are logged together with the row and never
// returned to the caller.
//
// Usage:
//
//	sink, err := sheets.NewSink(ctx, sheets.Options{
//		SpreadsheetID: cfg.Sheet.SpreadsheetID,
//		SheetName:     cfg.Sheet.Name,
//		HTTPClient:    httpClient,
//	})
//	if err != nil {
//		return err
//	}
//	ok := sink.Log(ctx, record)
package sheets
