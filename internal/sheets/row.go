package sheets

import (
	"time"

	"github.com/teemow/dealscout/internal/extract"
	"github.com/teemow/dealscout/internal/pipeline"
)

// Headers is the expected header row, in column order.
var Headers = []string{
	"Timestamp",
	"Email Date",
	"Sender",
	"Subject",
	"Sender Name",
	"Sender Phone Number",
	"Property Street Address",
	"Property City",
	"Property State",
	"Property Zip",
	"Bedrooms",
	"Bathrooms",
	"Garage Spaces",
	"Square Footage",
	"Lot Size",
	"Year Built",
	"Earnest Money",
	"Closing Date",
	"Asking Price",
	"Provided ARV",
	"Source URL",
	"Notes",
	"Owner Name",
}

// timeLayout renders timestamps so that text order is time order.
const timeLayout = "2006-01-02 15:04:05"

// Row renders a record as one row in Headers order. Missing values become
// empty cells.
func Row(rec pipeline.Record) []interface{} {
	return []interface{}{
		timeCell(rec.LoggedAt),
		timeCell(rec.EmailDate),
		rec.Sender,
		rec.Subject,
		stringCell(rec.SenderName),
		stringCell(rec.SenderPhoneNumber),
		stringCell(rec.PropertyStreetAddress),
		stringCell(rec.PropertyCity),
		stringCell(rec.PropertyState),
		stringCell(rec.PropertyZip),
		numberCell(rec.Bedrooms),
		numberCell(rec.Bathrooms),
		numberCell(rec.GarageSpaces),
		numberCell(rec.SquareFootage),
		numberCell(rec.LotSize),
		numberCell(rec.YearBuilt),
		numberCell(rec.EarnestMoney),
		dateCell(rec.ClosingDate),
		numberCell(rec.AskingPrice),
		numberCell(rec.ProvidedARV),
		stringCell(rec.SourceURL),
		stringCell(rec.Notes),
		stringCell(rec.OwnerName),
	}
}

func stringCell(s *string) interface{} {
	if s == nil {
		return ""
	}
	return *s
}

func numberCell(f *float64) interface{} {
	if f == nil {
		return ""
	}
	return *f
}

func dateCell(d *extract.Date) interface{} {
	if d == nil {
		return ""
	}
	return d.String()
}

func timeCell(t time.Time) interface{} {
	if t.IsZero() {
		return ""
	}
	return t.Format(timeLayout)
}
