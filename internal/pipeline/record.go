package pipeline

import (
	"time"

	"github.com/teemow/dealscout/internal/enrich"
	"github.com/teemow/dealscout/internal/extract"
	"github.com/teemow/dealscout/internal/gmail"
)

// Record is one processed message: the extracted deal, the owner lookup and
// the email metadata. It is the unit written to the sheet.
type Record struct {
	LoggedAt  time.Time
	EmailDate time.Time
	Sender    string
	Subject   string

	extract.Deal

	// OwnerName comes from the owner lookup and is nil when unknown.
	OwnerName *string
}

// Assemble merges a deal and its owner lookup with the message metadata.
// Owner fields take precedence over deal fields. No validation is done.
func Assemble(msg *gmail.Message, deal *extract.Deal, owner enrich.Owner, loggedAt time.Time) Record {
	rec := Record{
		LoggedAt:  loggedAt,
		EmailDate: msg.Date,
		Sender:    msg.From,
		Subject:   msg.Subject,
	}
	if deal != nil {
		rec.Deal = *deal
	}
	rec.OwnerName = owner.OwnerName
	return rec
}
