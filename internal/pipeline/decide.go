package pipeline

import (
	"strings"
	"time"

	"github.com/teemow/dealscout/internal/config"
	"github.com/teemow/dealscout/internal/enrich"
	"github.com/teemow/dealscout/internal/extract"
	"github.com/teemow/dealscout/internal/gmail"
)

// Outcome is the terminal state of one message in a run.
type Outcome string

const (
	// OutcomeFetchFailed: the message or its thread could not be fetched or parsed.
	OutcomeFetchFailed Outcome = "fetch_failed"
	// OutcomeAlreadyProcessed: the thread carries the processed label.
	OutcomeAlreadyProcessed Outcome = "already_processed"
	// OutcomeEmptyBody: the body is empty or whitespace.
	OutcomeEmptyBody Outcome = "empty_body"
	// OutcomeClaimed: another run holds the message.
	OutcomeClaimed Outcome = "claimed"
	// OutcomeClaimFailed: the claim backend returned an error.
	OutcomeClaimFailed Outcome = "claim_failed"
	// OutcomeExtractFailed: the extraction endpoint failed (hard).
	OutcomeExtractFailed Outcome = "extract_failed"
	// OutcomeNoData: the model returned nothing usable (soft).
	OutcomeNoData Outcome = "no_data"
	// OutcomeEnrichFailed: the owner lookup failed under the abandon policy.
	OutcomeEnrichFailed Outcome = "enrich_failed"
	// OutcomeDryRun: the record was assembled but nothing was written.
	OutcomeDryRun Outcome = "dry_run"
	// OutcomeMarked: the message was marked read and its thread labelled.
	OutcomeMarked Outcome = "marked"
	// OutcomeMarkFailed: the record was logged but marking failed.
	OutcomeMarkFailed Outcome = "mark_failed"
)

// Outcomes lists every outcome in pipeline order.
var Outcomes = []Outcome{
	OutcomeFetchFailed,
	OutcomeAlreadyProcessed,
	OutcomeEmptyBody,
	OutcomeClaimed,
	OutcomeClaimFailed,
	OutcomeExtractFailed,
	OutcomeNoData,
	OutcomeEnrichFailed,
	OutcomeDryRun,
	OutcomeMarked,
	OutcomeMarkFailed,
}

// Failed reports whether the outcome leaves a message that should have been
// processed unmarked or half-done.
func (o Outcome) Failed() bool {
	switch o {
	case OutcomeFetchFailed, OutcomeClaimFailed, OutcomeExtractFailed, OutcomeNoData, OutcomeEnrichFailed, OutcomeMarkFailed:
		return true
	}
	return false
}

// Precheck decides whether a message needs extraction. It returns the skip
// outcome and false when it does not. processedLabelID may be empty when the
// label does not exist yet.
func Precheck(thread *gmail.Thread, msg *gmail.Message, processedLabelID string) (Outcome, bool) {
	if processedLabelID != "" && thread.HasLabel(processedLabelID) {
		return OutcomeAlreadyProcessed, false
	}
	if strings.TrimSpace(msg.Body) == "" {
		return OutcomeEmptyBody, false
	}
	return "", true
}

// CheckExtraction maps an extraction result to a stop outcome. It returns
// false when the message must not go further.
func CheckExtraction(res extract.Result, err error) (Outcome, bool) {
	if err != nil {
		return OutcomeExtractFailed, false
	}
	if res.Kind != extract.KindExtracted || res.Deal == nil {
		return OutcomeNoData, false
	}
	return "", true
}

// Decision is what happens to an extracted message.
type Decision struct {
	Outcome Outcome
	// Record is nil when the message is abandoned.
	Record *Record
	// Write sends the record to the sink.
	Write bool
	// Mark marks the message read and labels its thread.
	Mark bool
	// EnrichmentSkipped is set when a lookup error was ignored.
	EnrichmentSkipped bool
}

// Plan decides the record and side effects for an extracted deal. onFailure
// is the enrichment failure policy. The returned outcome is the one reached
// if every side effect succeeds.
func Plan(msg *gmail.Message, deal *extract.Deal, owner enrich.Owner, enrichErr error, onFailure string, dryRun bool, now time.Time) Decision {
	var d Decision
	if enrichErr != nil {
		if onFailure == config.OnFailureAbandon {
			return Decision{Outcome: OutcomeEnrichFailed}
		}
		owner = enrich.Owner{}
		d.EnrichmentSkipped = true
	}

	rec := Assemble(msg, deal, owner, now)
	d.Record = &rec

	if dryRun {
		d.Outcome = OutcomeDryRun
		return d
	}

	d.Outcome = OutcomeMarked
	d.Write = true
	d.Mark = true
	return d
}
