package models

import (
	"strings"
	"time"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// GeneratedReport is a persisted audit report snapshot. Reports survive
// restarts; they are written once and never mutated.
type GeneratedReport struct {
	ID          id.ReportID
	Title       string
	PeriodStart time.Time
	PeriodEnd   time.Time
	Payload     map[string]any
	GeneratedBy *id.AccountID
	CreatedAt   time.Time
}

// NewGeneratedReport builds a report snapshot. The period is inclusive and
// must not be inverted.
func NewGeneratedReport(reportID id.ReportID, title string, periodStart, periodEnd time.Time, payload map[string]any, generatedBy *id.AccountID, now time.Time) (*GeneratedReport, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a report title is required")
	}
	if periodEnd.Before(periodStart) {
		return nil, dErrors.New(dErrors.CodeValidation, "report period end precedes its start")
	}
	return &GeneratedReport{
		ID:          reportID,
		Title:       title,
		PeriodStart: periodStart,
		PeriodEnd:   periodEnd,
		Payload:     payload,
		GeneratedBy: generatedBy,
		CreatedAt:   now,
	}, nil
}

// Clone returns a deep copy so callers cannot mutate stored state.
func (r *GeneratedReport) Clone() *GeneratedReport {
	clone := *r
	if r.Payload != nil {
		clone.Payload = make(map[string]any, len(r.Payload))
		for k, v := range r.Payload {
			clone.Payload[k] = v
		}
	}
	if r.GeneratedBy != nil {
		generatedBy := *r.GeneratedBy
		clone.GeneratedBy = &generatedBy
	}
	return &clone
}
