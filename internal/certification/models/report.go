package models

import (
	"strings"
	"time"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// RejectionReport captures the reviewer's reasoning for a rejection. One
// report is written per rejection, so a request rejected twice has two.
type RejectionReport struct {
	ID         id.ReportID
	RequestID  id.RequestID
	RejectedBy id.EmployeeID
	Comments   string
	Date       time.Time
}

// NewRejectionReport validates that a rejection always carries a reason.
func NewRejectionReport(reportID id.ReportID, requestID id.RequestID, rejectedBy id.EmployeeID, comments string, now time.Time) (*RejectionReport, error) {
	comments = strings.TrimSpace(comments)
	if comments == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "a rejection reason is required")
	}
	return &RejectionReport{
		ID:         reportID,
		RequestID:  requestID,
		RejectedBy: rejectedBy,
		Comments:   comments,
		Date:       now,
	}, nil
}
