package models

import (
	"strings"
	"time"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// FormSubmission is a structured questionnaire answered for a request,
// stored alongside the free-form submitted data. Form names identify the
// questionnaire template (law checklist, environmental survey).
type FormSubmission struct {
	ID          id.FormSubmissionID
	RequestID   id.RequestID
	FormName    string
	Answers     map[string]any
	SubmittedBy id.AccountID
	SubmittedAt time.Time
}

// NewFormSubmission validates and builds a form submission record.
func NewFormSubmission(submissionID id.FormSubmissionID, requestID id.RequestID, formName string, answers map[string]any, submittedBy id.AccountID, now time.Time) (*FormSubmission, error) {
	formName = strings.TrimSpace(formName)
	if formName == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "form name is required")
	}
	if len(answers) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "form answers must not be empty")
	}
	copied := make(map[string]any, len(answers))
	for k, v := range answers {
		copied[k] = v
	}
	return &FormSubmission{
		ID:          submissionID,
		RequestID:   requestID,
		FormName:    formName,
		Answers:     copied,
		SubmittedBy: submittedBy,
		SubmittedAt: now,
	}, nil
}
