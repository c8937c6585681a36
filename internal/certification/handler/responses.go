package handler

import (
	"time"

	"ecocert/internal/certification/models"
	id "ecocert/pkg/domain"
)

type requestResponse struct {
	ID              string         `json:"id"`
	CompanyID       string         `json:"company_id"`
	TreatmentType   string         `json:"treatment_type"`
	Status          string         `json:"status"`
	SubmittedData   map[string]any `json:"submitted_data"`
	SubmissionDate  time.Time      `json:"submission_date"`
	AssignedTo      *string        `json:"assigned_to,omitempty"`
	ValidatedBy     *string        `json:"validated_by,omitempty"`
	MainDocumentURL string         `json:"main_document_url,omitempty"`
	UpdatedAt       time.Time      `json:"updated_at"`
}

func toRequestResponse(r *models.Request) requestResponse {
	return requestResponse{
		ID:              r.ID.String(),
		CompanyID:       r.CompanyID.String(),
		TreatmentType:   r.TreatmentType,
		Status:          string(r.Status),
		SubmittedData:   r.SubmittedData,
		SubmissionDate:  r.SubmissionDate,
		AssignedTo:      employeeRef(r.AssignedTo),
		ValidatedBy:     employeeRef(r.ValidatedBy),
		MainDocumentURL: r.MainDocumentURL,
		UpdatedAt:       r.UpdatedAt,
	}
}

func employeeRef(employeeID *id.EmployeeID) *string {
	if employeeID == nil {
		return nil
	}
	s := employeeID.String()
	return &s
}

type historyResponse struct {
	ID          string         `json:"id"`
	Action      string         `json:"action"`
	Description string         `json:"description"`
	PerformedBy *string        `json:"performed_by,omitempty"`
	Timestamp   time.Time      `json:"timestamp"`
	Extra       map[string]any `json:"extra,omitempty"`
}

func toHistoryResponse(entry models.HistoryEntry) historyResponse {
	resp := historyResponse{
		ID:          entry.ID.String(),
		Action:      string(entry.Action),
		Description: entry.Description,
		Timestamp:   entry.Timestamp,
		Extra:       entry.Extra,
	}
	if entry.PerformedBy != nil {
		s := entry.PerformedBy.String()
		resp.PerformedBy = &s
	}
	return resp
}

type documentResponse struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	DocType     string    `json:"doc_type"`
	FileURL     string    `json:"file_url"`
	Description string    `json:"description,omitempty"`
	UploadedAt  time.Time `json:"uploaded_at"`
}

func toDocumentResponse(doc *models.SupportingDocument) documentResponse {
	return documentResponse{
		ID:          doc.ID.String(),
		Name:        doc.Name,
		DocType:     doc.DocType,
		FileURL:     doc.FileURL,
		Description: doc.Description,
		UploadedAt:  doc.UploadedAt,
	}
}

type formSubmissionResponse struct {
	ID          string         `json:"id"`
	FormName    string         `json:"form_name"`
	Answers     map[string]any `json:"answers"`
	SubmittedBy string         `json:"submitted_by"`
	SubmittedAt time.Time      `json:"submitted_at"`
}

func toFormSubmissionResponse(sub *models.FormSubmission) formSubmissionResponse {
	return formSubmissionResponse{
		ID:          sub.ID.String(),
		FormName:    sub.FormName,
		Answers:     sub.Answers,
		SubmittedBy: sub.SubmittedBy.String(),
		SubmittedAt: sub.SubmittedAt,
	}
}

type certificateRefResponse struct {
	ID     string `json:"id"`
	Number string `json:"number"`
}
