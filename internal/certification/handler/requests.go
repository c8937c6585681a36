package handler

import (
	"fmt"

	partymodels "ecocert/internal/party/models"
)

type submitRequest struct {
	TreatmentType   string         `json:"treatment_type"`
	Data            map[string]any `json:"data"`
	MainDocumentURL string         `json:"main_document_url,omitempty"`
}

// profileHints lifts the company fields out of the form data for first
// submission profile creation. Missing or non-string values stay empty; the
// workflow's own validation reports them.
func (r submitRequest) profileHints() partymodels.ProfileHints {
	str := func(key string) string {
		if v, ok := r.Data[key]; ok {
			return fmt.Sprint(v)
		}
		return ""
	}
	return partymodels.ProfileHints{
		CompanyName:         str("companyName"),
		ICE:                 str("ice"),
		RC:                  str("rc"),
		LegalRepresentative: str("legalRepresentative"),
		Address:             str("address"),
		Phone:               str("phone"),
	}
}

type rejectRequest struct {
	Reason string `json:"reason"`
}

type resubmitRequest struct {
	Data map[string]any `json:"data"`
}

type submitFormRequest struct {
	FormName string         `json:"form_name"`
	Answers  map[string]any `json:"answers"`
}

type attachDocumentRequest struct {
	Name        string `json:"name"`
	DocType     string `json:"doc_type"`
	FileURL     string `json:"file_url,omitempty"`
	Content     string `json:"content,omitempty"`
	Description string `json:"description,omitempty"`
}
