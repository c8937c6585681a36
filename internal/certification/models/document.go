package models

import (
	"strings"
	"time"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// SupportingDocument is a file attached to a request after submission. The
// document attached at submission time lives on the request itself as
// MainDocumentURL; this type covers everything attached later.
type SupportingDocument struct {
	ID          id.DocumentID
	RequestID   id.RequestID
	Name        string
	DocType     string
	FileURL     string
	Description string
	UploadedAt  time.Time
}

// NewSupportingDocument validates and builds an attachment record.
func NewSupportingDocument(documentID id.DocumentID, requestID id.RequestID, name, docType, fileURL, description string, now time.Time) (*SupportingDocument, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document name is required")
	}
	if strings.TrimSpace(fileURL) == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "document fileUrl is required")
	}
	return &SupportingDocument{
		ID:          documentID,
		RequestID:   requestID,
		Name:        name,
		DocType:     strings.TrimSpace(docType),
		FileURL:     fileURL,
		Description: strings.TrimSpace(description),
		UploadedAt:  now,
	}, nil
}
