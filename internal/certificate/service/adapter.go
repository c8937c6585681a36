package service

import (
	"context"

	certificationmodels "ecocert/internal/certification/models"
	workflow "ecocert/internal/certification/service"
)

// WorkflowIssuer adapts the certificate service to the workflow engine's
// issuer port.
type WorkflowIssuer struct {
	svc *Service
}

func NewWorkflowIssuer(svc *Service) *WorkflowIssuer {
	return &WorkflowIssuer{svc: svc}
}

func (a *WorkflowIssuer) IssueForRequest(ctx context.Context, r *certificationmodels.Request) (workflow.CertificateRef, bool, error) {
	cert, created, err := a.svc.Issue(ctx, r.ID, r.CompanyID, r.TreatmentType)
	if err != nil {
		return workflow.CertificateRef{}, false, err
	}
	return workflow.CertificateRef{ID: cert.ID, Number: cert.Number}, created, nil
}
