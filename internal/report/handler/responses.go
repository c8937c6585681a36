package handler

import (
	"time"

	"ecocert/internal/report/models"
	"ecocert/internal/report/service"
)

type dashboardResponse struct {
	TotalRequests      int            `json:"total_requests"`
	RequestsByStatus   map[string]int `json:"requests_by_status"`
	CertificatesIssued int            `json:"certificates_issued"`
	PendingPayments    int            `json:"pending_payments"`
	RejectionsRecorded int            `json:"rejections_recorded"`
	GeneratedAt        time.Time      `json:"generated_at"`
}

func toDashboardResponse(stats *service.DashboardStats) dashboardResponse {
	byStatus := make(map[string]int, len(stats.RequestsByStatus))
	for status, count := range stats.RequestsByStatus {
		byStatus[string(status)] = count
	}
	return dashboardResponse{
		TotalRequests:      stats.TotalRequests,
		RequestsByStatus:   byStatus,
		CertificatesIssued: stats.CertificatesIssued,
		PendingPayments:    stats.PendingPayments,
		RejectionsRecorded: stats.RejectionsRecorded,
		GeneratedAt:        stats.GeneratedAt,
	}
}

type companyStatsResponse struct {
	CompanyID        string         `json:"company_id"`
	TotalRequests    int            `json:"total_requests"`
	RequestsByStatus map[string]int `json:"requests_by_status"`
	Certificates     int            `json:"certificates"`
	SettledPayments  int            `json:"settled_payments"`
	TotalPaid        float64        `json:"total_paid"`
	GeneratedAt      time.Time      `json:"generated_at"`
}

func toCompanyResponse(stats *service.CompanyStats) companyStatsResponse {
	byStatus := make(map[string]int, len(stats.RequestsByStatus))
	for status, count := range stats.RequestsByStatus {
		byStatus[string(status)] = count
	}
	return companyStatsResponse{
		CompanyID:        stats.CompanyID.String(),
		TotalRequests:    stats.TotalRequests,
		RequestsByStatus: byStatus,
		Certificates:     stats.Certificates,
		SettledPayments:  stats.SettledPayments,
		TotalPaid:        stats.TotalPaid,
		GeneratedAt:      stats.GeneratedAt,
	}
}

type reportResponse struct {
	ID          string         `json:"id"`
	Title       string         `json:"title"`
	PeriodStart time.Time      `json:"period_start"`
	PeriodEnd   time.Time      `json:"period_end"`
	Payload     map[string]any `json:"payload"`
	GeneratedBy *string        `json:"generated_by,omitempty"`
	CreatedAt   time.Time      `json:"created_at"`
}

func toReportResponse(report *models.GeneratedReport) reportResponse {
	resp := reportResponse{
		ID:          report.ID.String(),
		Title:       report.Title,
		PeriodStart: report.PeriodStart,
		PeriodEnd:   report.PeriodEnd,
		Payload:     report.Payload,
		CreatedAt:   report.CreatedAt,
	}
	if report.GeneratedBy != nil {
		s := report.GeneratedBy.String()
		resp.GeneratedBy = &s
	}
	return resp
}
