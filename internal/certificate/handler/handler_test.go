package handler

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ecocert/internal/certificate/models"
	"ecocert/internal/certificate/render"
	"ecocert/internal/certificate/service"
	certificatestore "ecocert/internal/certificate/store/certificate"
	jwt_token "ecocert/internal/jwt_token"
	id "ecocert/pkg/domain"
)

type CertificateHandlerSuite struct {
	suite.Suite
	router     chi.Router
	jwtService *jwt_token.JWTService
	service    *service.Service
}

func TestCertificateHandlerSuite(t *testing.T) {
	suite.Run(t, new(CertificateHandlerSuite))
}

func (s *CertificateHandlerSuite) SetupTest() {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	s.service = service.New(certificatestore.NewInMemory(), render.NewHTMLRenderer(),
		3*365*24*time.Hour, service.WithLogger(logger))
	s.jwtService = jwt_token.NewJWTService("cert-test-signing-key", "ecocert", "ecocert-api")

	h := New(s.service, logger, nil, jwt_token.NewJWTServiceAdapter(s.jwtService))
	s.router = chi.NewRouter()
	h.Register(s.router)
}

func (s *CertificateHandlerSuite) issue(companyID id.CompanyID) *models.Certificate {
	cert, created, err := s.service.Issue(context.Background(), id.RequestID(uuid.New()), companyID, "recycling")
	s.Require().NoError(err)
	s.Require().True(created)
	return cert
}

func (s *CertificateHandlerSuite) get(path, token string) *httptest.ResponseRecorder {
	return s.request(http.MethodGet, path, token)
}

func (s *CertificateHandlerSuite) request(method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func (s *CertificateHandlerSuite) tokenFor(actor id.Actor) string {
	token, err := s.jwtService.GenerateAccessToken(actor, time.Hour)
	s.Require().NoError(err)
	return token
}

func (s *CertificateHandlerSuite) decode(w *httptest.ResponseRecorder) map[string]any {
	var resp map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func (s *CertificateHandlerSuite) TestVerifyIsPublic() {
	cert := s.issue(id.CompanyID(uuid.New()))

	w := s.get("/api/certificates/verify/"+cert.Number, "")
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	resp := s.decode(w)
	s.Equal(cert.Number, resp["number"])
	s.Equal("active", resp["status"])
	s.Equal("recycling", resp["treatment_type"])
}

func (s *CertificateHandlerSuite) TestVerifyUnknownNumber() {
	w := s.get("/api/certificates/verify/DEEE-2026-DEADBEEF", "")
	s.Equal(http.StatusNotFound, w.Code)
}

func (s *CertificateHandlerSuite) TestListRequiresAuth() {
	w := s.get("/api/certificates", "")
	s.Equal(http.StatusUnauthorized, w.Code)
}

func (s *CertificateHandlerSuite) TestOwnerListsOwnCertificates() {
	companyID := id.CompanyID(uuid.New())
	s.issue(companyID)
	s.issue(id.CompanyID(uuid.New()))

	owner := id.Actor{
		AccountID: id.AccountID(uuid.New()),
		Role:      id.RoleEnterprise,
		CompanyID: companyID,
	}
	w := s.get("/api/certificates", s.tokenFor(owner))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	var list []map[string]any
	s.Require().NoError(json.Unmarshal(w.Body.Bytes(), &list))
	s.Require().Len(list, 1)
	s.Equal(companyID.String(), list[0]["company_id"])
}

func (s *CertificateHandlerSuite) TestOwnerCannotPeekAtOtherCompany() {
	other := id.CompanyID(uuid.New())
	s.issue(other)

	owner := id.Actor{
		AccountID: id.AccountID(uuid.New()),
		Role:      id.RoleEnterprise,
		CompanyID: id.CompanyID(uuid.New()),
	}
	w := s.get("/api/certificates?companyId="+other.String(), s.tokenFor(owner))
	s.Equal(http.StatusForbidden, w.Code)
}

func (s *CertificateHandlerSuite) TestDownloadReturnsRenderedHTML() {
	companyID := id.CompanyID(uuid.New())
	cert := s.issue(companyID)

	owner := id.Actor{
		AccountID: id.AccountID(uuid.New()),
		Role:      id.RoleEnterprise,
		CompanyID: companyID,
	}
	w := s.get("/api/certificates/"+cert.ID.String()+"/download", s.tokenFor(owner))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("text/html; charset=utf-8", w.Header().Get("Content-Type"))
	s.Contains(w.Header().Get("Content-Disposition"), "attachment")
	s.Contains(w.Body.String(), cert.Number)
}

func (s *CertificateHandlerSuite) TestRevokeRequiresAuthority() {
	cert := s.issue(id.CompanyID(uuid.New()))

	reviewer := id.Actor{
		AccountID:  id.AccountID(uuid.New()),
		Role:       id.RoleEmployee,
		EmployeeID: id.EmployeeID(uuid.New()),
	}
	w := s.request(http.MethodPost, "/api/certificates/"+cert.ID.String()+"/revoke", s.tokenFor(reviewer))
	s.Equal(http.StatusForbidden, w.Code)

	authority := id.Actor{AccountID: id.AccountID(uuid.New()), Role: id.RoleAuthority}
	w = s.request(http.MethodPost, "/api/certificates/"+cert.ID.String()+"/revoke", s.tokenFor(authority))
	s.Require().Equal(http.StatusOK, w.Code, w.Body.String())
	s.Equal("revoked", s.decode(w)["status"])

	// Verification now reports the revocation.
	w = s.get("/api/certificates/verify/"+cert.Number, "")
	s.Require().Equal(http.StatusOK, w.Code)
	s.Equal("revoked", s.decode(w)["status"])
}
