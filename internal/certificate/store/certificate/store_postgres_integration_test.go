//go:build integration

package certificate_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ecocert/internal/certificate/models"
	"ecocert/internal/certificate/store/certificate"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *certificate.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = certificate.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "certificates")
	s.Require().NoError(err)
}

func newTestCertificate(s *PostgresStoreSuite, requestID id.RequestID) *models.Certificate {
	cert, err := models.NewCertificate(id.CertificateID(uuid.New()), requestID,
		id.CompanyID(uuid.New()), "recycling", 365*24*time.Hour, time.Now())
	s.Require().NoError(err)
	return cert
}

func (s *PostgresStoreSuite) TestCreateAndLookups() {
	ctx := context.Background()
	cert := newTestCertificate(s, id.RequestID(uuid.New()))

	stored, err := s.store.CreateIfAbsent(ctx, cert)
	s.Require().NoError(err)
	s.Equal(cert.ID, stored.ID)

	byID, err := s.store.FindByID(ctx, cert.ID)
	s.Require().NoError(err)
	s.Equal(cert.Number, byID.Number)

	byRequest, err := s.store.FindByRequest(ctx, cert.RequestID)
	s.Require().NoError(err)
	s.Equal(cert.ID, byRequest.ID)

	byNumber, err := s.store.FindByNumber(ctx, cert.Number)
	s.Require().NoError(err)
	s.Equal(cert.ID, byNumber.ID)
	s.Nil(byNumber.RevokedAt)
}

// TestDuplicateRequestReturnsExisting covers double issuance: the second
// insert for the same request must surface the first certificate.
func (s *PostgresStoreSuite) TestDuplicateRequestReturnsExisting() {
	ctx := context.Background()
	requestID := id.RequestID(uuid.New())
	first := newTestCertificate(s, requestID)

	_, err := s.store.CreateIfAbsent(ctx, first)
	s.Require().NoError(err)

	second := newTestCertificate(s, requestID)
	existing, err := s.store.CreateIfAbsent(ctx, second)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrConflict)
	s.Require().NotNil(existing)
	s.Equal(first.ID, existing.ID)
	s.Equal(first.Number, existing.Number)

	count, err := s.store.Count(ctx)
	s.Require().NoError(err)
	s.Equal(1, count)
}

func (s *PostgresStoreSuite) TestUpdatePersistsRevocation() {
	ctx := context.Background()
	cert := newTestCertificate(s, id.RequestID(uuid.New()))
	_, err := s.store.CreateIfAbsent(ctx, cert)
	s.Require().NoError(err)

	cert.ApplyRevocation(time.Now())
	s.Require().NoError(s.store.Update(ctx, cert))

	found, err := s.store.FindByID(ctx, cert.ID)
	s.Require().NoError(err)
	s.Require().NotNil(found.RevokedAt)
	s.Equal(models.StatusRevoked, found.Status(time.Now()))
}

func (s *PostgresStoreSuite) TestListByCompany() {
	ctx := context.Background()
	companyID := id.CompanyID(uuid.New())

	for i := 0; i < 2; i++ {
		cert, err := models.NewCertificate(id.CertificateID(uuid.New()), id.RequestID(uuid.New()),
			companyID, "reuse", 365*24*time.Hour, time.Now())
		s.Require().NoError(err)
		_, err = s.store.CreateIfAbsent(ctx, cert)
		s.Require().NoError(err)
	}

	other := newTestCertificate(s, id.RequestID(uuid.New()))
	_, err := s.store.CreateIfAbsent(ctx, other)
	s.Require().NoError(err)

	certs, err := s.store.ListByCompany(ctx, companyID)
	s.Require().NoError(err)
	s.Len(certs, 2)
}
