//go:build integration

package request_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"ecocert/internal/certification/models"
	"ecocert/internal/certification/store/request"
	id "ecocert/pkg/domain"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *request.PostgresStore
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
	s.store = request.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "certification_requests")
	s.Require().NoError(err)
}

func newStoredRequest(s *PostgresStoreSuite, companyID id.CompanyID, treatmentType string) *models.Request {
	r, err := models.NewRequest(id.RequestID(uuid.New()), companyID, treatmentType, map[string]any{
		"companyName": "Atlas Recycling",
		"ice":         "001523698000045",
		"rc":          "RC-7781",
		"email":       "contact@atlas.example",
	}, time.Now())
	s.Require().NoError(err)
	s.Require().NoError(s.store.Create(context.Background(), r))
	return r
}

func (s *PostgresStoreSuite) TestCreateAndFind() {
	ctx := context.Background()
	r := newStoredRequest(s, id.CompanyID(uuid.New()), "recycling")

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(r.ID, found.ID)
	s.Equal(r.CompanyID, found.CompanyID)
	s.Equal(models.StatusSubmitted, found.Status)
	s.Equal("recycling", found.TreatmentType)
	s.Equal("Atlas Recycling", found.SubmittedData["companyName"])
	s.EqualValues(1, found.Version)
}

func (s *PostgresStoreSuite) TestCreateDuplicateConflicts() {
	ctx := context.Background()
	r := newStoredRequest(s, id.CompanyID(uuid.New()), "recycling")

	err := s.store.Create(ctx, r)
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrConflict)
}

func (s *PostgresStoreSuite) TestFindMissingReturnsNotFound() {
	_, err := s.store.FindByID(context.Background(), id.RequestID(uuid.New()))
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestExecuteMutatesAndBumpsVersion() {
	ctx := context.Background()
	r := newStoredRequest(s, id.CompanyID(uuid.New()), "reuse")
	reviewer := id.EmployeeID(uuid.New())

	updated, err := s.store.Execute(ctx, r.ID,
		func(current *models.Request) error { return current.CanClaim(reviewer) },
		func(current *models.Request) { current.ApplyClaim(reviewer, time.Now()) },
	)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, updated.Status)
	s.Require().NotNil(updated.AssignedTo)
	s.Equal(reviewer, *updated.AssignedTo)
	s.EqualValues(2, updated.Version)

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusUnderReview, found.Status)
	s.EqualValues(2, found.Version)
}

func (s *PostgresStoreSuite) TestExecuteValidationFailureLeavesRowUntouched() {
	ctx := context.Background()
	r := newStoredRequest(s, id.CompanyID(uuid.New()), "reuse")
	reviewer := id.EmployeeID(uuid.New())

	_, err := s.store.Execute(ctx, r.ID,
		func(current *models.Request) error { return current.CanDecide(reviewer, false) },
		func(current *models.Request) { current.ApplyApproval(reviewer, time.Now()) },
	)
	s.Require().Error(err)

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusSubmitted, found.Status)
	s.EqualValues(1, found.Version)
}

// TestConcurrentCancellation drives many competing cancellations through
// Execute; row locking must let exactly one through.
func (s *PostgresStoreSuite) TestConcurrentCancellation() {
	ctx := context.Background()
	r := newStoredRequest(s, id.CompanyID(uuid.New()), "disposal")
	const goroutines = 20

	var wg sync.WaitGroup
	var successCount atomic.Int32
	var rejectedCount atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.store.Execute(ctx, r.ID,
				func(current *models.Request) error { return current.CanCancel() },
				func(current *models.Request) { current.ApplyCancellation(time.Now()) },
			)
			if err == nil {
				successCount.Add(1)
				return
			}
			if !errors.Is(err, sentinel.ErrNotFound) {
				rejectedCount.Add(1)
			}
		}()
	}
	wg.Wait()

	s.EqualValues(1, successCount.Load())
	s.EqualValues(goroutines-1, rejectedCount.Load())

	found, err := s.store.FindByID(ctx, r.ID)
	s.Require().NoError(err)
	s.Equal(models.StatusCancelled, found.Status)
	s.EqualValues(2, found.Version)
}

func (s *PostgresStoreSuite) TestListFiltersAndCount() {
	ctx := context.Background()
	companyA := id.CompanyID(uuid.New())
	companyB := id.CompanyID(uuid.New())

	newStoredRequest(s, companyA, "recycling")
	newStoredRequest(s, companyA, "reuse")
	rejected := newStoredRequest(s, companyB, "recycling")

	reviewer := id.EmployeeID(uuid.New())
	_, err := s.store.Execute(ctx, rejected.ID,
		func(current *models.Request) error { return current.CanClaim(reviewer) },
		func(current *models.Request) { current.ApplyClaim(reviewer, time.Now()) },
	)
	s.Require().NoError(err)
	_, err = s.store.Execute(ctx, rejected.ID,
		func(current *models.Request) error { return current.CanDecide(reviewer, false) },
		func(current *models.Request) { current.ApplyRejection(reviewer, time.Now()) },
	)
	s.Require().NoError(err)

	byCompany, err := s.store.List(ctx, request.Filters{CompanyID: companyA})
	s.Require().NoError(err)
	s.Len(byCompany, 2)

	byStatus, err := s.store.List(ctx, request.Filters{Status: models.StatusRejected})
	s.Require().NoError(err)
	s.Require().Len(byStatus, 1)
	s.Equal(rejected.ID, byStatus[0].ID)

	byTreatment, err := s.store.List(ctx, request.Filters{TreatmentType: "recycling"})
	s.Require().NoError(err)
	s.Len(byTreatment, 2)

	total, err := s.store.Count(ctx, request.Filters{})
	s.Require().NoError(err)
	s.Equal(3, total)

	submitted, err := s.store.Count(ctx, request.Filters{Status: models.StatusSubmitted})
	s.Require().NoError(err)
	s.Equal(2, submitted)
}
