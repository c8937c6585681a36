//go:build integration

package docstore_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"

	"ecocert/internal/docstore"
	"ecocert/pkg/platform/sentinel"
	"ecocert/pkg/testutil/containers"
)

type RedisStoreSuite struct {
	suite.Suite
	redis *containers.RedisContainer
	store *docstore.RedisStore
}

func TestRedisStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(RedisStoreSuite))
}

func (s *RedisStoreSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.redis = mgr.GetRedis(s.T())
	s.store = docstore.NewRedis(s.redis.Client)
}

func (s *RedisStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.redis.FlushAll(ctx)
	s.Require().NoError(err)
}

func (s *RedisStoreSuite) TestPutGetRoundTrip() {
	ctx := context.Background()
	content := []byte("%PDF-1.4 declaration of conformity")

	url, err := s.store.Put(ctx, content, "requests/abc/declaration.pdf")
	s.Require().NoError(err)
	s.Contains(url, "requests/abc/declaration.pdf")

	got, err := s.store.Get(ctx, url)
	s.Require().NoError(err)
	s.Equal(content, got)
}

func (s *RedisStoreSuite) TestPutOverwritesSamePath() {
	ctx := context.Background()

	url, err := s.store.Put(ctx, []byte("v1"), "requests/abc/report.pdf")
	s.Require().NoError(err)
	_, err = s.store.Put(ctx, []byte("v2"), "requests/abc/report.pdf")
	s.Require().NoError(err)

	got, err := s.store.Get(ctx, url)
	s.Require().NoError(err)
	s.Equal([]byte("v2"), got)
}

func (s *RedisStoreSuite) TestGetMissingReturnsNotFound() {
	_, err := s.store.Get(context.Background(), "redisdoc://requests/missing.pdf")
	s.Require().Error(err)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
