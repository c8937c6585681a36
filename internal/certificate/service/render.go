package service

import (
	"context"
	"errors"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	id "ecocert/pkg/domain"
	dErrors "ecocert/pkg/domain-errors"
)

// Render produces the downloadable certificate document. Rendered output is
// cached in Redis keyed by certificate ID; revocation invalidates the cache
// so a freshly revoked certificate never renders as active.
func (s *Service) Render(ctx context.Context, actor id.Actor, certificateID id.CertificateID) ([]byte, error) {
	cert, err := s.Get(ctx, actor, certificateID)
	if err != nil {
		return nil, err
	}
	if s.renderer == nil {
		return nil, dErrors.New(dErrors.CodeInternal, "certificate rendering is not configured")
	}

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, renderCacheKey(certificateID)).Bytes()
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, goredis.Nil) && s.logger != nil {
			s.logger.WarnContext(ctx, "render cache read failed", "certificate_id", certificateID, "error", err)
		}
	}

	rendered, err := s.renderer.Render(cert)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to render certificate")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, renderCacheKey(certificateID), rendered, s.cacheTTL).Err(); err != nil && s.logger != nil {
			s.logger.WarnContext(ctx, "render cache write failed", "certificate_id", certificateID, "error", err)
		}
	}
	return rendered, nil
}

func (s *Service) invalidateRender(ctx context.Context, certificateID id.CertificateID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, renderCacheKey(certificateID)).Err(); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "render cache invalidation failed", "certificate_id", certificateID, "error", err)
	}
}

func renderCacheKey(certificateID id.CertificateID) string {
	return fmt.Sprintf("ecocert:certificate:render:%s", certificateID)
}
