package docstore

import (
	"context"
	"errors"
	"fmt"
	"strings"

	goredis "github.com/redis/go-redis/v9"

	"ecocert/pkg/platform/sentinel"
)

const redisScheme = "redisdoc://"

// RedisStore keeps documents in Redis. Good enough for the modest file
// sizes certification dossiers carry; anything larger belongs in object
// storage behind the same Store port.
type RedisStore struct {
	client *goredis.Client
}

func NewRedis(client *goredis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) Put(ctx context.Context, content []byte, path string) (string, error) {
	path = strings.TrimLeft(strings.TrimSpace(path), "/")
	if path == "" {
		return "", fmt.Errorf("document path is empty")
	}
	if err := s.client.Set(ctx, redisKey(path), content, 0).Err(); err != nil {
		return "", fmt.Errorf("store document: %w", err)
	}
	return redisScheme + path, nil
}

func (s *RedisStore) Get(ctx context.Context, url string) ([]byte, error) {
	path, ok := strings.CutPrefix(url, redisScheme)
	if !ok {
		return nil, fmt.Errorf("unrecognized document url %q: %w", url, sentinel.ErrNotFound)
	}
	content, err := s.client.Get(ctx, redisKey(path)).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, fmt.Errorf("document not found: %w", sentinel.ErrNotFound)
		}
		return nil, fmt.Errorf("fetch document: %w", err)
	}
	return content, nil
}

func redisKey(path string) string {
	return "ecocert:document:" + path
}
