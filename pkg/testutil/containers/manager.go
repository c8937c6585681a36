//go:build integration

package containers

import (
	"sync"
	"testing"
)

// Manager lazily starts one container per backing service and shares it
// across test suites in the same binary. Containers are not terminated
// explicitly; Ryuk reaps them when the test process exits.
type Manager struct {
	mu       sync.Mutex
	postgres *PostgresContainer
	redis    *RedisContainer
	kafka    *KafkaContainer
}

var (
	managerOnce sync.Once
	manager     *Manager
)

// GetManager returns the process-wide container manager.
func GetManager() *Manager {
	managerOnce.Do(func() {
		manager = &Manager{}
	})
	return manager
}

// GetPostgres returns the shared PostgreSQL container, starting it on first use.
func (m *Manager) GetPostgres(t *testing.T) *PostgresContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.postgres == nil {
		m.postgres = NewPostgresContainer(t)
	}
	return m.postgres
}

// GetRedis returns the shared Redis container, starting it on first use.
func (m *Manager) GetRedis(t *testing.T) *RedisContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.redis == nil {
		m.redis = NewRedisContainer(t)
	}
	return m.redis
}

// GetKafka returns the shared Redpanda container, starting it on first use.
func (m *Manager) GetKafka(t *testing.T) *KafkaContainer {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.kafka == nil {
		m.kafka = NewKafkaContainer(t)
	}
	return m.kafka
}
