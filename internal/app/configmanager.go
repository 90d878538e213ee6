package app

import (
	"sync"
	"time"

	"github.com/spf13/cast"
	"github.com/talkincode/wafleet/internal/domain"
	"go.uber.org/zap"
)

const configCacheTTL = 30 * time.Second

// ConfigManager reads runtime settings from the sys_config table with a
// short-lived cache in front. Settings changed through the admin api take
// effect within the TTL, or immediately after Invalidate.
type ConfigManager struct {
	db DBProvider

	mu       sync.RWMutex
	cache    map[string]string
	loadedAt time.Time
}

func NewConfigManager(db DBProvider) *ConfigManager {
	return &ConfigManager{db: db, cache: make(map[string]string)}
}

func (m *ConfigManager) load() map[string]string {
	m.mu.RLock()
	if time.Since(m.loadedAt) < configCacheTTL && len(m.cache) > 0 {
		defer m.mu.RUnlock()
		return m.cache
	}
	m.mu.RUnlock()

	var items []domain.SysConfig
	if err := m.db.DB().Find(&items).Error; err != nil {
		zap.L().Error("failed to load settings", zap.Error(err))
		m.mu.RLock()
		defer m.mu.RUnlock()
		return m.cache
	}

	fresh := make(map[string]string, len(items))
	for _, item := range items {
		fresh[item.Type+"."+item.Name] = item.Value
	}

	m.mu.Lock()
	m.cache = fresh
	m.loadedAt = time.Now()
	m.mu.Unlock()
	return fresh
}

// Invalidate drops the cache so the next read hits the database.
func (m *ConfigManager) Invalidate() {
	m.mu.Lock()
	m.loadedAt = time.Time{}
	m.mu.Unlock()
}

func (m *ConfigManager) GetString(category, name string) string {
	return m.load()[category+"."+name]
}

func (m *ConfigManager) GetInt(category, name string) int {
	return cast.ToInt(m.GetString(category, name))
}

func (m *ConfigManager) GetInt64(category, name string) int64 {
	return cast.ToInt64(m.GetString(category, name))
}

func (m *ConfigManager) GetBool(category, name string) bool {
	return cast.ToBool(m.GetString(category, name))
}
