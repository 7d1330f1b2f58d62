// 包 persistence 组合仓储：MySQL 为准、Redis 旁路缓存
package persistence

import (
	"context"
	"time"

	"github.com/wyfcoding/logisticfund/internal/fund/domain"
	"github.com/wyfcoding/logisticfund/pkg/cache"
	"github.com/wyfcoding/logisticfund/pkg/logger"
)

const (
	settingsCacheKey = "logisticfund:settings"
	settingsCacheTTL = 10 * time.Minute
)

// CachedSettingsRepository 配置的缓存装饰器
// 读多写少：读走缓存，写穿透到 MySQL 后显式失效缓存。
type CachedSettingsRepository struct {
	inner domain.SettingsRepository
	cache *cache.RedisCache
}

// NewCachedSettingsRepository 创建带缓存的配置仓储，cache 可为 nil（直连数据库）
func NewCachedSettingsRepository(inner domain.SettingsRepository, c *cache.RedisCache) *CachedSettingsRepository {
	return &CachedSettingsRepository{inner: inner, cache: c}
}

func (r *CachedSettingsRepository) Get(ctx context.Context) (*domain.Settings, error) {
	if r.cache != nil {
		var cached domain.Settings
		hit, err := r.cache.GetJSON(ctx, settingsCacheKey, &cached)
		if err != nil {
			// 缓存故障降级为直连数据库
			logger.Warn(ctx, "settings cache read failed, falling back to db", "error", err)
		} else if hit {
			return &cached, nil
		}
	}

	settings, err := r.inner.Get(ctx)
	if err != nil {
		return nil, err
	}

	if r.cache != nil {
		if err := r.cache.SetJSON(ctx, settingsCacheKey, settings, settingsCacheTTL); err != nil {
			logger.Warn(ctx, "settings cache write failed", "error", err)
		}
	}
	return settings, nil
}

// Save 先落库再失效缓存
func (r *CachedSettingsRepository) Save(ctx context.Context, settings *domain.Settings) error {
	if err := r.inner.Save(ctx, settings); err != nil {
		return err
	}
	if r.cache != nil {
		if err := r.cache.Delete(ctx, settingsCacheKey); err != nil {
			logger.Warn(ctx, "settings cache invalidation failed", "error", err)
		}
	}
	return nil
}
