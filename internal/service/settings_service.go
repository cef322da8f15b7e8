package service

import (
	"context"
	"time"

	"github.com/ignatzorin/tertab-backend/internal/domain/entity"
	"github.com/ignatzorin/tertab-backend/internal/domain/repository"
	"github.com/ignatzorin/tertab-backend/internal/domain/valueobject"
)

const settingsCacheKey = "platform_settings"

// SettingsService отдаёт цены платформы, кэшируя строку platform_settings.
type SettingsService struct {
	repo  repository.SettingsRepository
	cache *CacheService
	ttl   time.Duration
}

func NewSettingsService(repo repository.SettingsRepository, cache *CacheService, ttl time.Duration) *SettingsService {
	return &SettingsService{repo: repo, cache: cache, ttl: ttl}
}

func (s *SettingsService) Current(ctx context.Context) (*entity.PlatformSetting, error) {
	if s.cache == nil || s.ttl <= 0 {
		return s.repo.Get(ctx)
	}

	value, err := s.cache.GetOrSet(settingsCacheKey, s.ttl, func() (any, error) {
		return s.repo.Get(ctx)
	})
	if err != nil {
		return nil, err
	}
	settings := *value.(*entity.PlatformSetting)
	return &settings, nil
}

func (s *SettingsService) CurrentPrice(ctx context.Context, class valueobject.RequestClass) (valueobject.Money, error) {
	settings, err := s.Current(ctx)
	if err != nil {
		return valueobject.Money{}, err
	}
	return settings.PriceFor(class), nil
}
