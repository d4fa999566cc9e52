package service

import (
	"options-analytics/config"
	"options-analytics/internal/repository"
	"options-analytics/pkg/cache"
	"options-analytics/pkg/logger"
	"options-analytics/pkg/telegram"
)

type Service struct {
	PricingService   PricingService
	AnalysisService  AnalysisService
	SchedulerService SchedulerService
}

func NewService(
	cfg *config.Config,
	log *logger.Logger,
	repo *repository.Repository,
	inmemoryCache cache.Cache,
	notifier *telegram.Notifier,
) *Service {
	pricingService := NewPricingService(cfg, log)
	analysisService := NewAnalysisService(cfg, log, inmemoryCache, repo.QuoteRepo, repo.OptionChainRepo, repo.OptionSnapshotRepo)
	schedulerService := NewSchedulerService(cfg, log, analysisService, notifier)

	return &Service{
		PricingService:   pricingService,
		AnalysisService:  analysisService,
		SchedulerService: schedulerService,
	}
}
