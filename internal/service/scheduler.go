package service

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"options-analytics/config"
	"options-analytics/internal/dto"
	"options-analytics/pkg/logger"
	"options-analytics/pkg/telegram"
	"options-analytics/pkg/utils"

	"github.com/robfig/cron/v3"
)

type SchedulerService interface {
	Start(ctx context.Context) error
	Stop()
	Execute(ctx context.Context) error
}

// schedulerService periodically analyzes the configured watchlist and pushes
// a Telegram notification when mispriced contracts are found.
type schedulerService struct {
	cfg       *config.Config
	log       *logger.Logger
	analysis  AnalysisService
	notifier  *telegram.Notifier
	cron      *cron.Cron
	semaphore chan struct{}
}

func NewSchedulerService(
	cfg *config.Config,
	log *logger.Logger,
	analysis AnalysisService,
	notifier *telegram.Notifier,
) SchedulerService {
	return &schedulerService{
		cfg:       cfg,
		log:       log,
		analysis:  analysis,
		notifier:  notifier,
		cron:      cron.New(),
		semaphore: make(chan struct{}, cfg.Scheduler.MaxConcurrency),
	}
}

func (s *schedulerService) Start(ctx context.Context) error {
	if s.cfg.Scheduler.CronSpec == "" || len(s.cfg.Scheduler.Watchlist) == 0 {
		s.log.Info("Scheduler disabled, no cron spec or watchlist configured")
		return nil
	}

	_, err := s.cron.AddFunc(s.cfg.Scheduler.CronSpec, func() {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.TimeoutDuration)
		defer cancel()

		if err := s.Execute(runCtx); err != nil {
			s.log.Error("Scheduled watchlist analysis failed", logger.ErrorField(err))
		}
	})
	if err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.cfg.Scheduler.CronSpec, err)
	}

	s.cron.Start()
	s.log.Info("Scheduler started",
		logger.StringField("cron_spec", s.cfg.Scheduler.CronSpec),
		logger.IntField("watchlist_size", len(s.cfg.Scheduler.Watchlist)),
	)
	return nil
}

func (s *schedulerService) Stop() {
	stopCtx := s.cron.Stop()
	<-stopCtx.Done()
	s.log.Info("Scheduler stopped")
}

func (s *schedulerService) Execute(ctx context.Context) error {
	s.log.InfoContext(ctx, "Start analyzing watchlist",
		logger.IntField("symbol_count", len(s.cfg.Scheduler.Watchlist)),
		logger.IntField("max_concurrency", s.cfg.Scheduler.MaxConcurrency),
	)

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		flagged   []string
		lastError error
	)

	for _, symbol := range s.cfg.Scheduler.Watchlist {
		if !utils.ShouldContinue(ctx, s.log) {
			break
		}

		symbol := symbol
		s.semaphore <- struct{}{}
		wg.Add(1)
		utils.GoSafe(func() {
			defer func() {
				<-s.semaphore
				wg.Done()
			}()

			analysis, err := s.analysis.Analyze(ctx, dto.AnalyzeParam{Symbol: symbol})
			if err != nil {
				s.log.ErrorContext(ctx, "Failed to analyze watchlist symbol",
					logger.StringField("symbol", symbol),
					logger.ErrorField(err),
				)
				mu.Lock()
				lastError = err
				mu.Unlock()
				return
			}

			if len(analysis.Mispriced) == 0 {
				return
			}

			mu.Lock()
			flagged = append(flagged, formatMispricings(analysis))
			mu.Unlock()
		})
	}

	wg.Wait()

	if len(flagged) > 0 && s.notifier != nil {
		message := "*Mispriced options detected*\n\n" + strings.Join(flagged, "\n\n")
		if err := s.notifier.Send(ctx, message); err != nil {
			s.log.ErrorContext(ctx, "Failed to send mispricing alert", logger.ErrorField(err))
		}
	}

	return lastError
}

func formatMispricings(analysis *dto.OptionAnalysis) string {
	var b strings.Builder
	fmt.Fprintf(&b, "*%s* spot %.2f, vol %.1f%%, expiry %s\n",
		analysis.Symbol,
		analysis.SpotPrice,
		analysis.HistoricalVol*100,
		analysis.Expiration.Format("2006-01-02"),
	)

	for i, c := range analysis.Mispriced {
		// Cap the list, the full chain is in the stored snapshot.
		if i >= 10 {
			fmt.Fprintf(&b, "… and %d more", len(analysis.Mispriced)-i)
			break
		}
		fmt.Fprintf(&b, "`%s` market %.2f vs theo %.2f (%s)\n",
			c.Quote.ContractSymbol,
			c.MarketPrice,
			c.TheoreticalPrice,
			utils.FormatPercentage(c.DeviationPct*100),
		)
	}

	return b.String()
}
