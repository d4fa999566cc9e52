package repository

import (
	"options-analytics/config"
	"options-analytics/pkg/logger"

	"gorm.io/gorm"
)

type Repository struct {
	QuoteRepo          QuoteRepository
	OptionChainRepo    OptionChainRepository
	OptionSnapshotRepo OptionSnapshotRepository
}

func NewRepository(cfg *config.Config, db *gorm.DB, log *logger.Logger) (*Repository, error) {
	return &Repository{
		QuoteRepo:          NewQuoteRepository(cfg, log),
		OptionChainRepo:    NewOptionChainRepository(cfg, log),
		OptionSnapshotRepo: NewOptionSnapshotRepository(db),
	}, nil
}
