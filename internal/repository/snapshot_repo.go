package repository

import (
	"context"

	"options-analytics/internal/model"
	"options-analytics/pkg/utils"

	"gorm.io/gorm"
)

type OptionSnapshotRepository interface {
	Create(ctx context.Context, snapshot *model.OptionSnapshot) error
	Get(ctx context.Context, param model.GetOptionSnapshotsParam, opts ...utils.DBOption) ([]model.OptionSnapshot, error)
}

type optionSnapshotRepository struct {
	db *gorm.DB
}

func NewOptionSnapshotRepository(db *gorm.DB) OptionSnapshotRepository {
	return &optionSnapshotRepository{db: db}
}

func (r *optionSnapshotRepository) Create(ctx context.Context, snapshot *model.OptionSnapshot) error {
	return r.db.WithContext(ctx).Create(snapshot).Error
}

func (r *optionSnapshotRepository) Get(ctx context.Context, param model.GetOptionSnapshotsParam, opts ...utils.DBOption) ([]model.OptionSnapshot, error) {
	db := r.db.WithContext(ctx).Model(&model.OptionSnapshot{})

	if param.Symbol != "" {
		opts = append(opts, utils.WithWhere("symbol = ?", param.Symbol))
	}

	limit := param.Limit
	if limit <= 0 {
		limit = 20
	}
	opts = append(opts, utils.WithOrder("analyzed_at DESC"), utils.WithLimit(limit))

	db = utils.ApplyOptions(db, opts...)

	var snapshots []model.OptionSnapshot
	if err := db.Find(&snapshots).Error; err != nil {
		return nil, err
	}
	return snapshots, nil
}
