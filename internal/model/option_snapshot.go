package model

import (
	"time"

	"gorm.io/datatypes"
)

// OptionSnapshot stores one full analysis run for a symbol and expiry: the
// market inputs used and the per-contract comparison payload as JSON.
type OptionSnapshot struct {
	ID             uint           `gorm:"primarykey"`
	Symbol         string         `gorm:"not null;index:idx_option_snapshots_symbol"`
	SpotPrice      float64        `gorm:"not null"`
	RiskFreeRate   float64        `gorm:"not null"`
	HistoricalVol  float64        `gorm:"not null"`
	Expiration     time.Time      `gorm:"not null"`
	ContractCount  int            `gorm:"not null"`
	MispricedCount int            `gorm:"not null"`
	Contracts      datatypes.JSON `gorm:"type:jsonb"`
	AnalyzedAt     time.Time      `gorm:"not null"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
}

func (OptionSnapshot) TableName() string {
	return "option_snapshots"
}

type GetOptionSnapshotsParam struct {
	Symbol string
	Limit  int
}
