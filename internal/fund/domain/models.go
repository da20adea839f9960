// Package domain contains persistence models for funds.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// Fund captures one capital raise. CurrentRaise and MinimumInvestment are
// derived values owned by the pricing engine: CurrentRaise is recomputed
// from tranche sales on every purchase, MinimumInvestment tracks the
// active tranche's unit price.
type Fund struct {
	ID                snowflake.ID `gorm:"primaryKey"`
	OrgID             snowflake.ID `gorm:"not null;index"`
	Name              string       `gorm:"type:text;not null"`
	Currency          string       `gorm:"type:text;not null"`
	TargetRaise       int64        `gorm:"not null;default:0"`
	CurrentRaise      int64        `gorm:"not null;default:0"`
	MinimumInvestment int64        `gorm:"not null;default:0"`
	CreatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt         time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Fund) TableName() string { return "funds" }
