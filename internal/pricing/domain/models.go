// Package domain contains persistence models for fund pricing tranches.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

// PricingTier is one fixed-price, fixed-quantity slice of a fund's raise.
// Tranches sell sequentially: at most one tier per fund is active, and it
// is the lowest-numbered tier with units remaining. UnitsTotal and
// PricePerUnit are frozen once any unit has sold.
type PricingTier struct {
	ID             snowflake.ID `gorm:"primaryKey"`
	OrgID          snowflake.ID `gorm:"not null;index"`
	FundID         snowflake.ID `gorm:"not null;index;uniqueIndex:ux_pricing_tiers_fund_number,priority:1"`
	TrancheNumber  int          `gorm:"not null;uniqueIndex:ux_pricing_tiers_fund_number,priority:2"`
	Name           string       `gorm:"type:text"`
	PricePerUnit   int64        `gorm:"not null"`
	UnitsTotal     int64        `gorm:"not null"`
	UnitsAvailable int64        `gorm:"not null"`
	IsActive       bool         `gorm:"not null;default:false"`
	CreatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt      time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (PricingTier) TableName() string { return "pricing_tiers" }

// UnitsSold returns the number of units already purchased from the tier.
func (t PricingTier) UnitsSold() int64 {
	return t.UnitsTotal - t.UnitsAvailable
}
