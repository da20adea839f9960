package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertTiers(ctx context.Context, db *gorm.DB, tiers []PricingTier) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*PricingTier, error)
	FindActiveByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) (*PricingTier, error)
	ListByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) ([]PricingTier, error)
	// DecrementUnits atomically consumes capacity. The write is
	// conditional on units_available covering the request; zero rows
	// affected means the capacity is no longer there.
	DecrementUnits(ctx context.Context, db *gorm.DB, orgID, tierID snowflake.ID, units int64) (int64, error)
	FindNextOpenTier(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID, afterTrancheNumber int) (*PricingTier, error)
	UpdateTier(ctx context.Context, db *gorm.DB, tier *PricingTier) error
	SetActive(ctx context.Context, db *gorm.DB, orgID, tierID snowflake.ID, active bool) error
	// SumRaised recomputes the raised amount from scratch across every
	// tier of the fund.
	SumRaised(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) (int64, error)
	CountByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) (int64, error)
}
