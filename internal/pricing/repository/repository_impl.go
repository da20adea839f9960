package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	pricingdomain "github.com/smallbiznis/fundops/internal/pricing/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() pricingdomain.Repository {
	return &repo{}
}

const tierColumns = `id, org_id, fund_id, tranche_number, name, price_per_unit,
	 units_total, units_available, is_active, created_at, updated_at`

func (r *repo) InsertTiers(ctx context.Context, db *gorm.DB, tiers []pricingdomain.PricingTier) error {
	if len(tiers) == 0 {
		return nil
	}

	for _, tier := range tiers {
		if err := db.WithContext(ctx).Exec(
			`INSERT INTO pricing_tiers (
				id, org_id, fund_id, tranche_number, name, price_per_unit,
				units_total, units_available, is_active, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tier.ID,
			tier.OrgID,
			tier.FundID,
			tier.TrancheNumber,
			tier.Name,
			tier.PricePerUnit,
			tier.UnitsTotal,
			tier.UnitsAvailable,
			tier.IsActive,
			tier.CreatedAt,
			tier.UpdatedAt,
		).Error; err != nil {
			return err
		}
	}

	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*pricingdomain.PricingTier, error) {
	var tier pricingdomain.PricingTier
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+`
		 FROM pricing_tiers WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&tier).Error
	if err != nil {
		return nil, err
	}
	if tier.ID == 0 {
		return nil, nil
	}
	return &tier, nil
}

// FindActiveByFund tie-breaks on the lowest tranche number so a stray
// double-active row can never surface an arbitrary tier.
func (r *repo) FindActiveByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) (*pricingdomain.PricingTier, error) {
	var tier pricingdomain.PricingTier
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+`
		 FROM pricing_tiers
		 WHERE org_id = ? AND fund_id = ? AND is_active = ?
		 ORDER BY tranche_number ASC
		 LIMIT 1`,
		orgID,
		fundID,
		true,
	).Scan(&tier).Error
	if err != nil {
		return nil, err
	}
	if tier.ID == 0 {
		return nil, nil
	}
	return &tier, nil
}

func (r *repo) ListByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) ([]pricingdomain.PricingTier, error) {
	var tiers []pricingdomain.PricingTier
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+`
		 FROM pricing_tiers
		 WHERE org_id = ? AND fund_id = ?
		 ORDER BY tranche_number ASC`,
		orgID,
		fundID,
	).Scan(&tiers).Error
	if err != nil {
		return nil, err
	}
	return tiers, nil
}

func (r *repo) DecrementUnits(ctx context.Context, db *gorm.DB, orgID, tierID snowflake.ID, units int64) (int64, error) {
	result := db.WithContext(ctx).Exec(
		`UPDATE pricing_tiers
		 SET units_available = units_available - ?, updated_at = ?
		 WHERE org_id = ? AND id = ? AND units_available >= ?`,
		units,
		time.Now().UTC(),
		orgID,
		tierID,
		units,
	)
	if result.Error != nil {
		return 0, result.Error
	}
	return result.RowsAffected, nil
}

func (r *repo) FindNextOpenTier(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID, afterTrancheNumber int) (*pricingdomain.PricingTier, error) {
	var tier pricingdomain.PricingTier
	err := db.WithContext(ctx).Raw(
		`SELECT `+tierColumns+`
		 FROM pricing_tiers
		 WHERE org_id = ? AND fund_id = ? AND tranche_number > ? AND units_available > 0
		 ORDER BY tranche_number ASC
		 LIMIT 1`,
		orgID,
		fundID,
		afterTrancheNumber,
	).Scan(&tier).Error
	if err != nil {
		return nil, err
	}
	if tier.ID == 0 {
		return nil, nil
	}
	return &tier, nil
}

func (r *repo) UpdateTier(ctx context.Context, db *gorm.DB, tier *pricingdomain.PricingTier) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_tiers
		 SET name = ?, price_per_unit = ?, units_total = ?, units_available = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		tier.Name,
		tier.PricePerUnit,
		tier.UnitsTotal,
		tier.UnitsAvailable,
		tier.UpdatedAt,
		tier.OrgID,
		tier.ID,
	).Error
}

func (r *repo) SetActive(ctx context.Context, db *gorm.DB, orgID, tierID snowflake.ID, active bool) error {
	return db.WithContext(ctx).Exec(
		`UPDATE pricing_tiers SET is_active = ?, updated_at = ? WHERE org_id = ? AND id = ?`,
		active,
		time.Now().UTC(),
		orgID,
		tierID,
	).Error
}

func (r *repo) SumRaised(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM((units_total - units_available) * price_per_unit), 0)
		 FROM pricing_tiers
		 WHERE org_id = ? AND fund_id = ?`,
		orgID,
		fundID,
	).Scan(&total).Error
	if err != nil {
		return 0, err
	}
	return total, nil
}

func (r *repo) CountByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM pricing_tiers WHERE org_id = ? AND fund_id = ?`,
		orgID,
		fundID,
	).Scan(&count).Error
	if err != nil {
		return 0, err
	}
	return count, nil
}
