package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	funddomain "github.com/smallbiznis/fundops/internal/fund/domain"
	"gorm.io/gorm"
)

type repo struct{}

func Provide() funddomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, fund *funddomain.Fund) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO funds (
			id, org_id, name, currency, target_raise, current_raise,
			minimum_investment, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		fund.ID,
		fund.OrgID,
		fund.Name,
		fund.Currency,
		fund.TargetRaise,
		fund.CurrentRaise,
		fund.MinimumInvestment,
		fund.CreatedAt,
		fund.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*funddomain.Fund, error) {
	var fund funddomain.Fund
	err := db.WithContext(ctx).Raw(
		`SELECT id, org_id, name, currency, target_raise, current_raise,
		 minimum_investment, created_at, updated_at
		 FROM funds WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&fund).Error
	if err != nil {
		return nil, err
	}
	if fund.ID == 0 {
		return nil, nil
	}
	return &fund, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*funddomain.Fund, error) {
	query := `SELECT id, org_id, name, currency, target_raise, current_raise,
		 minimum_investment, created_at, updated_at
		 FROM funds WHERE org_id = ? AND id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var fund funddomain.Fund
	err := db.WithContext(ctx).Raw(query, orgID, id).Scan(&fund).Error
	if err != nil {
		return nil, err
	}
	if fund.ID == 0 {
		return nil, nil
	}
	return &fund, nil
}

func (r *repo) UpdateRaise(ctx context.Context, db *gorm.DB, fund *funddomain.Fund) error {
	return db.WithContext(ctx).Exec(
		`UPDATE funds
		 SET current_raise = ?, minimum_investment = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		fund.CurrentRaise,
		fund.MinimumInvestment,
		fund.UpdatedAt,
		fund.OrgID,
		fund.ID,
	).Error
}
