package repository

import (
	"context"

	"github.com/bwmarrin/snowflake"
	investmentdomain "github.com/smallbiznis/fundops/internal/investment/domain"
	"gorm.io/gorm"
)

const investmentColumns = `id, org_id, fund_id, investor_id, commitment_amount,
	funded_amount, currency, status, created_at, updated_at`

type repo struct{}

func Provide() investmentdomain.Repository {
	return &repo{}
}

func (r *repo) Insert(ctx context.Context, db *gorm.DB, investment *investmentdomain.Investment) error {
	return db.WithContext(ctx).Exec(
		`INSERT INTO investments (
			id, org_id, fund_id, investor_id, commitment_amount,
			funded_amount, currency, status, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		investment.ID,
		investment.OrgID,
		investment.FundID,
		investment.InvestorID,
		investment.CommitmentAmount,
		investment.FundedAmount,
		investment.Currency,
		investment.Status,
		investment.CreatedAt,
		investment.UpdatedAt,
	).Error
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*investmentdomain.Investment, error) {
	var investment investmentdomain.Investment
	err := db.WithContext(ctx).Raw(
		`SELECT `+investmentColumns+` FROM investments WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&investment).Error
	if err != nil {
		return nil, err
	}
	if investment.ID == 0 {
		return nil, nil
	}
	return &investment, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*investmentdomain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE org_id = ? AND id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var investment investmentdomain.Investment
	err := db.WithContext(ctx).Raw(query, orgID, id).Scan(&investment).Error
	if err != nil {
		return nil, err
	}
	if investment.ID == 0 {
		return nil, nil
	}
	return &investment, nil
}

func (r *repo) ListByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) ([]investmentdomain.Investment, error) {
	var investments []investmentdomain.Investment
	err := db.WithContext(ctx).Raw(
		`SELECT `+investmentColumns+`
		 FROM investments
		 WHERE org_id = ? AND fund_id = ?
		 ORDER BY created_at ASC, id ASC`,
		orgID,
		fundID,
	).Scan(&investments).Error
	if err != nil {
		return nil, err
	}
	return investments, nil
}

func (r *repo) UpdateFunded(ctx context.Context, db *gorm.DB, investment *investmentdomain.Investment) error {
	return db.WithContext(ctx).Exec(
		`UPDATE investments
		 SET funded_amount = ?, status = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		investment.FundedAmount,
		investment.Status,
		investment.UpdatedAt,
		investment.OrgID,
		investment.ID,
	).Error
}
