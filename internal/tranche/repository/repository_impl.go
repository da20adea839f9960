package repository

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
	"gorm.io/gorm"
)

const trancheColumns = `id, org_id, investment_id, fund_id, tranche_number, amount,
	funded_amount, status, scheduled_date, called_date, funded_date, overdue_date,
	capital_call_id, wire_proof_document_id, metadata, created_at, updated_at`

type repo struct{}

func Provide() tranchedomain.Repository {
	return &repo{}
}

func (r *repo) InsertTranches(ctx context.Context, db *gorm.DB, tranches []tranchedomain.InvestmentTranche) error {
	for i := range tranches {
		tranche := tranches[i]
		err := db.WithContext(ctx).Exec(
			`INSERT INTO investment_tranches (
				id, org_id, investment_id, fund_id, tranche_number, amount,
				funded_amount, status, scheduled_date, metadata, created_at, updated_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			tranche.ID,
			tranche.OrgID,
			tranche.InvestmentID,
			tranche.FundID,
			tranche.TrancheNumber,
			tranche.Amount,
			tranche.FundedAmount,
			tranche.Status,
			tranche.ScheduledDate,
			tranche.Metadata,
			tranche.CreatedAt,
			tranche.UpdatedAt,
		).Error
		if err != nil {
			return err
		}
	}
	return nil
}

func (r *repo) FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*tranchedomain.InvestmentTranche, error) {
	var tranche tranchedomain.InvestmentTranche
	err := db.WithContext(ctx).Raw(
		`SELECT `+trancheColumns+` FROM investment_tranches WHERE org_id = ? AND id = ?`,
		orgID,
		id,
	).Scan(&tranche).Error
	if err != nil {
		return nil, err
	}
	if tranche.ID == 0 {
		return nil, nil
	}
	return &tranche, nil
}

func (r *repo) FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*tranchedomain.InvestmentTranche, error) {
	query := `SELECT ` + trancheColumns + ` FROM investment_tranches WHERE org_id = ? AND id = ?`
	if db.Dialector.Name() != "sqlite" {
		query += " FOR UPDATE"
	}

	var tranche tranchedomain.InvestmentTranche
	err := db.WithContext(ctx).Raw(query, orgID, id).Scan(&tranche).Error
	if err != nil {
		return nil, err
	}
	if tranche.ID == 0 {
		return nil, nil
	}
	return &tranche, nil
}

func (r *repo) ListByInvestment(ctx context.Context, db *gorm.DB, orgID, investmentID snowflake.ID) ([]tranchedomain.InvestmentTranche, error) {
	var tranches []tranchedomain.InvestmentTranche
	err := db.WithContext(ctx).Raw(
		`SELECT `+trancheColumns+`
		 FROM investment_tranches
		 WHERE org_id = ? AND investment_id = ?
		 ORDER BY tranche_number ASC`,
		orgID,
		investmentID,
	).Scan(&tranches).Error
	if err != nil {
		return nil, err
	}
	return tranches, nil
}

func (r *repo) ListByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) ([]tranchedomain.InvestmentTranche, error) {
	var tranches []tranchedomain.InvestmentTranche
	err := db.WithContext(ctx).Raw(
		`SELECT `+trancheColumns+`
		 FROM investment_tranches
		 WHERE org_id = ? AND fund_id = ?
		 ORDER BY scheduled_date ASC, tranche_number ASC`,
		orgID,
		fundID,
	).Scan(&tranches).Error
	if err != nil {
		return nil, err
	}
	return tranches, nil
}

func (r *repo) CountByInvestment(ctx context.Context, db *gorm.DB, orgID, investmentID snowflake.ID) (int64, error) {
	var count int64
	err := db.WithContext(ctx).Raw(
		`SELECT COUNT(1) FROM investment_tranches WHERE org_id = ? AND investment_id = ?`,
		orgID,
		investmentID,
	).Scan(&count).Error
	return count, err
}

func (r *repo) Update(ctx context.Context, db *gorm.DB, tranche *tranchedomain.InvestmentTranche) error {
	return db.WithContext(ctx).Exec(
		`UPDATE investment_tranches
		 SET funded_amount = ?, status = ?, called_date = ?, funded_date = ?,
		     overdue_date = ?, capital_call_id = ?, wire_proof_document_id = ?,
		     metadata = ?, updated_at = ?
		 WHERE org_id = ? AND id = ?`,
		tranche.FundedAmount,
		tranche.Status,
		tranche.CalledDate,
		tranche.FundedDate,
		tranche.OverdueDate,
		tranche.CapitalCallID,
		tranche.WireProofDocumentID,
		tranche.Metadata,
		tranche.UpdatedAt,
		tranche.OrgID,
		tranche.ID,
	).Error
}

func (r *repo) SumFundedByInvestment(ctx context.Context, db *gorm.DB, orgID, investmentID snowflake.ID) (int64, error) {
	var total int64
	err := db.WithContext(ctx).Raw(
		`SELECT COALESCE(SUM(funded_amount), 0)
		 FROM investment_tranches
		 WHERE org_id = ? AND investment_id = ?`,
		orgID,
		investmentID,
	).Scan(&total).Error
	return total, err
}

func (r *repo) ListOverdue(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID, before time.Time) ([]tranchedomain.InvestmentTranche, error) {
	var tranches []tranchedomain.InvestmentTranche
	err := db.WithContext(ctx).Raw(
		`SELECT `+trancheColumns+`
		 FROM investment_tranches
		 WHERE org_id = ? AND fund_id = ? AND scheduled_date < ?
		   AND status IN (?, ?)
		 ORDER BY scheduled_date ASC, tranche_number ASC`,
		orgID,
		fundID,
		before,
		tranchedomain.StatusScheduled,
		tranchedomain.StatusCalled,
	).Scan(&tranches).Error
	if err != nil {
		return nil, err
	}
	return tranches, nil
}

func (r *repo) MarkOverdue(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, at time.Time) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	res := db.WithContext(ctx).Exec(
		`UPDATE investment_tranches
		 SET status = ?, overdue_date = ?, updated_at = ?
		 WHERE org_id = ? AND id IN (?) AND status IN (?, ?)`,
		tranchedomain.StatusOverdue,
		at,
		at,
		orgID,
		ids,
		tranchedomain.StatusScheduled,
		tranchedomain.StatusCalled,
	)
	return res.RowsAffected, res.Error
}
