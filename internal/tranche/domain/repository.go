package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	InsertTranches(ctx context.Context, db *gorm.DB, tranches []InvestmentTranche) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*InvestmentTranche, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*InvestmentTranche, error)
	ListByInvestment(ctx context.Context, db *gorm.DB, orgID, investmentID snowflake.ID) ([]InvestmentTranche, error)
	ListByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) ([]InvestmentTranche, error)
	CountByInvestment(ctx context.Context, db *gorm.DB, orgID, investmentID snowflake.ID) (int64, error)
	Update(ctx context.Context, db *gorm.DB, tranche *InvestmentTranche) error
	// SumFundedByInvestment recomputes the parent aggregate from
	// scratch across every tranche of the investment.
	SumFundedByInvestment(ctx context.Context, db *gorm.DB, orgID, investmentID snowflake.ID) (int64, error)
	// ListOverdue returns tranches whose scheduled date lies before
	// the cutoff and whose status is SCHEDULED or CALLED.
	// PARTIALLY_FUNDED tranches are already receiving capital and are
	// never flagged.
	ListOverdue(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID, before time.Time) ([]InvestmentTranche, error)
	// MarkOverdue flips the given tranches to OVERDUE in one batch
	// write, setting overdue_date. Rows that changed status since the
	// read are skipped by the status guard.
	MarkOverdue(ctx context.Context, db *gorm.DB, orgID snowflake.ID, ids []snowflake.ID, at time.Time) (int64, error)
}
