package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	"github.com/smallbiznis/fundops/internal/clock"
	investmentdomain "github.com/smallbiznis/fundops/internal/investment/domain"
	investmentrepo "github.com/smallbiznis/fundops/internal/investment/repository"
	"github.com/smallbiznis/fundops/internal/orgcontext"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
	trancherepo "github.com/smallbiznis/fundops/internal/tranche/repository"
	trancheservice "github.com/smallbiznis/fundops/internal/tranche/service"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupSchedulerDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)

	db.Exec(`CREATE TABLE IF NOT EXISTS investments (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		fund_id BIGINT NOT NULL,
		investor_id TEXT NOT NULL,
		commitment_amount BIGINT NOT NULL,
		funded_amount BIGINT NOT NULL DEFAULT 0,
		currency TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)

	db.Exec(`CREATE TABLE IF NOT EXISTS investment_tranches (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		investment_id BIGINT NOT NULL,
		fund_id BIGINT NOT NULL,
		tranche_number INTEGER NOT NULL,
		amount BIGINT NOT NULL,
		funded_amount BIGINT NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'SCHEDULED',
		scheduled_date TIMESTAMP NOT NULL,
		called_date TIMESTAMP,
		funded_date TIMESTAMP,
		overdue_date TIMESTAMP,
		capital_call_id TEXT,
		wire_proof_document_id TEXT,
		metadata TEXT,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)

	return db
}

func TestRunOnceMarksOverdueAcrossFunds(t *testing.T) {
	db := setupSchedulerDB(t)
	node, _ := snowflake.NewNode(20)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	trancheSvc := trancheservice.NewService(trancheservice.Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          clk,
		Repo:           trancherepo.Provide(),
		InvestmentRepo: investmentrepo.Provide(),
	})

	sched, err := New(Params{
		DB:         db,
		Log:        zap.NewNop(),
		TrancheSvc: trancheSvc,
		Clock:      clk,
	})
	assert.NoError(t, err)

	// Two orgs, one fund each, one investment per fund
	seed := func(orgID snowflake.ID) (string, context.Context) {
		ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
		investment := &investmentdomain.Investment{
			ID:               node.Generate(),
			OrgID:            orgID,
			FundID:           node.Generate(),
			InvestorID:       "investor_001",
			CommitmentAmount: 200000,
			Currency:         "USD",
			Status:           investmentdomain.StatusPending,
			CreatedAt:        clk.Now(),
			UpdatedAt:        clk.Now(),
		}
		assert.NoError(t, investmentrepo.Provide().Insert(context.Background(), db, investment))

		_, err := trancheSvc.CreateSchedule(ctx, tranchedomain.CreateScheduleRequest{
			InvestmentID: investment.ID.String(),
			Installments: []tranchedomain.ScheduleInstallment{
				{Amount: 100000, ScheduledDate: clk.Now().AddDate(0, 0, 7)},
				{Amount: 100000, ScheduledDate: clk.Now().AddDate(0, 2, 0)},
			},
		})
		assert.NoError(t, err)
		return investment.FundID.String(), ctx
	}

	fundA, ctxA := seed(node.Generate())
	fundB, ctxB := seed(node.Generate())

	t.Run("Nothing Due Yet", func(t *testing.T) {
		assert.NoError(t, sched.RunOnce(context.Background()))
		overdue, err := trancheSvc.DetectOverdueTranches(ctxA, fundA, false)
		assert.NoError(t, err)
		assert.Empty(t, overdue)
	})

	t.Run("Sweep After Due Date", func(t *testing.T) {
		clk.Advance(8 * 24 * time.Hour)
		assert.NoError(t, sched.RunOnce(context.Background()))

		for _, probe := range []struct {
			ctx    context.Context
			fundID string
		}{{ctxA, fundA}, {ctxB, fundB}} {
			tranches, err := trancheSvc.GetFundTranches(probe.ctx, probe.fundID)
			assert.NoError(t, err)
			assert.Len(t, tranches, 2)
			assert.Equal(t, tranchedomain.StatusOverdue, tranches[0].Status)
			assert.NotNil(t, tranches[0].OverdueDate)
			assert.Equal(t, tranchedomain.StatusScheduled, tranches[1].Status)
		}
	})

	t.Run("Sweep Is Idempotent", func(t *testing.T) {
		assert.NoError(t, sched.RunOnce(context.Background()))
		tranches, err := trancheSvc.GetFundTranches(ctxA, fundA)
		assert.NoError(t, err)
		assert.Equal(t, tranchedomain.StatusOverdue, tranches[0].Status)
	})
}
