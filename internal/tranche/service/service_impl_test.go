package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	auditdomain "github.com/smallbiznis/fundops/internal/audit/domain"
	"github.com/smallbiznis/fundops/internal/clock"
	investmentdomain "github.com/smallbiznis/fundops/internal/investment/domain"
	investmentrepo "github.com/smallbiznis/fundops/internal/investment/repository"
	"github.com/smallbiznis/fundops/internal/orgcontext"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
	trancherepo "github.com/smallbiznis/fundops/internal/tranche/repository"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Mock Audit Service
type mockAuditSvc struct {
	mock.Mock
}

func (m *mockAuditSvc) AuditLog(ctx context.Context, orgID *snowflake.ID, actorType string, actorID *string, action string, targetType string, targetID *string, metadata map[string]any) error {
	args := m.Called(ctx, orgID, actorType, actorID, action, targetType, targetID, metadata)
	return args.Error(0)
}

func (m *mockAuditSvc) List(ctx context.Context, req auditdomain.ListAuditLogRequest) (auditdomain.ListAuditLogResponse, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(auditdomain.ListAuditLogResponse), args.Error(1)
}

func setupTrancheDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)

	// Create tables manually to match production schema
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

type trancheFixture struct {
	db    *gorm.DB
	node  *snowflake.Node
	clk   *clock.FakeClock
	svc   tranchedomain.Service
	orgID snowflake.ID
	ctx   context.Context
}

func newTrancheFixture(t *testing.T, nodeID int64) *trancheFixture {
	db := setupTrancheDB(t)
	node, _ := snowflake.NewNode(nodeID)
	clk := clock.NewFakeClock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))

	mockAudit := new(mockAuditSvc)
	mockAudit.On("AuditLog", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil)

	orgID := node.Generate()

	svc := NewService(Params{
		DB:             db,
		Log:            zap.NewNop(),
		GenID:          node,
		Clock:          clk,
		Repo:           trancherepo.Provide(),
		InvestmentRepo: investmentrepo.Provide(),
		AuditSvc:       mockAudit,
	})

	return &trancheFixture{
		db:    db,
		node:  node,
		clk:   clk,
		svc:   svc,
		orgID: orgID,
		ctx:   orgcontext.WithOrgID(context.Background(), int64(orgID)),
	}
}

func (f *trancheFixture) seedInvestment(t *testing.T, commitment int64) *investmentdomain.Investment {
	now := f.clk.Now()
	investment := &investmentdomain.Investment{
		ID:               f.node.Generate(),
		OrgID:            f.orgID,
		FundID:           f.node.Generate(),
		InvestorID:       "investor_001",
		CommitmentAmount: commitment,
		Currency:         "USD",
		Status:           investmentdomain.StatusPending,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	assert.NoError(t, investmentrepo.Provide().Insert(context.Background(), f.db, investment))
	return investment
}

func (f *trancheFixture) loadInvestment(t *testing.T, id snowflake.ID) *investmentdomain.Investment {
	investment, err := investmentrepo.Provide().FindByID(context.Background(), f.db, f.orgID, id)
	assert.NoError(t, err)
	assert.NotNil(t, investment)
	return investment
}

func TestCreateSchedule(t *testing.T) {
	f := newTrancheFixture(t, 10)
	base := f.clk.Now()

	t.Run("Split Commitment - Success", func(t *testing.T) {
		investment := f.seedInvestment(t, 300000)
		tranches, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
			InvestmentID: investment.ID.String(),
			Installments: []tranchedomain.ScheduleInstallment{
				{Amount: 100000, ScheduledDate: base.AddDate(0, 1, 0)},
				{Amount: 100000, ScheduledDate: base.AddDate(0, 2, 0)},
				{Amount: 100000, ScheduledDate: base.AddDate(0, 3, 0)},
			},
		})
		assert.NoError(t, err)
		assert.Len(t, tranches, 3)
		assert.Equal(t, 1, tranches[0].TrancheNumber)
		assert.Equal(t, tranchedomain.StatusScheduled, tranches[0].Status)

		// Scheduling activates a pending commitment
		stored := f.loadInvestment(t, investment.ID)
		assert.Equal(t, investmentdomain.StatusActive, stored.Status)
	})

	t.Run("Split Commitment - Amount Mismatch", func(t *testing.T) {
		investment := f.seedInvestment(t, 300000)
		_, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
			InvestmentID: investment.ID.String(),
			Installments: []tranchedomain.ScheduleInstallment{
				{Amount: 100000, ScheduledDate: base.AddDate(0, 1, 0)},
				{Amount: 100000, ScheduledDate: base.AddDate(0, 2, 0)},
			},
		})
		assert.Equal(t, tranchedomain.ErrScheduleMismatch, err)
	})

	t.Run("Split Commitment - Already Scheduled", func(t *testing.T) {
		investment := f.seedInvestment(t, 100000)
		_, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
			InvestmentID: investment.ID.String(),
			Installments: []tranchedomain.ScheduleInstallment{
				{Amount: 100000, ScheduledDate: base.AddDate(0, 1, 0)},
			},
		})
		assert.NoError(t, err)

		_, err = f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
			InvestmentID: investment.ID.String(),
			Installments: []tranchedomain.ScheduleInstallment{
				{Amount: 100000, ScheduledDate: base.AddDate(0, 1, 0)},
			},
		})
		assert.Equal(t, tranchedomain.ErrScheduleExists, err)
	})

	t.Run("Investment Not Found", func(t *testing.T) {
		_, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
			InvestmentID: f.node.Generate().String(),
			Installments: []tranchedomain.ScheduleInstallment{
				{Amount: 100000, ScheduledDate: base.AddDate(0, 1, 0)},
			},
		})
		assert.Equal(t, tranchedomain.ErrInvestmentNotFound, err)
	})

	t.Run("Empty Schedule", func(t *testing.T) {
		investment := f.seedInvestment(t, 100000)
		_, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
			InvestmentID: investment.ID.String(),
		})
		assert.Equal(t, tranchedomain.ErrInvalidSchedule, err)
	})
}

func TestTransitionTrancheStatus(t *testing.T) {
	f := newTrancheFixture(t, 11)
	base := f.clk.Now()

	investment := f.seedInvestment(t, 200000)
	tranches, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
		InvestmentID: investment.ID.String(),
		Installments: []tranchedomain.ScheduleInstallment{
			{Amount: 120000, ScheduledDate: base.AddDate(0, 1, 0)},
			{Amount: 80000, ScheduledDate: base.AddDate(0, 2, 0)},
		},
	})
	assert.NoError(t, err)

	first, second := tranches[0].ID, tranches[1].ID

	t.Run("Called Sets Called Date", func(t *testing.T) {
		callID := "cc_2025_001"
		result, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID:     first,
			NewStatus:     tranchedomain.StatusCalled,
			CapitalCallID: &callID,
		})
		assert.NoError(t, err)
		assert.True(t, result.Allowed)
		assert.Equal(t, tranchedomain.StatusCalled, result.Tranche.Status)
		assert.NotNil(t, result.Tranche.CalledDate)
		assert.Equal(t, "cc_2025_001", *result.Tranche.CapitalCallID)
	})

	t.Run("Partial Funding Requires Amount", func(t *testing.T) {
		_, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID: first,
			NewStatus: tranchedomain.StatusPartiallyFunded,
		})
		assert.Equal(t, tranchedomain.ErrInvalidFundedAmount, err)

		full := int64(120000)
		_, err = f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID:    first,
			NewStatus:    tranchedomain.StatusPartiallyFunded,
			FundedAmount: &full,
		})
		assert.Equal(t, tranchedomain.ErrInvalidFundedAmount, err)
	})

	t.Run("Partial Funding Updates Parent", func(t *testing.T) {
		partial := int64(50000)
		result, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID:    first,
			NewStatus:    tranchedomain.StatusPartiallyFunded,
			FundedAmount: &partial,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(50000), result.Tranche.FundedAmount)

		stored := f.loadInvestment(t, investment.ID)
		assert.Equal(t, int64(50000), stored.FundedAmount)
	})

	t.Run("Funded Settles In Full", func(t *testing.T) {
		proof := "doc_wire_778"
		result, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID:           first,
			NewStatus:           tranchedomain.StatusFunded,
			WireProofDocumentID: &proof,
		})
		assert.NoError(t, err)
		assert.Equal(t, int64(120000), result.Tranche.FundedAmount)
		assert.NotNil(t, result.Tranche.FundedDate)
		assert.Equal(t, "doc_wire_778", *result.Tranche.WireProofDocumentID)

		stored := f.loadInvestment(t, investment.ID)
		assert.Equal(t, int64(120000), stored.FundedAmount)
	})

	t.Run("Funded Is Terminal", func(t *testing.T) {
		result, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID: first,
			NewStatus: tranchedomain.StatusFunded,
		})
		assert.Equal(t, tranchedomain.ErrInvalidTransition, err)
		assert.False(t, result.Allowed)
		assert.Equal(t, tranchedomain.StatusFunded, result.CurrentStatus)
		assert.Equal(t, tranchedomain.StatusFunded, result.RequestedStatus)
	})

	t.Run("Default Cleared Only By Write-Off", func(t *testing.T) {
		_, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID: second,
			NewStatus: tranchedomain.StatusOverdue,
		})
		assert.NoError(t, err)

		_, err = f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID: second,
			NewStatus: tranchedomain.StatusDefaulted,
		})
		assert.NoError(t, err)

		// Defaulted allows nothing but cancellation
		result, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID: second,
			NewStatus: tranchedomain.StatusCalled,
		})
		assert.Equal(t, tranchedomain.ErrInvalidTransition, err)
		assert.Equal(t, tranchedomain.StatusDefaulted, result.CurrentStatus)

		cancelled, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID: second,
			NewStatus: tranchedomain.StatusCancelled,
		})
		assert.NoError(t, err)
		assert.True(t, cancelled.Allowed)
	})

	t.Run("All Settled Marks Investment Funded", func(t *testing.T) {
		// First tranche FUNDED, second CANCELLED after default
		stored := f.loadInvestment(t, investment.ID)
		assert.Equal(t, investmentdomain.StatusFunded, stored.Status)
	})

	t.Run("Unknown Status Rejected", func(t *testing.T) {
		_, err := f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
			TrancheID: second,
			NewStatus: "SETTLED",
		})
		assert.Equal(t, tranchedomain.ErrInvalidStatus, err)
	})
}

func TestRecalculateInvestmentFunded(t *testing.T) {
	f := newTrancheFixture(t, 12)
	base := f.clk.Now()

	investment := f.seedInvestment(t, 200000)
	tranches, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
		InvestmentID: investment.ID.String(),
		Installments: []tranchedomain.ScheduleInstallment{
			{Amount: 100000, ScheduledDate: base.AddDate(0, 1, 0)},
			{Amount: 100000, ScheduledDate: base.AddDate(0, 2, 0)},
		},
	})
	assert.NoError(t, err)

	_, err = f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
		TrancheID: tranches[0].ID,
		NewStatus: tranchedomain.StatusFunded,
	})
	assert.NoError(t, err)

	t.Run("Idempotent Without Changes", func(t *testing.T) {
		one, err := f.svc.RecalculateInvestmentFunded(f.ctx, investment.ID.String())
		assert.NoError(t, err)
		two, err := f.svc.RecalculateInvestmentFunded(f.ctx, investment.ID.String())
		assert.NoError(t, err)
		assert.Equal(t, one.FundedAmount, two.FundedAmount)
		assert.Equal(t, one.Status, two.Status)
		assert.Equal(t, int64(100000), two.FundedAmount)
		assert.Equal(t, investmentdomain.StatusActive, two.Status)
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := f.svc.RecalculateInvestmentFunded(f.ctx, f.node.Generate().String())
		assert.Equal(t, tranchedomain.ErrInvestmentNotFound, err)
	})
}

func TestDetectOverdueTranches(t *testing.T) {
	f := newTrancheFixture(t, 13)
	base := f.clk.Now()

	investment := f.seedInvestment(t, 400000)
	fundID := investment.FundID.String()

	tranches, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
		InvestmentID: investment.ID.String(),
		Installments: []tranchedomain.ScheduleInstallment{
			{Amount: 100000, ScheduledDate: base.AddDate(0, 0, 7)},
			{Amount: 100000, ScheduledDate: base.AddDate(0, 0, 14)},
			{Amount: 100000, ScheduledDate: base.AddDate(0, 0, 21)},
			{Amount: 100000, ScheduledDate: base.AddDate(0, 2, 0)},
		},
	})
	assert.NoError(t, err)

	// Second tranche now CALLED, third receiving partial capital
	_, err = f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
		TrancheID: tranches[1].ID,
		NewStatus: tranchedomain.StatusCalled,
	})
	assert.NoError(t, err)
	partial := int64(40000)
	_, err = f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
		TrancheID:    tranches[2].ID,
		NewStatus:    tranchedomain.StatusPartiallyFunded,
		FundedAmount: &partial,
	})
	assert.NoError(t, err)

	// A month passes; tranches 1-3 are past due, 4 is not
	f.clk.Advance(31 * 24 * time.Hour)

	t.Run("Read Only Excludes Partially Funded", func(t *testing.T) {
		overdue, err := f.svc.DetectOverdueTranches(f.ctx, fundID, false)
		assert.NoError(t, err)
		assert.Len(t, overdue, 2)
		for _, tranche := range overdue {
			assert.NotEqual(t, tranchedomain.StatusPartiallyFunded, tranche.Status)
		}

		// No mutation happened
		stored, err := f.svc.GetTranche(f.ctx, tranches[0].ID)
		assert.NoError(t, err)
		assert.Equal(t, tranchedomain.StatusScheduled, stored.Status)
	})

	t.Run("AutoMark Flips Batch", func(t *testing.T) {
		marked, err := f.svc.DetectOverdueTranches(f.ctx, fundID, true)
		assert.NoError(t, err)
		assert.Len(t, marked, 2)
		for _, tranche := range marked {
			assert.Equal(t, tranchedomain.StatusOverdue, tranche.Status)
			assert.NotNil(t, tranche.OverdueDate)
		}

		// Second sweep finds nothing new
		again, err := f.svc.DetectOverdueTranches(f.ctx, fundID, true)
		assert.NoError(t, err)
		assert.Empty(t, again)
	})
}

func TestGetFundTrancheStats(t *testing.T) {
	f := newTrancheFixture(t, 14)
	base := f.clk.Now()

	investment := f.seedInvestment(t, 400000)
	fundID := investment.FundID.String()

	tranches, err := f.svc.CreateSchedule(f.ctx, tranchedomain.CreateScheduleRequest{
		InvestmentID: investment.ID.String(),
		Installments: []tranchedomain.ScheduleInstallment{
			{Amount: 100000, ScheduledDate: base.AddDate(0, 0, -7)}, // already past due
			{Amount: 100000, ScheduledDate: base.AddDate(0, 0, 10)},
			{Amount: 100000, ScheduledDate: base.AddDate(0, 0, 20)},
			{Amount: 100000, ScheduledDate: base.AddDate(0, 3, 0)},
		},
	})
	assert.NoError(t, err)

	_, err = f.svc.TransitionTrancheStatus(f.ctx, tranchedomain.TransitionRequest{
		TrancheID: tranches[1].ID,
		NewStatus: tranchedomain.StatusFunded,
	})
	assert.NoError(t, err)

	stats, err := f.svc.GetFundTrancheStats(f.ctx, fundID)
	assert.NoError(t, err)
	assert.Equal(t, int64(4), stats.TotalTranches)
	assert.Equal(t, int64(400000), stats.TotalScheduled)
	assert.Equal(t, int64(100000), stats.TotalFunded)
	assert.Equal(t, int64(3), stats.ByStatus[tranchedomain.StatusScheduled].Count)
	assert.Equal(t, int64(1), stats.ByStatus[tranchedomain.StatusFunded].Count)

	// Past-due is computed from scheduled_date, not the persisted status
	assert.Equal(t, int64(1), stats.OverdueCount)
	// Tranche 3 is due in 20 days; the funded one no longer counts
	assert.Equal(t, int64(1), stats.UpcomingCount)
}
