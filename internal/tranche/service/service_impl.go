package service

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/fundops/internal/audit/domain"
	"github.com/smallbiznis/fundops/internal/clock"
	investmentdomain "github.com/smallbiznis/fundops/internal/investment/domain"
	obsmetrics "github.com/smallbiznis/fundops/internal/observability/metrics"
	"github.com/smallbiznis/fundops/internal/orgcontext"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const upcomingWindow = 30 * 24 * time.Hour

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID          *snowflake.Node
	clock          clock.Clock
	repo           tranchedomain.Repository
	investmentRepo investmentdomain.Repository

	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	DB             *gorm.DB
	Log            *zap.Logger
	GenID          *snowflake.Node
	Clock          clock.Clock
	Repo           tranchedomain.Repository
	InvestmentRepo investmentdomain.Repository

	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p Params) tranchedomain.Service {
	return &Service{
		db:             p.DB,
		log:            p.Log.Named("tranche.service"),
		genID:          p.GenID,
		clock:          p.Clock,
		repo:           p.Repo,
		investmentRepo: p.InvestmentRepo,
		auditSvc:       p.AuditSvc,
		obsMetrics:     p.ObsMetrics,
	}
}

// CreateSchedule splits an investment's commitment into numbered
// SCHEDULED tranches. The installment amounts must sum exactly to the
// commitment; a schedule is written once per investment.
func (s *Service) CreateSchedule(ctx context.Context, req tranchedomain.CreateScheduleRequest) ([]tranchedomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, tranchedomain.ErrInvalidOrganization
	}

	investmentID, err := s.parseID(req.InvestmentID, tranchedomain.ErrInvalidInvestment)
	if err != nil {
		return nil, err
	}

	if len(req.Installments) == 0 {
		return nil, tranchedomain.ErrInvalidSchedule
	}
	var total int64
	for _, installment := range req.Installments {
		if installment.Amount <= 0 || installment.ScheduledDate.IsZero() {
			return nil, tranchedomain.ErrInvalidSchedule
		}
		total += installment.Amount
	}

	now := s.clock.Now()
	var tranches []tranchedomain.InvestmentTranche

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		investment, err := s.investmentRepo.FindByIDForUpdate(ctx, tx, orgID, investmentID)
		if err != nil {
			return err
		}
		if investment == nil {
			return tranchedomain.ErrInvestmentNotFound
		}

		if total != investment.CommitmentAmount {
			return tranchedomain.ErrScheduleMismatch
		}

		existing, err := s.repo.CountByInvestment(ctx, tx, orgID, investmentID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return tranchedomain.ErrScheduleExists
		}

		tranches = make([]tranchedomain.InvestmentTranche, 0, len(req.Installments))
		for i, installment := range req.Installments {
			tranches = append(tranches, tranchedomain.InvestmentTranche{
				ID:            s.genID.Generate(),
				OrgID:         orgID,
				InvestmentID:  investmentID,
				FundID:        investment.FundID,
				TrancheNumber: i + 1,
				Amount:        installment.Amount,
				Status:        tranchedomain.StatusScheduled,
				ScheduledDate: installment.ScheduledDate.UTC(),
				CreatedAt:     now,
				UpdatedAt:     now,
			})
		}
		if err := s.repo.InsertTranches(ctx, tx, tranches); err != nil {
			return err
		}

		if investment.Status == investmentdomain.StatusPending {
			investment.Status = investmentdomain.StatusActive
			investment.UpdatedAt = now
			return s.investmentRepo.UpdateFunded(ctx, tx, investment)
		}
		return nil
	}); err != nil {
		return nil, err
	}

	s.audit(ctx, orgID, "tranche.schedule.created", "investment", investmentID.String(), map[string]any{
		"tranche_count": len(tranches),
		"total_amount":  total,
	})

	out := make([]tranchedomain.Tranche, 0, len(tranches))
	for _, tranche := range tranches {
		out = append(out, toTranche(tranche))
	}
	return out, nil
}

func (s *Service) GetInvestmentTranches(ctx context.Context, investmentID string) ([]tranchedomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, tranchedomain.ErrInvalidOrganization
	}

	id, err := s.parseID(investmentID, tranchedomain.ErrInvalidInvestment)
	if err != nil {
		return nil, err
	}

	tranches, err := s.repo.ListByInvestment(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	return toTranches(tranches), nil
}

func (s *Service) GetTranche(ctx context.Context, trancheID string) (tranchedomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return tranchedomain.Tranche{}, tranchedomain.ErrInvalidOrganization
	}

	id, err := s.parseID(trancheID, tranchedomain.ErrInvalidTranche)
	if err != nil {
		return tranchedomain.Tranche{}, err
	}

	tranche, err := s.repo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return tranchedomain.Tranche{}, err
	}
	if tranche == nil {
		return tranchedomain.Tranche{}, tranchedomain.ErrTrancheNotFound
	}
	return toTranche(*tranche), nil
}

func (s *Service) GetFundTranches(ctx context.Context, fundID string) ([]tranchedomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, tranchedomain.ErrInvalidOrganization
	}

	id, err := s.parseID(fundID, tranchedomain.ErrInvalidFund)
	if err != nil {
		return nil, err
	}

	tranches, err := s.repo.ListByFund(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}
	return toTranches(tranches), nil
}

// TransitionTrancheStatus moves a tranche through the lifecycle state
// machine. An invalid edge returns ErrInvalidTransition together with a
// populated result carrying the current and requested status, so batch
// callers can report the rejection and continue. The transition and the
// parent investment recalculation commit in one transaction.
func (s *Service) TransitionTrancheStatus(ctx context.Context, req tranchedomain.TransitionRequest) (tranchedomain.TransitionResult, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return tranchedomain.TransitionResult{}, tranchedomain.ErrInvalidOrganization
	}

	trancheID, err := s.parseID(req.TrancheID, tranchedomain.ErrInvalidTranche)
	if err != nil {
		return tranchedomain.TransitionResult{}, err
	}

	target := strings.ToUpper(strings.TrimSpace(req.NewStatus))
	if !tranchedomain.IsValidStatus(target) {
		return tranchedomain.TransitionResult{}, tranchedomain.ErrInvalidStatus
	}

	var result tranchedomain.TransitionResult

	txErr := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tranche, err := s.repo.FindByIDForUpdate(ctx, tx, orgID, trancheID)
		if err != nil {
			return err
		}
		if tranche == nil {
			return tranchedomain.ErrTrancheNotFound
		}

		result = tranchedomain.TransitionResult{
			CurrentStatus:   tranche.Status,
			RequestedStatus: target,
			Tranche:         toTranche(*tranche),
		}

		if !tranchedomain.IsTransitionAllowed(tranche.Status, target) {
			return tranchedomain.ErrInvalidTransition
		}

		now := s.clock.Now()
		if err := applyTransition(tranche, target, req, now); err != nil {
			return err
		}
		tranche.UpdatedAt = now

		if err := s.repo.Update(ctx, tx, tranche); err != nil {
			return err
		}

		switch target {
		case tranchedomain.StatusFunded, tranchedomain.StatusPartiallyFunded, tranchedomain.StatusCancelled:
			if _, err := s.recalculateLocked(ctx, tx, orgID, tranche.InvestmentID, now); err != nil {
				return err
			}
		}

		result.Allowed = true
		result.Tranche = toTranche(*tranche)
		return nil
	})
	if txErr != nil {
		return result, txErr
	}

	s.obsMetrics.RecordTrancheTransition(ctx, target)
	s.audit(ctx, orgID, "tranche.status.transitioned", "investment_tranche", trancheID.String(), map[string]any{
		"from":          result.CurrentStatus,
		"to":            target,
		"funded_amount": result.Tranche.FundedAmount,
	})

	return result, nil
}

// applyTransition writes the status and its side effects onto the row.
// Date columns are written only on their first transition.
func applyTransition(tranche *tranchedomain.InvestmentTranche, target string, req tranchedomain.TransitionRequest, now time.Time) error {
	switch target {
	case tranchedomain.StatusCalled:
		if !tranche.CalledDate.Valid {
			tranche.CalledDate = sql.NullTime{Time: now, Valid: true}
		}
		if req.CapitalCallID != nil {
			tranche.CapitalCallID = sql.NullString{String: *req.CapitalCallID, Valid: true}
		}
	case tranchedomain.StatusFunded:
		funded := tranche.Amount
		if req.FundedAmount != nil {
			funded = *req.FundedAmount
		}
		if funded <= 0 || funded > tranche.Amount {
			return tranchedomain.ErrInvalidFundedAmount
		}
		tranche.FundedAmount = funded
		if !tranche.FundedDate.Valid {
			tranche.FundedDate = sql.NullTime{Time: now, Valid: true}
		}
		if req.WireProofDocumentID != nil {
			tranche.WireProofDocumentID = sql.NullString{String: *req.WireProofDocumentID, Valid: true}
		}
	case tranchedomain.StatusPartiallyFunded:
		if req.FundedAmount == nil {
			return tranchedomain.ErrInvalidFundedAmount
		}
		if *req.FundedAmount <= 0 || *req.FundedAmount >= tranche.Amount {
			return tranchedomain.ErrInvalidFundedAmount
		}
		tranche.FundedAmount = *req.FundedAmount
		if req.WireProofDocumentID != nil {
			tranche.WireProofDocumentID = sql.NullString{String: *req.WireProofDocumentID, Valid: true}
		}
	case tranchedomain.StatusOverdue:
		if !tranche.OverdueDate.Valid {
			tranche.OverdueDate = sql.NullTime{Time: now, Valid: true}
		}
	}
	tranche.Status = target
	return nil
}

// RecalculateInvestmentFunded re-sums the children onto the parent.
// From scratch each time, so it stays correct no matter which tranche
// changed, and calling it twice in a row is a no-op.
func (s *Service) RecalculateInvestmentFunded(ctx context.Context, investmentID string) (tranchedomain.InvestmentSummary, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return tranchedomain.InvestmentSummary{}, tranchedomain.ErrInvalidOrganization
	}

	id, err := s.parseID(investmentID, tranchedomain.ErrInvalidInvestment)
	if err != nil {
		return tranchedomain.InvestmentSummary{}, err
	}

	var investment *investmentdomain.Investment
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		investment, err = s.recalculateLocked(ctx, tx, orgID, id, s.clock.Now())
		return err
	}); err != nil {
		return tranchedomain.InvestmentSummary{}, err
	}

	return tranchedomain.InvestmentSummary{
		InvestmentID:     investment.ID.String(),
		CommitmentAmount: investment.CommitmentAmount,
		FundedAmount:     investment.FundedAmount,
		Status:           investment.Status,
	}, nil
}

func (s *Service) recalculateLocked(ctx context.Context, tx *gorm.DB, orgID, investmentID snowflake.ID, now time.Time) (*investmentdomain.Investment, error) {
	investment, err := s.investmentRepo.FindByIDForUpdate(ctx, tx, orgID, investmentID)
	if err != nil {
		return nil, err
	}
	if investment == nil {
		return nil, tranchedomain.ErrInvestmentNotFound
	}

	total, err := s.repo.SumFundedByInvestment(ctx, tx, orgID, investmentID)
	if err != nil {
		return nil, err
	}

	tranches, err := s.repo.ListByInvestment(ctx, tx, orgID, investmentID)
	if err != nil {
		return nil, err
	}

	settled := len(tranches) > 0
	for _, tranche := range tranches {
		if tranche.Status != tranchedomain.StatusFunded && tranche.Status != tranchedomain.StatusCancelled {
			settled = false
			break
		}
	}

	investment.FundedAmount = total
	if settled {
		investment.Status = investmentdomain.StatusFunded
	}
	investment.UpdatedAt = now

	if err := s.investmentRepo.UpdateFunded(ctx, tx, investment); err != nil {
		return nil, err
	}
	return investment, nil
}

// DetectOverdueTranches reports tranches past their scheduled date that
// are still SCHEDULED or CALLED. With autoMark, matches are flipped to
// OVERDUE in one batch write and the affected rows re-read.
func (s *Service) DetectOverdueTranches(ctx context.Context, fundID string, autoMark bool) ([]tranchedomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, tranchedomain.ErrInvalidOrganization
	}

	id, err := s.parseID(fundID, tranchedomain.ErrInvalidFund)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()

	if !autoMark {
		overdue, err := s.repo.ListOverdue(ctx, s.db, orgID, id, now)
		if err != nil {
			return nil, err
		}
		return toTranches(overdue), nil
	}

	var marked []tranchedomain.InvestmentTranche
	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		overdue, err := s.repo.ListOverdue(ctx, tx, orgID, id, now)
		if err != nil {
			return err
		}
		if len(overdue) == 0 {
			return nil
		}

		ids := make([]snowflake.ID, 0, len(overdue))
		for _, tranche := range overdue {
			ids = append(ids, tranche.ID)
		}
		if _, err := s.repo.MarkOverdue(ctx, tx, orgID, ids, now); err != nil {
			return err
		}

		marked = make([]tranchedomain.InvestmentTranche, 0, len(ids))
		for _, trancheID := range ids {
			tranche, err := s.repo.FindByID(ctx, tx, orgID, trancheID)
			if err != nil {
				return err
			}
			if tranche != nil && tranche.Status == tranchedomain.StatusOverdue {
				marked = append(marked, *tranche)
			}
		}
		return nil
	}); err != nil {
		return nil, err
	}

	if len(marked) > 0 {
		s.obsMetrics.RecordOverdueMarked(ctx, int64(len(marked)))
		s.audit(ctx, orgID, "tranche.overdue.marked", "fund", id.String(), map[string]any{
			"marked_count": len(marked),
		})
	}

	return toTranches(marked), nil
}

// GetFundTrancheStats aggregates the fund's whole schedule in one read.
func (s *Service) GetFundTrancheStats(ctx context.Context, fundID string) (tranchedomain.Stats, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return tranchedomain.Stats{}, tranchedomain.ErrInvalidOrganization
	}

	id, err := s.parseID(fundID, tranchedomain.ErrInvalidFund)
	if err != nil {
		return tranchedomain.Stats{}, err
	}

	tranches, err := s.repo.ListByFund(ctx, s.db, orgID, id)
	if err != nil {
		return tranchedomain.Stats{}, err
	}

	now := s.clock.Now()
	horizon := now.Add(upcomingWindow)

	stats := tranchedomain.Stats{
		FundID:   id.String(),
		ByStatus: make(map[string]tranchedomain.StatusStat),
	}

	for _, tranche := range tranches {
		stats.TotalTranches++
		stats.TotalScheduled += tranche.Amount
		stats.TotalFunded += tranche.FundedAmount

		entry := stats.ByStatus[tranche.Status]
		entry.Count++
		entry.Amount += tranche.Amount
		entry.FundedAmount += tranche.FundedAmount
		stats.ByStatus[tranche.Status] = entry

		open := tranche.Status != tranchedomain.StatusFunded && tranche.Status != tranchedomain.StatusCancelled
		if !open {
			continue
		}
		if tranche.ScheduledDate.Before(now) {
			stats.OverdueCount++
		} else if tranche.ScheduledDate.Before(horizon) {
			stats.UpcomingCount++
		}
	}

	return stats, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func (s *Service) audit(ctx context.Context, orgID snowflake.ID, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, action, targetType, &targetID, metadata)
}

func toTranches(tranches []tranchedomain.InvestmentTranche) []tranchedomain.Tranche {
	out := make([]tranchedomain.Tranche, 0, len(tranches))
	for _, tranche := range tranches {
		out = append(out, toTranche(tranche))
	}
	return out
}

func toTranche(tranche tranchedomain.InvestmentTranche) tranchedomain.Tranche {
	view := tranchedomain.Tranche{
		ID:            tranche.ID.String(),
		InvestmentID:  tranche.InvestmentID.String(),
		FundID:        tranche.FundID.String(),
		TrancheNumber: tranche.TrancheNumber,
		Amount:        tranche.Amount,
		FundedAmount:  tranche.FundedAmount,
		Status:        tranche.Status,
		ScheduledDate: tranche.ScheduledDate,
		Metadata:      tranche.Metadata,
		CreatedAt:     tranche.CreatedAt,
		UpdatedAt:     tranche.UpdatedAt,
	}
	if tranche.CalledDate.Valid {
		t := tranche.CalledDate.Time
		view.CalledDate = &t
	}
	if tranche.FundedDate.Valid {
		t := tranche.FundedDate.Time
		view.FundedDate = &t
	}
	if tranche.OverdueDate.Valid {
		t := tranche.OverdueDate.Time
		view.OverdueDate = &t
	}
	if tranche.CapitalCallID.Valid {
		v := tranche.CapitalCallID.String
		view.CapitalCallID = &v
	}
	if tranche.WireProofDocumentID.Valid {
		v := tranche.WireProofDocumentID.String
		view.WireProofDocumentID = &v
	}
	return view
}
