package service

import (
	"context"
	"strings"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/fundops/internal/audit/domain"
	"github.com/smallbiznis/fundops/internal/clock"
	funddomain "github.com/smallbiznis/fundops/internal/fund/domain"
	obsmetrics "github.com/smallbiznis/fundops/internal/observability/metrics"
	"github.com/smallbiznis/fundops/internal/orgcontext"
	pricingdomain "github.com/smallbiznis/fundops/internal/pricing/domain"
	"github.com/smallbiznis/fundops/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	genID    *snowflake.Node
	clock    clock.Clock
	repo     pricingdomain.Repository
	fundRepo funddomain.Repository

	auditSvc   auditdomain.Service
	obsMetrics *obsmetrics.Metrics
}

type Params struct {
	fx.In

	DB       *gorm.DB
	Log      *zap.Logger
	GenID    *snowflake.Node
	Clock    clock.Clock
	Repo     pricingdomain.Repository
	FundRepo funddomain.Repository

	AuditSvc   auditdomain.Service
	ObsMetrics *obsmetrics.Metrics `optional:"true"`
}

func NewService(p Params) pricingdomain.Service {
	return &Service{
		db:         p.DB,
		log:        p.Log.Named("pricing.service"),
		genID:      p.GenID,
		clock:      p.Clock,
		repo:       p.Repo,
		fundRepo:   p.FundRepo,
		auditSvc:   p.AuditSvc,
		obsMetrics: p.ObsMetrics,
	}
}

// CreateTranches installs the numbered tier ladder for a fund and opens
// tranche 1 for sale. A fund's ladder is written once: re-running setup
// against a fund that already has tiers is rejected.
func (s *Service) CreateTranches(ctx context.Context, req pricingdomain.CreateTranchesRequest) ([]pricingdomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, pricingdomain.ErrInvalidOrganization
	}

	fundID, err := s.parseID(req.FundID, pricingdomain.ErrInvalidFund)
	if err != nil {
		return nil, err
	}

	if len(req.Tranches) == 0 {
		return nil, pricingdomain.ErrInvalidTrancheSetup
	}
	for _, tranche := range req.Tranches {
		if tranche.PricePerUnit <= 0 || tranche.UnitsTotal <= 0 {
			return nil, pricingdomain.ErrInvalidTrancheSetup
		}
	}

	now := s.clock.Now()
	tiers := make([]pricingdomain.PricingTier, 0, len(req.Tranches))
	for i, tranche := range req.Tranches {
		tiers = append(tiers, pricingdomain.PricingTier{
			ID:             s.genID.Generate(),
			OrgID:          orgID,
			FundID:         fundID,
			TrancheNumber:  i + 1,
			Name:           strings.TrimSpace(tranche.Name),
			PricePerUnit:   tranche.PricePerUnit,
			UnitsTotal:     tranche.UnitsTotal,
			UnitsAvailable: tranche.UnitsTotal,
			IsActive:       i == 0,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		fund, err := s.fundRepo.FindByIDForUpdate(ctx, tx, orgID, fundID)
		if err != nil {
			return err
		}
		if fund == nil {
			return pricingdomain.ErrFundNotFound
		}

		existing, err := s.repo.CountByFund(ctx, tx, orgID, fundID)
		if err != nil {
			return err
		}
		if existing > 0 {
			return pricingdomain.ErrTranchesExist
		}

		if err := s.repo.InsertTiers(ctx, tx, tiers); err != nil {
			if db.IsDuplicateKeyErr(err) {
				return pricingdomain.ErrTranchesExist
			}
			return err
		}

		fund.MinimumInvestment = tiers[0].PricePerUnit
		fund.UpdatedAt = now
		return s.fundRepo.UpdateRaise(ctx, tx, fund)
	}); err != nil {
		return nil, err
	}

	s.auditTranchesCreated(ctx, orgID, fundID, len(tiers))

	out := make([]pricingdomain.Tranche, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, toTranche(tier))
	}
	return out, nil
}

// UpdateTranche edits a tier's terms. Price and capacity are locked the
// moment the first unit sells; only the display name stays editable.
func (s *Service) UpdateTranche(ctx context.Context, req pricingdomain.UpdateTrancheRequest) (pricingdomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return pricingdomain.Tranche{}, pricingdomain.ErrInvalidOrganization
	}

	fundID, err := s.parseID(req.FundID, pricingdomain.ErrInvalidFund)
	if err != nil {
		return pricingdomain.Tranche{}, err
	}
	trancheID, err := s.parseID(req.TrancheID, pricingdomain.ErrInvalidTranche)
	if err != nil {
		return pricingdomain.Tranche{}, err
	}
	if req.PricePerUnit != nil && *req.PricePerUnit <= 0 {
		return pricingdomain.Tranche{}, pricingdomain.ErrInvalidTrancheSetup
	}
	if req.UnitsTotal != nil && *req.UnitsTotal <= 0 {
		return pricingdomain.Tranche{}, pricingdomain.ErrInvalidTrancheSetup
	}

	var updated pricingdomain.PricingTier

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		tier, err := s.repo.FindByID(ctx, tx, orgID, trancheID)
		if err != nil {
			return err
		}
		if tier == nil || tier.FundID != fundID {
			return pricingdomain.ErrTrancheNotFound
		}

		termsChange := req.PricePerUnit != nil || req.UnitsTotal != nil
		if termsChange && tier.UnitsSold() > 0 {
			return pricingdomain.ErrTrancheLocked
		}

		if req.Name != nil {
			tier.Name = strings.TrimSpace(*req.Name)
		}
		if req.PricePerUnit != nil {
			tier.PricePerUnit = *req.PricePerUnit
		}
		if req.UnitsTotal != nil {
			tier.UnitsTotal = *req.UnitsTotal
			tier.UnitsAvailable = *req.UnitsTotal
		}
		tier.UpdatedAt = s.clock.Now()

		if err := s.repo.UpdateTier(ctx, tx, tier); err != nil {
			return err
		}

		if req.PricePerUnit != nil && tier.IsActive {
			fund, err := s.fundRepo.FindByIDForUpdate(ctx, tx, orgID, fundID)
			if err != nil {
				return err
			}
			if fund == nil {
				return pricingdomain.ErrFundNotFound
			}
			fund.MinimumInvestment = tier.PricePerUnit
			fund.UpdatedAt = tier.UpdatedAt
			if err := s.fundRepo.UpdateRaise(ctx, tx, fund); err != nil {
				return err
			}
		}

		updated = *tier
		return nil
	}); err != nil {
		return pricingdomain.Tranche{}, err
	}

	return toTranche(updated), nil
}

// GetActiveTranche returns the tranche currently open for purchase, or
// ErrNoActiveTranche when the fund is not open or fully sold out.
func (s *Service) GetActiveTranche(ctx context.Context, fundID string) (pricingdomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return pricingdomain.Tranche{}, pricingdomain.ErrInvalidOrganization
	}

	id, err := s.parseID(fundID, pricingdomain.ErrInvalidFund)
	if err != nil {
		return pricingdomain.Tranche{}, err
	}

	tier, err := s.repo.FindActiveByFund(ctx, s.db, orgID, id)
	if err != nil {
		return pricingdomain.Tranche{}, err
	}
	if tier == nil {
		return pricingdomain.Tranche{}, pricingdomain.ErrNoActiveTranche
	}

	return toTranche(*tier), nil
}

func (s *Service) GetAllTranches(ctx context.Context, fundID string) ([]pricingdomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return nil, pricingdomain.ErrInvalidOrganization
	}

	id, err := s.parseID(fundID, pricingdomain.ErrInvalidFund)
	if err != nil {
		return nil, err
	}

	tiers, err := s.repo.ListByFund(ctx, s.db, orgID, id)
	if err != nil {
		return nil, err
	}

	out := make([]pricingdomain.Tranche, 0, len(tiers))
	for _, tier := range tiers {
		out = append(out, toTranche(tier))
	}
	return out, nil
}

// QuotePurchase prices a prospective purchase against the active
// tranche. The quote is advisory: it reserves no capacity and can go
// stale the moment another purchase commits.
func (s *Service) QuotePurchase(ctx context.Context, req pricingdomain.QuotePurchaseRequest) (pricingdomain.Quote, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return pricingdomain.Quote{}, pricingdomain.ErrInvalidOrganization
	}

	fundID, err := s.parseID(req.FundID, pricingdomain.ErrInvalidFund)
	if err != nil {
		return pricingdomain.Quote{}, err
	}

	if req.UnitsRequested < 1 {
		return pricingdomain.Quote{}, pricingdomain.ErrInvalidUnitCount
	}

	tier, err := s.repo.FindActiveByFund(ctx, s.db, orgID, fundID)
	if err != nil {
		return pricingdomain.Quote{}, err
	}
	if tier == nil {
		return pricingdomain.Quote{}, pricingdomain.ErrNoActiveTranche
	}

	if req.UnitsRequested > tier.UnitsAvailable {
		return pricingdomain.Quote{}, pricingdomain.ErrInsufficientCapacity
	}

	return pricingdomain.Quote{
		FundID:              fundID.String(),
		TrancheID:           tier.ID.String(),
		TrancheNumber:       tier.TrancheNumber,
		UnitsRequested:      req.UnitsRequested,
		PricePerUnit:        tier.PricePerUnit,
		TotalAmount:         req.UnitsRequested * tier.PricePerUnit,
		UnitsRemainingAfter: tier.UnitsAvailable - req.UnitsRequested,
	}, nil
}

// ExecutePurchase consumes tranche capacity inside one transaction. The
// decrement is a conditional write, not read-then-write: when capacity
// ran out since the quote, the purchase fails with ErrCapacityConflict
// and the caller re-quotes. A tier that sells out auto-advances the
// fund to the next open tier and moves the fund's minimum investment to
// that tier's unit price. The fund's raised amount is recomputed from
// all tiers, never incremented in place.
func (s *Service) ExecutePurchase(ctx context.Context, req pricingdomain.ExecutePurchaseRequest) (pricingdomain.Tranche, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return pricingdomain.Tranche{}, pricingdomain.ErrInvalidOrganization
	}

	fundID, err := s.parseID(req.FundID, pricingdomain.ErrInvalidFund)
	if err != nil {
		return pricingdomain.Tranche{}, err
	}
	trancheID, err := s.parseID(req.TrancheID, pricingdomain.ErrInvalidTranche)
	if err != nil {
		return pricingdomain.Tranche{}, err
	}
	if req.UnitsPurchased < 1 {
		return pricingdomain.Tranche{}, pricingdomain.ErrInvalidUnitCount
	}

	var (
		updated  pricingdomain.PricingTier
		advanced bool
	)

	if err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		affected, err := s.repo.DecrementUnits(ctx, tx, orgID, trancheID, req.UnitsPurchased)
		if err != nil {
			return err
		}
		if affected == 0 {
			tier, err := s.repo.FindByID(ctx, tx, orgID, trancheID)
			if err != nil {
				return err
			}
			if tier == nil {
				return pricingdomain.ErrTrancheNotFound
			}
			return pricingdomain.ErrCapacityConflict
		}

		tier, err := s.repo.FindByID(ctx, tx, orgID, trancheID)
		if err != nil {
			return err
		}
		if tier == nil || tier.FundID != fundID {
			return pricingdomain.ErrTrancheNotFound
		}

		fund, err := s.fundRepo.FindByIDForUpdate(ctx, tx, orgID, fundID)
		if err != nil {
			return err
		}
		if fund == nil {
			return pricingdomain.ErrFundNotFound
		}

		if tier.UnitsAvailable <= 0 && tier.IsActive {
			if err := s.repo.SetActive(ctx, tx, orgID, tier.ID, false); err != nil {
				return err
			}
			tier.IsActive = false

			next, err := s.repo.FindNextOpenTier(ctx, tx, orgID, fundID, tier.TrancheNumber)
			if err != nil {
				return err
			}
			if next != nil {
				if err := s.repo.SetActive(ctx, tx, orgID, next.ID, true); err != nil {
					return err
				}
				fund.MinimumInvestment = next.PricePerUnit
				advanced = true
			}
		}

		raised, err := s.repo.SumRaised(ctx, tx, orgID, fundID)
		if err != nil {
			return err
		}
		fund.CurrentRaise = raised
		fund.UpdatedAt = s.clock.Now()
		if err := s.fundRepo.UpdateRaise(ctx, tx, fund); err != nil {
			return err
		}

		updated = *tier
		return nil
	}); err != nil {
		if err == pricingdomain.ErrCapacityConflict {
			s.obsMetrics.RecordCapacityConflict(ctx, fundID.String())
		}
		return pricingdomain.Tranche{}, err
	}

	s.obsMetrics.RecordPurchaseExecuted(ctx, fundID.String(), req.UnitsPurchased)
	if advanced {
		s.obsMetrics.RecordTrancheAdvance(ctx, fundID.String())
	}
	s.auditPurchaseExecuted(ctx, orgID, fundID, updated, req.UnitsPurchased)

	return toTranche(updated), nil
}

// GetFundProgress aggregates raise progress for dashboards. A fund with
// no tiers yields zeroed progress; a zero target yields percent 0.
func (s *Service) GetFundProgress(ctx context.Context, fundID string) (pricingdomain.Progress, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return pricingdomain.Progress{}, pricingdomain.ErrInvalidOrganization
	}

	id, err := s.parseID(fundID, pricingdomain.ErrInvalidFund)
	if err != nil {
		return pricingdomain.Progress{}, err
	}

	fund, err := s.fundRepo.FindByID(ctx, s.db, orgID, id)
	if err != nil {
		return pricingdomain.Progress{}, err
	}
	if fund == nil {
		return pricingdomain.Progress{}, pricingdomain.ErrFundNotFound
	}

	tiers, err := s.repo.ListByFund(ctx, s.db, orgID, id)
	if err != nil {
		return pricingdomain.Progress{}, err
	}

	progress := pricingdomain.Progress{
		FundID:      id.String(),
		TargetRaise: fund.TargetRaise,
		Tranches:    make([]pricingdomain.TrancheProgress, 0, len(tiers)),
	}

	for _, tier := range tiers {
		sold := tier.UnitsSold()
		percentSold := float64(0)
		if tier.UnitsTotal > 0 {
			percentSold = float64(sold) / float64(tier.UnitsTotal) * 100
		}

		entry := pricingdomain.TrancheProgress{
			TrancheID:      tier.ID.String(),
			TrancheNumber:  tier.TrancheNumber,
			Name:           tier.Name,
			PricePerUnit:   tier.PricePerUnit,
			UnitsTotal:     tier.UnitsTotal,
			UnitsSold:      sold,
			UnitsAvailable: tier.UnitsAvailable,
			PercentSold:    percentSold,
			IsActive:       tier.IsActive,
		}

		progress.TotalUnits += tier.UnitsTotal
		progress.UnitsSold += sold
		progress.CurrentRaise += sold * tier.PricePerUnit
		progress.Tranches = append(progress.Tranches, entry)

		if tier.IsActive && progress.ActiveTranche == nil {
			active := entry
			progress.ActiveTranche = &active
		}
	}

	if fund.TargetRaise > 0 {
		progress.PercentRaised = float64(progress.CurrentRaise) / float64(fund.TargetRaise) * 100
	}

	return progress, nil
}

func (s *Service) parseID(value string, invalidErr error) (snowflake.ID, error) {
	id, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || id == 0 {
		return 0, invalidErr
	}
	return id, nil
}

func (s *Service) auditPurchaseExecuted(ctx context.Context, orgID, fundID snowflake.ID, tier pricingdomain.PricingTier, units int64) {
	if s.auditSvc == nil {
		return
	}
	targetID := tier.ID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, "pricing.purchase.executed", "pricing_tier", &targetID, map[string]any{
		"fund_id":         fundID.String(),
		"tranche_number":  tier.TrancheNumber,
		"units_purchased": units,
		"units_available": tier.UnitsAvailable,
		"amount":          units * tier.PricePerUnit,
	})
}

func (s *Service) auditTranchesCreated(ctx context.Context, orgID, fundID snowflake.ID, count int) {
	if s.auditSvc == nil {
		return
	}
	targetID := fundID.String()
	_ = s.auditSvc.AuditLog(ctx, &orgID, "", nil, "pricing.tranches.created", "fund", &targetID, map[string]any{
		"tranche_count": count,
	})
}

func toTranche(tier pricingdomain.PricingTier) pricingdomain.Tranche {
	return pricingdomain.Tranche{
		ID:             tier.ID.String(),
		FundID:         tier.FundID.String(),
		TrancheNumber:  tier.TrancheNumber,
		Name:           tier.Name,
		PricePerUnit:   tier.PricePerUnit,
		UnitsTotal:     tier.UnitsTotal,
		UnitsAvailable: tier.UnitsAvailable,
		UnitsSold:      tier.UnitsSold(),
		IsActive:       tier.IsActive,
		CreatedAt:      tier.CreatedAt,
		UpdatedAt:      tier.UpdatedAt,
	}
}
