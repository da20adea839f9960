// Package scheduler runs the periodic overdue-detection sweep over
// every fund with an open capital-call schedule.
package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	auditdomain "github.com/smallbiznis/fundops/internal/audit/domain"
	"github.com/smallbiznis/fundops/internal/auditcontext"
	"github.com/smallbiznis/fundops/internal/clock"
	"github.com/smallbiznis/fundops/internal/joblock"
	"github.com/smallbiznis/fundops/internal/orgcontext"
	tranchedomain "github.com/smallbiznis/fundops/internal/tranche/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Job name for the cross-instance lock; joblock owns the key prefix.
const overdueSweepJob = "overdue_sweep"

var ErrInvalidConfig = errors.New("scheduler: invalid configuration")

type Params struct {
	fx.In

	DB         *gorm.DB
	Log        *zap.Logger
	TrancheSvc tranchedomain.Service
	Clock      clock.Clock

	Locker *joblock.Locker `optional:"true"`
	Config Config          `optional:"true"`
}

type Scheduler struct {
	db         *gorm.DB
	log        *zap.Logger
	cfg        Config
	clock      clock.Clock
	trancheSvc tranchedomain.Service
	locker     *joblock.Locker
}

type sweepTarget struct {
	OrgID  int64
	FundID int64
}

func New(p Params) (*Scheduler, error) {
	if p.DB == nil || p.Log == nil || p.TrancheSvc == nil || p.Clock == nil {
		return nil, ErrInvalidConfig
	}
	return &Scheduler{
		db:         p.DB,
		log:        p.Log.Named("scheduler").With(zap.String("component", "scheduler")),
		cfg:        p.Config.withDefaults(),
		clock:      p.Clock,
		trancheSvc: p.TrancheSvc,
		locker:     p.Locker,
	}, nil
}

// RunOnce performs a single sweep. Exported so tests and one-shot
// invocations drive the job without the ticker loop.
func (s *Scheduler) RunOnce(parent context.Context) error {
	ctx, cancel := context.WithTimeout(parent, s.cfg.JobTimeout)
	defer cancel()

	ctx = auditcontext.WithActor(ctx, string(auditdomain.ActorTypeSystem), "scheduler")

	if s.locker != nil {
		token, acquired, err := s.locker.TryLock(ctx, overdueSweepJob, s.cfg.LockTTL)
		if err != nil {
			s.log.Warn("overdue sweep lock unavailable, skipping run", zap.Error(err))
			return nil
		}
		if !acquired {
			s.log.Debug("overdue sweep held elsewhere, skipping run")
			return nil
		}
		defer func() {
			if err := s.locker.Release(context.WithoutCancel(ctx), overdueSweepJob, token); err != nil {
				s.log.Warn("failed to release overdue sweep lock", zap.Error(err))
			}
		}()
	}

	targets, err := s.fetchSweepTargets(ctx)
	if err != nil {
		return err
	}

	var errs error
	for _, target := range targets {
		orgCtx := orgcontext.WithOrgID(ctx, target.OrgID)
		marked, err := s.trancheSvc.DetectOverdueTranches(orgCtx, formatID(target.FundID), true)
		if err != nil {
			s.log.Warn("overdue sweep failed for fund",
				zap.Int64("org_id", target.OrgID),
				zap.Int64("fund_id", target.FundID),
				zap.Error(err),
			)
			errs = errors.Join(errs, err)
			continue
		}
		if len(marked) > 0 {
			s.log.Info("marked overdue tranches",
				zap.Int64("org_id", target.OrgID),
				zap.Int64("fund_id", target.FundID),
				zap.Int("count", len(marked)),
			)
		}
	}
	return errs
}

func (s *Scheduler) RunForever(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.RunInterval)
	defer ticker.Stop()

	for {
		if err := s.RunOnce(ctx); err != nil {
			s.log.Warn("overdue sweep run failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func formatID(id int64) string {
	return snowflake.ID(id).String()
}

// fetchSweepTargets returns the funds that still have past-due
// SCHEDULED or CALLED tranches, across all tenants.
func (s *Scheduler) fetchSweepTargets(ctx context.Context) ([]sweepTarget, error) {
	var targets []sweepTarget
	err := s.db.WithContext(ctx).Raw(
		`SELECT DISTINCT org_id, fund_id
		 FROM investment_tranches
		 WHERE scheduled_date < ? AND status IN (?, ?)
		 ORDER BY org_id, fund_id`,
		s.clock.Now(),
		tranchedomain.StatusScheduled,
		tranchedomain.StatusCalled,
	).Scan(&targets).Error
	if err != nil {
		return nil, err
	}
	return targets, nil
}
