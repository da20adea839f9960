package service

import (
	"context"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	funddomain "github.com/smallbiznis/fundops/internal/fund/domain"
	"github.com/smallbiznis/fundops/internal/orgcontext"
	"github.com/smallbiznis/fundops/pkg/db/option"
	"github.com/smallbiznis/fundops/pkg/db/pagination"
	"github.com/smallbiznis/fundops/pkg/repository"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db  *gorm.DB
	log *zap.Logger

	repo      funddomain.Repository
	fundStore repository.Repository[funddomain.Fund]
}

type Params struct {
	fx.In

	DB   *gorm.DB
	Log  *zap.Logger
	Repo funddomain.Repository
}

func NewService(p Params) funddomain.Service {
	return &Service{
		db:        p.DB,
		log:       p.Log.Named("fund.service"),
		repo:      p.Repo,
		fundStore: repository.ProvideStore[funddomain.Fund](p.DB),
	}
}

func (s *Service) GetByID(ctx context.Context, id string) (funddomain.Fund, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return funddomain.Fund{}, funddomain.ErrInvalidOrganization
	}

	fundID, err := snowflake.ParseString(strings.TrimSpace(id))
	if err != nil || fundID == 0 {
		return funddomain.Fund{}, funddomain.ErrInvalidFund
	}

	fund, err := s.repo.FindByID(ctx, s.db, orgID, fundID)
	if err != nil {
		return funddomain.Fund{}, err
	}
	if fund == nil {
		return funddomain.Fund{}, funddomain.ErrFundNotFound
	}

	return *fund, nil
}

func (s *Service) List(ctx context.Context, req funddomain.ListFundRequest) (funddomain.ListFundResponse, error) {
	orgID, ok := orgcontext.OrgIDFromContext(ctx)
	if !ok || orgID == 0 {
		return funddomain.ListFundResponse{}, funddomain.ErrInvalidOrganization
	}

	pageSize := req.PageSize
	if pageSize <= 0 {
		pageSize = 50
	}

	filter := &funddomain.Fund{OrgID: orgID}
	items, err := s.fundStore.Find(ctx, filter,
		option.ApplyPagination(pagination.Pagination{
			PageToken: req.PageToken,
			PageSize:  pageSize,
		}),
		option.WithSortBy("created_at desc"),
	)
	if err != nil {
		return funddomain.ListFundResponse{}, err
	}

	pageInfo := pagination.BuildCursorPageInfo(items, int32(pageSize), func(item *funddomain.Fund) string {
		token, err := pagination.EncodeCursor(pagination.Cursor{
			ID:        item.ID.String(),
			CreatedAt: item.CreatedAt.Format(time.RFC3339),
		})
		if err != nil {
			return ""
		}
		return token
	})
	if pageInfo != nil && pageInfo.HasMore && len(items) > pageSize {
		items = items[:pageSize]
	}

	funds := make([]funddomain.Fund, 0, len(items))
	for _, item := range items {
		if item == nil {
			continue
		}
		funds = append(funds, *item)
	}

	resp := funddomain.ListFundResponse{Funds: funds}
	if pageInfo != nil {
		resp.PageInfo = *pageInfo
	}

	return resp, nil
}
