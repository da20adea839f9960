package service

import (
	"context"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/glebarez/sqlite"
	funddomain "github.com/smallbiznis/fundops/internal/fund/domain"
	fundrepo "github.com/smallbiznis/fundops/internal/fund/repository"
	"github.com/smallbiznis/fundops/internal/orgcontext"
	"github.com/smallbiznis/fundops/pkg/db/pagination"
	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func setupFundDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open("file:"+t.Name()+"?mode=memory&cache=shared"), &gorm.Config{})
	assert.NoError(t, err)

	db.Exec(`CREATE TABLE IF NOT EXISTS funds (
		id BIGINT PRIMARY KEY,
		org_id BIGINT NOT NULL,
		name TEXT NOT NULL,
		currency TEXT NOT NULL,
		target_raise BIGINT NOT NULL DEFAULT 0,
		current_raise BIGINT NOT NULL DEFAULT 0,
		minimum_investment BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMP NOT NULL,
		updated_at TIMESTAMP NOT NULL
	)`)

	return db
}

func newFundService(db *gorm.DB) funddomain.Service {
	return NewService(Params{
		DB:   db,
		Log:  zap.NewNop(),
		Repo: fundrepo.Provide(),
	})
}

func seedFunds(t *testing.T, db *gorm.DB, node *snowflake.Node, orgID snowflake.ID, count int) []*funddomain.Fund {
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	funds := make([]*funddomain.Fund, 0, count)
	for i := 0; i < count; i++ {
		at := base.Add(time.Duration(i) * time.Hour)
		fund := &funddomain.Fund{
			ID:          node.Generate(),
			OrgID:       orgID,
			Name:        "Growth Fund",
			Currency:    "USD",
			TargetRaise: 1000000,
			CreatedAt:   at,
			UpdatedAt:   at,
		}
		assert.NoError(t, fundrepo.Provide().Insert(context.Background(), db, fund))
		funds = append(funds, fund)
	}
	return funds
}

func TestGetByID(t *testing.T) {
	db := setupFundDB(t)
	node, _ := snowflake.NewNode(30)
	svc := newFundService(db)

	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	funds := seedFunds(t, db, node, orgID, 1)

	t.Run("Found", func(t *testing.T) {
		fund, err := svc.GetByID(ctx, funds[0].ID.String())
		assert.NoError(t, err)
		assert.Equal(t, funds[0].ID, fund.ID)
		assert.Equal(t, int64(1000000), fund.TargetRaise)
	})

	t.Run("Not Found", func(t *testing.T) {
		_, err := svc.GetByID(ctx, node.Generate().String())
		assert.Equal(t, funddomain.ErrFundNotFound, err)
	})

	t.Run("Other Org Cannot See It", func(t *testing.T) {
		otherCtx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
		_, err := svc.GetByID(otherCtx, funds[0].ID.String())
		assert.Equal(t, funddomain.ErrFundNotFound, err)
	})

	t.Run("Missing Org", func(t *testing.T) {
		_, err := svc.GetByID(context.Background(), funds[0].ID.String())
		assert.Equal(t, funddomain.ErrInvalidOrganization, err)
	})

	t.Run("Malformed ID", func(t *testing.T) {
		_, err := svc.GetByID(ctx, "not-an-id")
		assert.Equal(t, funddomain.ErrInvalidFund, err)
	})
}

func TestList(t *testing.T) {
	db := setupFundDB(t)
	node, _ := snowflake.NewNode(31)
	svc := newFundService(db)

	orgID := node.Generate()
	ctx := orgcontext.WithOrgID(context.Background(), int64(orgID))
	seedFunds(t, db, node, orgID, 3)

	t.Run("First Page", func(t *testing.T) {
		resp, err := svc.List(ctx, funddomain.ListFundRequest{
			Pagination: pagination.Pagination{PageSize: 2},
		})
		assert.NoError(t, err)
		assert.Len(t, resp.Funds, 2)
		assert.True(t, resp.HasMore)
		assert.NotEmpty(t, resp.NextPageToken)

		// Newest first
		assert.True(t, resp.Funds[0].CreatedAt.After(resp.Funds[1].CreatedAt))

		next, err := svc.List(ctx, funddomain.ListFundRequest{
			Pagination: pagination.Pagination{PageSize: 2, PageToken: resp.NextPageToken},
		})
		assert.NoError(t, err)
		assert.Len(t, next.Funds, 1)
		assert.False(t, next.HasMore)
	})

	t.Run("Empty For Other Org", func(t *testing.T) {
		otherCtx := orgcontext.WithOrgID(context.Background(), int64(node.Generate()))
		resp, err := svc.List(otherCtx, funddomain.ListFundRequest{})
		assert.NoError(t, err)
		assert.Empty(t, resp.Funds)
	})
}
