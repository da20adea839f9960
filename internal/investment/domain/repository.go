package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, investment *Investment) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Investment, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Investment, error)
	ListByFund(ctx context.Context, db *gorm.DB, orgID, fundID snowflake.ID) ([]Investment, error)
	UpdateFunded(ctx context.Context, db *gorm.DB, investment *Investment) error
}
