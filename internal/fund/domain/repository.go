package domain

import (
	"context"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, fund *Fund) error
	FindByID(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Fund, error)
	FindByIDForUpdate(ctx context.Context, db *gorm.DB, orgID, id snowflake.ID) (*Fund, error)
	UpdateRaise(ctx context.Context, db *gorm.DB, fund *Fund) error
}
