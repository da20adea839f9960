package domain

import (
	"context"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
)

// AuditCursor is the keyset position for audit log pagination.
type AuditCursor struct {
	CreatedAt time.Time
	ID        snowflake.ID
}

type ListFilter struct {
	Action     string
	TargetType string
	TargetID   string
	ActorType  string
	StartAt    *time.Time
	EndAt      *time.Time
	Limit      int
	Cursor     *AuditCursor
}

type Repository interface {
	Insert(ctx context.Context, db *gorm.DB, entry *AuditLog) error
	List(ctx context.Context, db *gorm.DB, orgID snowflake.ID, filter ListFilter) ([]AuditLog, error)
}
