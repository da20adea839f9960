// Package domain contains persistence models for investor commitments.
package domain

import (
	"time"

	"github.com/bwmarrin/snowflake"
)

const (
	StatusPending   = "PENDING"
	StatusActive    = "ACTIVE"
	StatusFunded    = "FUNDED"
	StatusCancelled = "CANCELLED"
)

// Investment is one investor's commitment to a fund. FundedAmount is
// derived: it always equals the sum of funded_amount across the
// investment's scheduled tranches and is recomputed, never incremented.
type Investment struct {
	ID               snowflake.ID `gorm:"primaryKey"`
	OrgID            snowflake.ID `gorm:"not null;index"`
	FundID           snowflake.ID `gorm:"not null;index"`
	InvestorID       string       `gorm:"type:text;not null"`
	CommitmentAmount int64        `gorm:"not null"`
	FundedAmount     int64        `gorm:"not null;default:0"`
	Currency         string       `gorm:"type:text;not null"`
	Status           string       `gorm:"type:text;not null;default:'PENDING'"`
	CreatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt        time.Time    `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (Investment) TableName() string { return "investments" }
