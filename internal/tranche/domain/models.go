// Package domain contains the capital-call schedule models and the
// status state machine for investment tranches.
package domain

import (
	"database/sql"
	"time"

	"github.com/bwmarrin/snowflake"
	"gorm.io/datatypes"
)

const (
	StatusScheduled       = "SCHEDULED"
	StatusCalled          = "CALLED"
	StatusPartiallyFunded = "PARTIALLY_FUNDED"
	StatusFunded          = "FUNDED"
	StatusOverdue         = "OVERDUE"
	StatusDefaulted       = "DEFAULTED"
	StatusCancelled       = "CANCELLED"
)

// allowedTransitions encodes the lifecycle state machine. FUNDED and
// CANCELLED are terminal. A default is cleared only by an explicit
// write-off to CANCELLED.
var allowedTransitions = map[string][]string{
	StatusScheduled:       {StatusCalled, StatusPartiallyFunded, StatusFunded, StatusOverdue, StatusCancelled},
	StatusCalled:          {StatusPartiallyFunded, StatusFunded, StatusOverdue, StatusCancelled},
	StatusPartiallyFunded: {StatusFunded, StatusOverdue, StatusCancelled},
	StatusFunded:          {},
	StatusOverdue:         {StatusPartiallyFunded, StatusFunded, StatusDefaulted, StatusCancelled},
	StatusDefaulted:       {StatusCancelled},
	StatusCancelled:       {},
}

func IsValidStatus(status string) bool {
	_, ok := allowedTransitions[status]
	return ok
}

func IsTransitionAllowed(from, to string) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// InvestmentTranche is one scheduled capital call within an
// investment's funding schedule. Rows are never deleted; CANCELLED is
// the voided terminal state. The date columns are written exactly once,
// by the transition that reaches the corresponding status.
type InvestmentTranche struct {
	ID                  snowflake.ID      `gorm:"primaryKey"`
	OrgID               snowflake.ID      `gorm:"not null;index"`
	InvestmentID        snowflake.ID      `gorm:"not null;index"`
	FundID              snowflake.ID      `gorm:"not null;index"`
	TrancheNumber       int               `gorm:"not null"`
	Amount              int64             `gorm:"not null"`
	FundedAmount        int64             `gorm:"not null;default:0"`
	Status              string            `gorm:"type:text;not null;default:'SCHEDULED'"`
	ScheduledDate       time.Time         `gorm:"not null"`
	CalledDate          sql.NullTime      `gorm:""`
	FundedDate          sql.NullTime      `gorm:""`
	OverdueDate         sql.NullTime      `gorm:""`
	CapitalCallID       sql.NullString    `gorm:"type:text"`
	WireProofDocumentID sql.NullString    `gorm:"type:text"`
	Metadata            datatypes.JSONMap `gorm:"type:jsonb"`
	CreatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
	UpdatedAt           time.Time         `gorm:"not null;default:CURRENT_TIMESTAMP"`
}

// TableName sets the database table name.
func (InvestmentTranche) TableName() string { return "investment_tranches" }
