package domain

import (
	"context"
	"errors"
	"time"
)

type ScheduleInstallment struct {
	Amount        int64     `json:"amount"`
	ScheduledDate time.Time `json:"scheduled_date"`
}

type CreateScheduleRequest struct {
	InvestmentID string                `json:"investment_id"`
	Installments []ScheduleInstallment `json:"installments"`
}

// TransitionRequest carries the target status plus the optional
// side-channel fields individual statuses consume.
type TransitionRequest struct {
	TrancheID           string  `json:"tranche_id"`
	NewStatus           string  `json:"new_status"`
	FundedAmount        *int64  `json:"funded_amount,omitempty"`
	CapitalCallID       *string `json:"capital_call_id,omitempty"`
	WireProofDocumentID *string `json:"wire_proof_document_id,omitempty"`
}

// Tranche is the API view of an investment tranche.
type Tranche struct {
	ID                  string         `json:"id"`
	InvestmentID        string         `json:"investment_id"`
	FundID              string         `json:"fund_id"`
	TrancheNumber       int            `json:"tranche_number"`
	Amount              int64          `json:"amount"`
	FundedAmount        int64          `json:"funded_amount"`
	Status              string         `json:"status"`
	ScheduledDate       time.Time      `json:"scheduled_date"`
	CalledDate          *time.Time     `json:"called_date,omitempty"`
	FundedDate          *time.Time     `json:"funded_date,omitempty"`
	OverdueDate         *time.Time     `json:"overdue_date,omitempty"`
	CapitalCallID       *string        `json:"capital_call_id,omitempty"`
	WireProofDocumentID *string        `json:"wire_proof_document_id,omitempty"`
	Metadata            map[string]any `json:"metadata,omitempty"`
	CreatedAt           time.Time      `json:"created_at"`
	UpdatedAt           time.Time      `json:"updated_at"`
}

// TransitionResult reports the outcome of a requested transition. An
// invalid edge still produces a populated result so batch callers can
// report the rejected pair without aborting the run.
type TransitionResult struct {
	Allowed         bool    `json:"allowed"`
	CurrentStatus   string  `json:"current_status"`
	RequestedStatus string  `json:"requested_status"`
	Tranche         Tranche `json:"tranche"`
}

// InvestmentSummary is the parent aggregate after a recalculation.
type InvestmentSummary struct {
	InvestmentID     string `json:"investment_id"`
	CommitmentAmount int64  `json:"commitment_amount"`
	FundedAmount     int64  `json:"funded_amount"`
	Status           string `json:"status"`
}

type StatusStat struct {
	Count        int64 `json:"count"`
	Amount       int64 `json:"amount"`
	FundedAmount int64 `json:"funded_amount"`
}

// Stats aggregates a fund's full capital-call schedule. Upcoming counts
// tranches due within 30 days; Overdue is computed point-in-time from
// scheduled_date and may differ from the persisted OVERDUE status.
type Stats struct {
	FundID         string                `json:"fund_id"`
	TotalTranches  int64                 `json:"total_tranches"`
	TotalScheduled int64                 `json:"total_scheduled"`
	TotalFunded    int64                 `json:"total_funded"`
	ByStatus       map[string]StatusStat `json:"by_status"`
	UpcomingCount  int64                 `json:"upcoming_count"`
	OverdueCount   int64                 `json:"overdue_count"`
}

type Service interface {
	CreateSchedule(ctx context.Context, req CreateScheduleRequest) ([]Tranche, error)
	GetInvestmentTranches(ctx context.Context, investmentID string) ([]Tranche, error)
	GetTranche(ctx context.Context, trancheID string) (Tranche, error)
	GetFundTranches(ctx context.Context, fundID string) ([]Tranche, error)
	TransitionTrancheStatus(ctx context.Context, req TransitionRequest) (TransitionResult, error)
	RecalculateInvestmentFunded(ctx context.Context, investmentID string) (InvestmentSummary, error)
	DetectOverdueTranches(ctx context.Context, fundID string, autoMark bool) ([]Tranche, error)
	GetFundTrancheStats(ctx context.Context, fundID string) (Stats, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidInvestment   = errors.New("invalid_investment")
	ErrInvalidTranche      = errors.New("invalid_tranche")
	ErrInvalidFund         = errors.New("invalid_fund")
	ErrInvalidStatus       = errors.New("invalid_status")
	ErrInvalidTransition   = errors.New("invalid_transition")
	// ErrInvalidFundedAmount rejects a funded amount outside
	// 0 < amount funded < amount due for PARTIALLY_FUNDED, or above
	// the amount due for FUNDED.
	ErrInvalidFundedAmount = errors.New("invalid_funded_amount")
	ErrInvalidSchedule     = errors.New("invalid_schedule")
	// ErrScheduleMismatch means the installment amounts do not sum to
	// the investment's commitment.
	ErrScheduleMismatch   = errors.New("schedule_mismatch")
	ErrScheduleExists     = errors.New("schedule_exists")
	ErrInvestmentNotFound = errors.New("investment_not_found")
	ErrTrancheNotFound    = errors.New("tranche_not_found")
)
