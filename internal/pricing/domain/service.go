package domain

import (
	"context"
	"errors"
	"time"
)

type CreateTrancheRequest struct {
	Name         string `json:"name"`
	PricePerUnit int64  `json:"price_per_unit"`
	UnitsTotal   int64  `json:"units_total"`
}

type CreateTranchesRequest struct {
	FundID   string                 `json:"fund_id"`
	Tranches []CreateTrancheRequest `json:"tranches"`
}

// UpdateTrancheRequest edits a tier's terms. Pointer fields are
// optional; nil leaves the column untouched.
type UpdateTrancheRequest struct {
	FundID       string  `json:"fund_id"`
	TrancheID    string  `json:"tranche_id"`
	Name         *string `json:"name,omitempty"`
	PricePerUnit *int64  `json:"price_per_unit,omitempty"`
	UnitsTotal   *int64  `json:"units_total,omitempty"`
}

type QuotePurchaseRequest struct {
	FundID         string `json:"fund_id"`
	UnitsRequested int64  `json:"units_requested"`
}

type ExecutePurchaseRequest struct {
	FundID         string `json:"fund_id"`
	TrancheID      string `json:"tranche_id"`
	UnitsPurchased int64  `json:"units_purchased"`
}

// Tranche is the API view of a pricing tier.
type Tranche struct {
	ID             string    `json:"id"`
	FundID         string    `json:"fund_id"`
	TrancheNumber  int       `json:"tranche_number"`
	Name           string    `json:"name,omitempty"`
	PricePerUnit   int64     `json:"price_per_unit"`
	UnitsTotal     int64     `json:"units_total"`
	UnitsAvailable int64     `json:"units_available"`
	UnitsSold      int64     `json:"units_sold"`
	IsActive       bool      `json:"is_active"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// Quote is an advisory purchase price. It reserves nothing: capacity is
// only guaranteed at execution time, inside the purchase transaction.
type Quote struct {
	FundID              string `json:"fund_id"`
	TrancheID           string `json:"tranche_id"`
	TrancheNumber       int    `json:"tranche_number"`
	UnitsRequested      int64  `json:"units_requested"`
	PricePerUnit        int64  `json:"price_per_unit"`
	TotalAmount         int64  `json:"total_amount"`
	UnitsRemainingAfter int64  `json:"units_remaining_after"`
}

type TrancheProgress struct {
	TrancheID      string  `json:"tranche_id"`
	TrancheNumber  int     `json:"tranche_number"`
	Name           string  `json:"name,omitempty"`
	PricePerUnit   int64   `json:"price_per_unit"`
	UnitsTotal     int64   `json:"units_total"`
	UnitsSold      int64   `json:"units_sold"`
	UnitsAvailable int64   `json:"units_available"`
	PercentSold    float64 `json:"percent_sold"`
	IsActive       bool    `json:"is_active"`
}

type Progress struct {
	FundID        string            `json:"fund_id"`
	TargetRaise   int64             `json:"target_raise"`
	CurrentRaise  int64             `json:"current_raise"`
	PercentRaised float64           `json:"percent_raised"`
	TotalUnits    int64             `json:"total_units"`
	UnitsSold     int64             `json:"units_sold"`
	ActiveTranche *TrancheProgress  `json:"active_tranche,omitempty"`
	Tranches      []TrancheProgress `json:"tranches"`
}

type Service interface {
	CreateTranches(ctx context.Context, req CreateTranchesRequest) ([]Tranche, error)
	UpdateTranche(ctx context.Context, req UpdateTrancheRequest) (Tranche, error)
	GetActiveTranche(ctx context.Context, fundID string) (Tranche, error)
	GetAllTranches(ctx context.Context, fundID string) ([]Tranche, error)
	QuotePurchase(ctx context.Context, req QuotePurchaseRequest) (Quote, error)
	ExecutePurchase(ctx context.Context, req ExecutePurchaseRequest) (Tranche, error)
	GetFundProgress(ctx context.Context, fundID string) (Progress, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidFund         = errors.New("invalid_fund")
	ErrInvalidTranche      = errors.New("invalid_tranche")
	ErrInvalidUnitCount    = errors.New("invalid_unit_count")
	ErrInvalidTrancheSetup = errors.New("invalid_tranche_setup")
	ErrFundNotFound        = errors.New("fund_not_found")
	ErrTrancheNotFound     = errors.New("tranche_not_found")
	ErrNoActiveTranche     = errors.New("no_active_tranche")
	// ErrInsufficientCapacity rejects a quote whose request exceeds the
	// active tranche's remaining units. Purchases never split across
	// tranches, even when combined capacity would cover the request.
	ErrInsufficientCapacity = errors.New("insufficient_capacity")
	// ErrCapacityConflict means capacity ran out between quote and
	// execute. It is retriable: re-quote and try again.
	ErrCapacityConflict = errors.New("capacity_conflict")
	ErrTranchesExist    = errors.New("tranches_exist")
	// ErrTrancheLocked blocks price or size edits once any unit of the
	// tier has sold. Renames stay allowed.
	ErrTrancheLocked = errors.New("tranche_locked")
)
