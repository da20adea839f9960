package domain

import (
	"context"
	"errors"

	"github.com/smallbiznis/fundops/pkg/db/pagination"
)

type ListFundRequest struct {
	pagination.Pagination
}

type ListFundResponse struct {
	pagination.PageInfo
	Funds []Fund `json:"funds"`
}

type Service interface {
	GetByID(ctx context.Context, id string) (Fund, error)
	List(ctx context.Context, req ListFundRequest) (ListFundResponse, error)
}

var (
	ErrInvalidOrganization = errors.New("invalid_organization")
	ErrInvalidFund         = errors.New("invalid_fund")
	ErrFundNotFound        = errors.New("fund_not_found")
)
