package fund

import (
	"github.com/smallbiznis/fundops/internal/fund/repository"
	"github.com/smallbiznis/fundops/internal/fund/service"
	"go.uber.org/fx"
)

var Module = fx.Module("fund.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
