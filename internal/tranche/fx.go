package tranche

import (
	"github.com/smallbiznis/fundops/internal/tranche/repository"
	"github.com/smallbiznis/fundops/internal/tranche/service"
	"go.uber.org/fx"
)

var Module = fx.Module("tranche.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
