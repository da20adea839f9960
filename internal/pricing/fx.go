package pricing

import (
	"github.com/smallbiznis/fundops/internal/pricing/repository"
	"github.com/smallbiznis/fundops/internal/pricing/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricing.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
