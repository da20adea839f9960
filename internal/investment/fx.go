package investment

import (
	"github.com/smallbiznis/fundops/internal/investment/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("investment",
	fx.Provide(repository.Provide),
)
