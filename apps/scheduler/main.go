package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/fundops/internal/audit"
	"github.com/smallbiznis/fundops/internal/clock"
	"github.com/smallbiznis/fundops/internal/config"
	"github.com/smallbiznis/fundops/internal/investment"
	"github.com/smallbiznis/fundops/internal/joblock"
	"github.com/smallbiznis/fundops/internal/logger"
	"github.com/smallbiznis/fundops/internal/observability"
	"github.com/smallbiznis/fundops/internal/scheduler"
	"github.com/smallbiznis/fundops/internal/tranche"
	"github.com/smallbiznis/fundops/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		joblock.Module,

		// Domain services required by the overdue sweep.
		tranche.Module,
		investment.Module,
		audit.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
