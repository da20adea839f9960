package migration

import (
	"github.com/smallbiznis/fundops/internal/config"
	"github.com/smallbiznis/fundops/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config) error {
		// Embedded migrations target postgres; sqlite test databases
		// create their schema inline.
		if conn.Dialector.Name() == "postgres" {
			sqlDB, err := conn.DB()
			if err != nil {
				return err
			}
			if err := RunMigrations(sqlDB); err != nil {
				return err
			}
		}

		if cfg.DefaultOrgID != 0 {
			return seed.EnsureDefaultOrgWithID(conn, cfg.DefaultOrgID)
		}
		return seed.EnsureDefaultOrg(conn)
	}),
)
