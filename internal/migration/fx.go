package migration

import (
	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/seed"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, node *snowflake.Node) error {
		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}

		if err := RunMigrations(sqlDB); err != nil {
			return err
		}

		return seed.EnsureChargeRates(conn, node)
	}),
)
