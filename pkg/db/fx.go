package db

import (
	"github.com/cleanbc/obps/internal/config"
	"go.uber.org/fx"
	"gorm.io/gorm"
)

func provide(appCfg config.Config) (*gorm.DB, error) {
	return Open(Config{
		Type:            appCfg.DBType,
		Host:            appCfg.DBHost,
		Port:            appCfg.DBPort,
		Name:            appCfg.DBName,
		User:            appCfg.DBUser,
		Password:        appCfg.DBPassword,
		SSLMode:         appCfg.DBSSLMode,
		MaxIdleConn:     appCfg.DBMaxIdleConn,
		MaxOpenConn:     appCfg.DBMaxOpenConn,
		ConnMaxLifetime: appCfg.DBConnMaxLifetime,
	})
}

// Module wires the shared gorm handle.
var Module = fx.Module("db",
	fx.Provide(provide),
)
