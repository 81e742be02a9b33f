package migration

import (
	"github.com/smallbiznis/docflow/internal/config"
	documentdomain "github.com/smallbiznis/docflow/internal/document/domain"
	ingestiondomain "github.com/smallbiznis/docflow/internal/ingestion/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg config.Config, log *zap.Logger) error {
		if cfg.DBType != "postgres" {
			log.Info("applying schema with gorm automigrate", zap.String("type", cfg.DBType))
			return AutoMigrate(conn)
		}

		sqlDB, err := conn.DB()
		if err != nil {
			return err
		}
		return RunMigrations(sqlDB)
	}),
)

// Models lists every persisted type in dependency order.
func Models() []any {
	return []any{
		&documentdomain.Document{},
		&documentdomain.LineItem{},
		&documentdomain.ProcessingAttempt{},
		&ingestiondomain.EmailSettings{},
	}
}

// AutoMigrate creates the schema on databases the SQL migrations do not target.
func AutoMigrate(conn *gorm.DB) error {
	return conn.AutoMigrate(Models()...)
}
