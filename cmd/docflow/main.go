package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/docflow/internal/clock"
	"github.com/smallbiznis/docflow/internal/config"
	"github.com/smallbiznis/docflow/internal/document"
	"github.com/smallbiznis/docflow/internal/extraction"
	"github.com/smallbiznis/docflow/internal/ingestion"
	"github.com/smallbiznis/docflow/internal/lock"
	"github.com/smallbiznis/docflow/internal/migration"
	"github.com/smallbiznis/docflow/internal/observability"
	"github.com/smallbiznis/docflow/internal/processing"
	redisprovider "github.com/smallbiznis/docflow/internal/providers/redis"
	"github.com/smallbiznis/docflow/internal/providers/storage"
	"github.com/smallbiznis/docflow/internal/providers/understanding"
	"github.com/smallbiznis/docflow/internal/ratelimit"
	"github.com/smallbiznis/docflow/internal/server"
	"github.com/smallbiznis/docflow/internal/validation"
	"github.com/smallbiznis/docflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		redisprovider.Module,
		lock.Module,
		ratelimit.Module,
		storage.Module,
		understanding.Module,

		// Functional Domains
		document.Module,
		extraction.Module,
		validation.Module,
		processing.Module,
		ingestion.Module,

		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}
