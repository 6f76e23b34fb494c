package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/placehub/placehub/internal/clock"
	"github.com/placehub/placehub/internal/migration"
	"github.com/placehub/placehub/internal/observability"
	"github.com/placehub/placehub/internal/scheduler"
	"github.com/placehub/placehub/internal/server"
	"github.com/placehub/placehub/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// HTTP surface plus every domain module it serves
		server.Module,

		// Background sweeps and schema bootstrap
		scheduler.Module,
		migration.Module,
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
