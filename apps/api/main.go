package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/cleanbc/obps/internal/adjustment"
	"github.com/cleanbc/obps/internal/bccr"
	"github.com/cleanbc/obps/internal/clock"
	"github.com/cleanbc/obps/internal/complianceperiod"
	"github.com/cleanbc/obps/internal/compliancereport"
	"github.com/cleanbc/obps/internal/compliancestatus"
	"github.com/cleanbc/obps/internal/config"
	"github.com/cleanbc/obps/internal/earnedcredit"
	elicensingapi "github.com/cleanbc/obps/internal/elicensing/api"
	"github.com/cleanbc/obps/internal/elicensing/clientsync"
	"github.com/cleanbc/obps/internal/elicensing/integration"
	elicensinginvoice "github.com/cleanbc/obps/internal/elicensing/invoice"
	"github.com/cleanbc/obps/internal/logger"
	"github.com/cleanbc/obps/internal/manualhandling"
	"github.com/cleanbc/obps/internal/migration"
	"github.com/cleanbc/obps/internal/obligation"
	"github.com/cleanbc/obps/internal/penalty"
	"github.com/cleanbc/obps/internal/providers"
	"github.com/cleanbc/obps/internal/registry"
	"github.com/cleanbc/obps/internal/server"
	"github.com/cleanbc/obps/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		logger.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		registry.Module,
		complianceperiod.Module,
		compliancereport.Module,
		obligation.Module,
		earnedcredit.Module,
		penalty.Module,
		compliancestatus.Module,
		adjustment.Module,
		manualhandling.Module,

		elicensingapi.Module,
		clientsync.Module,
		elicensinginvoice.Module,
		integration.Module,
		bccr.Module,

		providers.Module,

		server.Module,
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
