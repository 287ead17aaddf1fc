package complianceperiod

import (
	"github.com/cleanbc/obps/internal/complianceperiod/service"
	"go.uber.org/fx"
)

var Module = fx.Module("complianceperiod.service",
	fx.Provide(service.New),
)
