package compliancestatus

import (
	"github.com/cleanbc/obps/internal/compliancestatus/service"
	"go.uber.org/fx"
)

var Module = fx.Module("compliancestatus.service",
	fx.Provide(service.New),
)
