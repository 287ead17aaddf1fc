package compliancereport

import (
	"github.com/cleanbc/obps/internal/compliancereport/repository"
	"github.com/cleanbc/obps/internal/compliancereport/service"
	"go.uber.org/fx"
)

var Module = fx.Module("compliancereport.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
