package integration

import (
	"github.com/cleanbc/obps/internal/elicensing/integration/domain"
	"github.com/cleanbc/obps/internal/elicensing/integration/repository"
	"github.com/cleanbc/obps/internal/elicensing/integration/service"
	obligationdomain "github.com/cleanbc/obps/internal/obligation/domain"
	"go.uber.org/fx"
)

var Module = fx.Module("elicensing.integration",
	fx.Provide(
		repository.Provide,
		service.New,
		func(s domain.Service) obligationdomain.IntegrationEnqueuer { return s },
	),
)
