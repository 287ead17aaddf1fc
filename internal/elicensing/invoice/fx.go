package invoice

import (
	"github.com/cleanbc/obps/internal/elicensing/invoice/repository"
	"github.com/cleanbc/obps/internal/elicensing/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("elicensing.invoice",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
