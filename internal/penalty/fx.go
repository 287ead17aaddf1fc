package penalty

import (
	"github.com/cleanbc/obps/internal/penalty/repository"
	"github.com/cleanbc/obps/internal/penalty/service"
	"go.uber.org/fx"
)

var Module = fx.Module("penalty",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
