package obligation

import (
	"github.com/cleanbc/obps/internal/obligation/repository"
	"github.com/cleanbc/obps/internal/obligation/service"
	"go.uber.org/fx"
)

var Module = fx.Module("obligation",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
