package manualhandling

import (
	"github.com/cleanbc/obps/internal/manualhandling/repository"
	"github.com/cleanbc/obps/internal/manualhandling/service"
	"go.uber.org/fx"
)

var Module = fx.Module("manualhandling",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
