package adjustment

import (
	"github.com/cleanbc/obps/internal/adjustment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("adjustment",
	fx.Provide(
		service.New,
	),
)
