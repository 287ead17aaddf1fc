package earnedcredit

import (
	"github.com/cleanbc/obps/internal/earnedcredit/repository"
	"github.com/cleanbc/obps/internal/earnedcredit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("earnedcredit",
	fx.Provide(
		repository.Provide,
		service.New,
	),
)
