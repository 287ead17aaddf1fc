package clientsync

import (
	"github.com/cleanbc/obps/internal/elicensing/clientsync/service"
	"go.uber.org/fx"
)

var Module = fx.Module("clientsync.service",
	fx.Provide(service.New),
)
