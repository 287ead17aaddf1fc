package bccr

import "go.uber.org/fx"

var Module = fx.Module("bccr.client",
	fx.Provide(NewClient),
)
