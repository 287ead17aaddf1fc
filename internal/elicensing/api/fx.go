package api

import "go.uber.org/fx"

var Module = fx.Module("elicensing.api",
	fx.Provide(NewHTTPClient),
)
