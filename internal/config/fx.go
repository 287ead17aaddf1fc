package config

import "go.uber.org/fx"

// Module provides the environment-derived configuration.
var Module = fx.Module("config",
	fx.Provide(Load),
)
