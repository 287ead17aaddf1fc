package scheduler

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(ProvideRedis),
	fx.Provide(NewLocker),
	fx.Provide(New),
)

// Start runs the scheduler loop for the lifetime of the application. Invoked
// by the scheduler binary, not by the API.
func Start(lc fx.Lifecycle, sched *Scheduler) {
	runCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go sched.RunForever(runCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
