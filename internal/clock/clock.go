// Package clock injects time. Freshness checks, deadlines and penalty
// windows are all pure functions of a supplied "now", never of a hidden
// wall clock, so tests can pin time exactly.
package clock

import (
	"time"

	"go.uber.org/fx"
)

type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now().UTC() }

func NewSystemClock() Clock { return systemClock{} }

// Module provides the real clock; tests construct FakeClock directly.
var Module = fx.Module("clock",
	fx.Provide(NewSystemClock),
)
