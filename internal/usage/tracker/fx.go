package tracker

import (
	"context"

	"go.uber.org/fx"
)

// RegisterLifecycle drains in-flight writes on shutdown.
func RegisterLifecycle(lc fx.Lifecycle, t *Tracker) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			return t.Wait(ctx)
		},
	})
}
