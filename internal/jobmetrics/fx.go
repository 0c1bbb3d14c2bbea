package jobmetrics

import (
	"github.com/derrickmugabwa/kenya-food-database-api/internal/scheduler"
	"go.uber.org/fx"
)

var Module = fx.Options(
	fx.Provide(NewRecorder),
	fx.Provide(func(r *Recorder) scheduler.RunObserver { return r }),
	fx.Provide(NewPusher),
)
