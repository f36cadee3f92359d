package audit

import "go.uber.org/fx"

var Module = fx.Module("audit",
	fx.Provide(NewTrail),
)

// TaskModule registers the redelivery handler on the asynq server mux.
var TaskModule = fx.Module("audit.task",
	fx.Invoke(RegisterTasks),
)
