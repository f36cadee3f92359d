package rewardaccount

import (
	"rewardvault/pkg/secretcipher"

	"go.uber.org/fx"
)

var Module = fx.Module("rewardaccount",
	fx.Provide(
		NewRepository,
		NewExpiryPolicy,
		func(c *secretcipher.Cipher) Cipher { return c },
		NewService,
		NewHandler,
	),
	fx.Invoke(RegisterRoutes, StartScheduler),
)

// TaskModule registers the expiry sweep handler on the asynq server mux.
var TaskModule = fx.Module("rewardaccount.task",
	fx.Invoke(RegisterTasks),
)
