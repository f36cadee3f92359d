package inventory

import "go.uber.org/fx"

var Module = fx.Module("inventory",
	fx.Provide(NewReporter, NewHandler),
	fx.Invoke(RegisterRoutes),
)

// CacheModule backs the reporter with redis.
var CacheModule = fx.Module("inventory.cache",
	fx.Provide(ProvideCache),
)
