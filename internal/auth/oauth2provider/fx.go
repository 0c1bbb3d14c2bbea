package oauth2provider

import "go.uber.org/fx"

// Providers wires the token service without the HTTP handler.
var Providers = fx.Options(
	fx.Provide(NewConfig),
	fx.Provide(NewStore),
	fx.Provide(NewService),
)

var Module = fx.Module("auth.oauth2.provider",
	Providers,
	fx.Provide(NewHandler),
	fx.Invoke(RegisterRoutes),
)
