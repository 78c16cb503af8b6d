package webform

import "go.uber.org/fx"

var Module = fx.Module("providers.webform",
	fx.Provide(
		fx.Annotate(NewHTTPSubmitter, fx.As(new(Submitter))),
	),
)
