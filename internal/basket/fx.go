package basket

import (
	"github.com/smallbiznis/labdesk/internal/basket/service"
	"go.uber.org/fx"
)

var Module = fx.Module("basket.service",
	fx.Provide(service.New),
)
