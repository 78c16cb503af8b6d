package quiz

import (
	"github.com/smallbiznis/labdesk/internal/quiz/service"
	"go.uber.org/fx"
)

var Module = fx.Module("quiz.service",
	fx.Provide(service.New),
)
