package providers

import (
	"github.com/smallbiznis/labdesk/internal/providers/email"
	"github.com/smallbiznis/labdesk/internal/providers/pdf"
	"github.com/smallbiznis/labdesk/internal/providers/webform"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
	webform.Module,
)
