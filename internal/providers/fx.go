package providers

import (
	"github.com/cleanbc/obps/internal/providers/email"
	"github.com/cleanbc/obps/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
