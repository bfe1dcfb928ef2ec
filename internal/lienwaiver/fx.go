package lienwaiver

import (
	"github.com/smallbiznis/progresspay/internal/lienwaiver/service"
	"go.uber.org/fx"
)

var Module = fx.Module("lienwaiver.service",
	fx.Provide(service.New),
)
