package payapp

import (
	"github.com/smallbiznis/progresspay/internal/payapp/repository"
	"github.com/smallbiznis/progresspay/internal/payapp/service"
	"go.uber.org/fx"
)

var Module = fx.Module("payapp.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
