package sov

import (
	"github.com/smallbiznis/progresspay/internal/sov/repository"
	"github.com/smallbiznis/progresspay/internal/sov/service"
	"go.uber.org/fx"
)

var Module = fx.Module("sov.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
