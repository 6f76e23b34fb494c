package discount

import (
	"github.com/placehub/placehub/internal/discount/repository"
	"github.com/placehub/placehub/internal/discount/service"
	"go.uber.org/fx"
)

var Module = fx.Module("discount.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
