package rental

import (
	"github.com/placehub/placehub/internal/rental/repository"
	"github.com/placehub/placehub/internal/rental/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rental.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
