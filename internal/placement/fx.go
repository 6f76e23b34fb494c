package placement

import (
	"github.com/placehub/placehub/internal/placement/repository"
	"github.com/placehub/placehub/internal/placement/service"
	"go.uber.org/fx"
)

var Module = fx.Module("placement.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
