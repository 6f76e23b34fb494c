package content

import (
	"github.com/placehub/placehub/internal/content/repository"
	"github.com/placehub/placehub/internal/content/service"
	"go.uber.org/fx"
)

var Module = fx.Module("content.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
