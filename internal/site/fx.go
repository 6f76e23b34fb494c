package site

import (
	"github.com/placehub/placehub/internal/site/repository"
	"github.com/placehub/placehub/internal/site/service"
	"go.uber.org/fx"
)

var Module = fx.Module("site.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
