package referral

import (
	"github.com/placehub/placehub/internal/referral/repository"
	"github.com/placehub/placehub/internal/referral/service"
	"go.uber.org/fx"
)

var Module = fx.Module("referral.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
