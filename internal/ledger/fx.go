package ledger

import (
	"github.com/placehub/placehub/internal/ledger/repository"
	"github.com/placehub/placehub/internal/ledger/service"
	"go.uber.org/fx"
)

var Module = fx.Module("ledger.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
