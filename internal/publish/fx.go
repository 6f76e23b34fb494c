package publish

import (
	"github.com/placehub/placehub/internal/publish/client"
	"go.uber.org/fx"
)

var Module = fx.Module("publish.gateway",
	fx.Provide(client.New),
)
