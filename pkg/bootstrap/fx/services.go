package fx

import (
	"go.uber.org/fx"

	"github.com/EternisAI/persona-twin/pkg/bootstrap"
	"github.com/EternisAI/persona-twin/pkg/chat"
)

// ServicesModule provides application services.
var ServicesModule = fx.Module("services",
	fx.Provide(
		ProvideChatService,
	),
)

func ProvideChatService(deps *bootstrap.Deps) (*chat.Service, error) {
	return deps.ChatService()
}
