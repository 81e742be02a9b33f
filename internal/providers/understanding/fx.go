package understanding

import (
	"context"

	"github.com/smallbiznis/docflow/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("understanding",
	fx.Provide(New),
)

// New returns the Vertex provider, or Disabled when VERTEX_PROJECT_ID is unset.
func New(lc fx.Lifecycle, cfg config.Config, holder *config.ExtractionConfigHolder, log *zap.Logger) (Provider, error) {
	log = log.Named("understanding")
	if !cfg.Vertex.Enabled() {
		log.Warn("vertex not configured; invoice extraction will fail")
		return Disabled{}, nil
	}

	provider, err := NewVertexProvider(context.Background(), cfg.Vertex, holder)
	if err != nil {
		return nil, err
	}
	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return provider.Close()
		},
	})
	log.Info("vertex model configured",
		zap.String("model", cfg.Vertex.Model),
		zap.String("region", cfg.Vertex.Region),
	)
	return provider, nil
}
