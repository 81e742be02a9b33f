package extraction

import (
	extractiondomain "github.com/smallbiznis/docflow/internal/extraction/domain"
	"github.com/smallbiznis/docflow/internal/extraction/service"
	"github.com/smallbiznis/docflow/internal/providers/storage"
	"github.com/smallbiznis/docflow/internal/providers/understanding"
	"go.uber.org/fx"
)

var Module = fx.Module("extraction.service",
	fx.Provide(provideContentProvider),
	fx.Provide(provideUnderstanding),
	fx.Provide(service.New),
)

func provideContentProvider(p storage.Provider) extractiondomain.ContentProvider {
	return p
}

func provideUnderstanding(p understanding.Provider) extractiondomain.Understanding {
	return p
}
