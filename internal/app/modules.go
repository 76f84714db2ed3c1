package app

import (
	"github.com/vk/blueetlcore/internal/registry"
	"github.com/vk/blueetlcore/modules/aggregate"
	"github.com/vk/blueetlcore/modules/columns"
	"github.com/vk/blueetlcore/modules/print"
	"github.com/vk/blueetlcore/modules/query"
)

// coreModules is the definitive list of all modules that are compiled into
// the blueetl binary. jobs is the resolved degree of parallelism.
func coreModules(jobs int) []registry.Module {
	return []registry.Module{
		&query.Module{},
		&columns.Module{},
		&aggregate.Module{Jobs: jobs},
		&print.Module{},
	}
}
