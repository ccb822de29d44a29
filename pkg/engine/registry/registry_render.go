package registry

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

type RenderBackendFactory interface {
	NewRenderBackend() (types.RenderBackend, error)
}

type renderFactoryWithPriority struct {
	Priority int
	RenderBackendFactory
}

var renderFactoryRegistry = map[reflect.Type]renderFactoryWithPriority{}

func RegisterRenderFactory(
	priority int,
	renderBackendFactory RenderBackendFactory,
) {
	t := reflect.ValueOf(renderBackendFactory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := renderFactoryRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of RenderBackend of type %v", t))
	}
	renderFactoryRegistry[t] = renderFactoryWithPriority{
		Priority:             priority,
		RenderBackendFactory: renderBackendFactory,
	}
}

func RenderFactories() []RenderBackendFactory {
	var factoriesWithPriorities []renderFactoryWithPriority
	for _, factory := range renderFactoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
	})

	var factories []RenderBackendFactory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.RenderBackendFactory)
	}

	return factories
}
