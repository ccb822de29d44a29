package registry

import (
	"fmt"
	"reflect"
	"sort"

	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

type CaptureBackendFactory interface {
	NewCaptureBackend() (types.CaptureBackend, error)
}

type captureFactoryWithPriority struct {
	Priority int
	CaptureBackendFactory
}

var captureFactoryRegistry = map[reflect.Type]captureFactoryWithPriority{}

func RegisterCaptureFactory(
	priority int,
	captureBackendFactory CaptureBackendFactory,
) {
	t := reflect.ValueOf(captureBackendFactory).Type()
	if t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	if _, ok := captureFactoryRegistry[t]; ok {
		panic(fmt.Errorf("there is already registered a factory of CaptureBackend of type %v", t))
	}
	captureFactoryRegistry[t] = captureFactoryWithPriority{
		Priority:              priority,
		CaptureBackendFactory: captureBackendFactory,
	}
}

func CaptureFactories() []CaptureBackendFactory {
	var factoriesWithPriorities []captureFactoryWithPriority
	for _, factory := range captureFactoryRegistry {
		factoriesWithPriorities = append(factoriesWithPriorities, factory)
	}
	sort.Slice(factoriesWithPriorities, func(i, j int) bool {
		return factoriesWithPriorities[i].Priority > factoriesWithPriorities[j].Priority
	})

	var factories []CaptureBackendFactory
	for _, factory := range factoriesWithPriorities {
		factories = append(factories, factory.CaptureBackendFactory)
	}

	return factories
}
