package engine

import (
	"context"
	"fmt"
	"sync"

	"github.com/facebookincubator/go-belt/tool/logger"
	"github.com/hashicorp/go-multierror"
	"github.com/xaionaro-go/silentstream/pkg/engine/registry"
	"github.com/xaionaro-go/silentstream/pkg/engine/types"
)

var (
	lastSuccessfulCaptureFactory       registry.CaptureBackendFactory
	lastSuccessfulCaptureFactoryLocker sync.Mutex
)

func getLastSuccessfulCaptureFactory() registry.CaptureBackendFactory {
	lastSuccessfulCaptureFactoryLocker.Lock()
	defer lastSuccessfulCaptureFactoryLocker.Unlock()
	return lastSuccessfulCaptureFactory
}

// NewCaptureBackendAuto probes the registered capture backends in priority
// order and returns the first one that initializes and pings successfully;
// if none does, a dummy backend with an empty catalog is returned.
func NewCaptureBackendAuto(
	ctx context.Context,
) types.CaptureBackend {
	factory := getLastSuccessfulCaptureFactory()
	if factory != nil {
		backend, err := factory.NewCaptureBackend()
		if err == nil {
			if err := backend.Ping(ctx); err == nil {
				return backend
			}
			backend.Close()
		}
	}

	var mErr *multierror.Error
	for _, factory := range registry.CaptureFactories() {
		backend, err := factory.NewCaptureBackend()
		logger.Debugf(ctx, "initializing capture backend %T result is %v", backend, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", backend, err))
			continue
		}

		err = backend.Ping(ctx)
		logger.Debugf(ctx, "pinging capture backend %T result is %v", backend, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping %T: %w", backend, err))
			backend.Close()
			continue
		}

		lastSuccessfulCaptureFactoryLocker.Lock()
		defer lastSuccessfulCaptureFactoryLocker.Unlock()
		lastSuccessfulCaptureFactory = factory
		return backend
	}

	logger.Infof(ctx, "was unable to initialize any capture backend: %v", mErr.ErrorOrNil())
	return CaptureBackendDummy{}
}

var (
	lastSuccessfulRenderFactory       registry.RenderBackendFactory
	lastSuccessfulRenderFactoryLocker sync.Mutex
)

func getLastSuccessfulRenderFactory() registry.RenderBackendFactory {
	lastSuccessfulRenderFactoryLocker.Lock()
	defer lastSuccessfulRenderFactoryLocker.Unlock()
	return lastSuccessfulRenderFactory
}

// NewRenderBackendAuto probes the registered render backends in priority
// order; see NewCaptureBackendAuto.
func NewRenderBackendAuto(
	ctx context.Context,
) types.RenderBackend {
	factory := getLastSuccessfulRenderFactory()
	if factory != nil {
		backend, err := factory.NewRenderBackend()
		if err == nil {
			if err := backend.Ping(ctx); err == nil {
				return backend
			}
			backend.Close()
		}
	}

	var mErr *multierror.Error
	for _, factory := range registry.RenderFactories() {
		backend, err := factory.NewRenderBackend()
		logger.Debugf(ctx, "initializing render backend %T result is %v", backend, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to initialize %T: %w", backend, err))
			continue
		}

		err = backend.Ping(ctx)
		logger.Debugf(ctx, "pinging render backend %T result is %v", backend, err)
		if err != nil {
			mErr = multierror.Append(mErr, fmt.Errorf("unable to ping %T: %w", backend, err))
			backend.Close()
			continue
		}

		lastSuccessfulRenderFactoryLocker.Lock()
		defer lastSuccessfulRenderFactoryLocker.Unlock()
		lastSuccessfulRenderFactory = factory
		return backend
	}

	logger.Infof(ctx, "was unable to initialize any render backend: %v", mErr.ErrorOrNil())
	return RenderBackendDummy{}
}
