package estimator

import (
	"context"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"go.viam.com/poseflow/catalog"
	"go.viam.com/poseflow/logging"
	"go.viam.com/poseflow/ml"
)

// BackendConfig is passed to a backend constructor.
type BackendConfig struct {
	Preset    Preset
	Catalog   *catalog.Dataset
	ModelsDir string
	Device    ml.Device
}

// Constructor builds a backend.
type Constructor func(ctx context.Context, cfg BackendConfig, logger logging.Logger) (PoseEstimator, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Constructor{}
)

// RegisterBackend registers a backend under name. It panics if name is already registered.
func RegisterBackend(name string, constructor Constructor) {
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, ok := registry[name]; ok {
		panic(errors.Errorf("estimator backend %q already registered", name))
	}
	registry[name] = constructor
}

// LookupBackend returns the constructor registered under name.
func LookupBackend(name string) (Constructor, error) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	c, ok := registry[name]
	if !ok {
		return nil, errors.Errorf("unknown estimator backend %q, registered backends: %v", name, backendNamesLocked())
	}
	return c, nil
}

// Backends returns the sorted names of registered backends.
func Backends() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return backendNamesLocked()
}

func backendNamesLocked() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
