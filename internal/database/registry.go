package database

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/koustreak/d1meta/internal/errs"
)

// Factory opens an Executor for cfg.
type Factory func(ctx context.Context, cfg *Config) (Executor, error)

var (
	registryMu sync.RWMutex
	registry   = make(map[Driver]Factory)
)

// Register is called by each driver's init() function.
// Registering the same driver twice replaces the earlier factory.
func Register(driver Driver, f Factory) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[driver] = f
}

// Drivers returns the registered driver names, sorted.
func Drivers() []Driver {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]Driver, 0, len(registry))
	for d := range registry {
		result = append(result, d)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Open looks up cfg.Driver and opens an Executor with it.
func Open(ctx context.Context, cfg *Config) (Executor, error) {
	if cfg == nil {
		return nil, errs.New(errs.ErrKindInvalidInput, "nil database config")
	}

	registryMu.RLock()
	f, ok := registry[cfg.Driver]
	registryMu.RUnlock()

	if !ok {
		return nil, errs.New(errs.ErrKindInvalidInput,
			fmt.Sprintf("unknown database driver %q (registered: %v)", cfg.Driver, Drivers()))
	}
	return f(ctx, cfg)
}
