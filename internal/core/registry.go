package core

import (
	"fmt"
	"sort"
	"sync"

	"github.com/JonMunkholm/folio/internal/grid"
)

var (
	registry   = make(map[string]CollectionDefinition)
	registryMu sync.RWMutex
)

// Register adds a collection definition to the registry.
// Panics if a collection with the same key is already registered.
func Register(def CollectionDefinition) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if def.Info.Key == "" {
		panic("collection key is empty")
	}
	if _, exists := registry[def.Info.Key]; exists {
		panic(fmt.Sprintf("collection already registered: %s", def.Info.Key))
	}

	if def.Info.Label == "" {
		def.Info.Label = def.Info.Key
	}

	// Fallback records never become writable, whatever the definition says.
	for i := range def.Fallback {
		def.Fallback[i].Origin = grid.OriginLocalFallback
	}

	registry[def.Info.Key] = def
}

// Get returns a collection definition by key.
func Get(key string) (CollectionDefinition, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	def, ok := registry[key]
	return def, ok
}

// All returns every registered collection sorted by key.
func All() []CollectionDefinition {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]CollectionDefinition, 0, len(registry))
	for _, def := range registry {
		result = append(result, def)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Info.Key < result[j].Info.Key
	})
	return result
}

// Public returns the collections shown on the public site.
func Public() []CollectionDefinition {
	var result []CollectionDefinition
	for _, def := range All() {
		if def.Info.Public {
			result = append(result, def)
		}
	}
	return result
}

// CollectionCount returns the number of registered collections.
func CollectionCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}

// Clear removes all registered collections.
// Primarily useful for testing.
func Clear() {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry = make(map[string]CollectionDefinition)
}
