package evaluator

import (
	"sort"
	"sync"

	"github.com/banshee-data/prediction.engine/internal/monitoring"
	"github.com/banshee-data/prediction.engine/internal/semantic"
)

// Deps carries the shared resources a strategy may need at construction
// time. Strategies that need nothing ignore it.
type Deps struct {
	// Grid backs the junction-map strategy. May be nil, in which case
	// that strategy declines every obstacle.
	Grid *semantic.GridBuilder
}

// New constructs the strategy for t. It returns false for declared
// types with no working implementation (the retired RNN evaluator) and
// for unknown types.
func New(t Type, deps Deps) (Evaluator, bool) {
	switch t {
	case TypeMLP:
		return NewMLP(), true
	case TypeCruiseMLP:
		return NewCruiseMLP(), true
	case TypeJunctionMLP:
		return NewJunctionMLP(), true
	case TypeCost:
		return NewCost(), true
	case TypeCyclistKeepLane:
		return NewCyclistKeepLane(), true
	case TypeLaneScanning:
		return NewLaneScanning(), true
	case TypePedestrianInteraction:
		return NewPedestrianInteraction(), true
	case TypeJunctionMap:
		return NewJunctionMap(deps.Grid), true
	default:
		return nil, false
	}
}

// Registry owns the constructed strategy instances. Strategies are
// stateless or internally synchronized, so a single instance per type is
// shared across all worker goroutines.
type Registry struct {
	deps Deps

	mu         sync.RWMutex
	evaluators map[Type]Evaluator
}

// NewRegistry returns an empty registry using deps for construction.
func NewRegistry(deps Deps) *Registry {
	return &Registry{
		deps:       deps,
		evaluators: make(map[Type]Evaluator),
	}
}

// Register constructs and stores the strategy for t. Registering an
// unsupported type is a logged no-op rather than an error so config
// listing retired types keeps working.
func (r *Registry) Register(t Type) {
	ev, ok := New(t, r.deps)
	if !ok {
		monitoring.Logf("evaluator: type %s not supported, skipping registration", t)
		return
	}
	r.mu.Lock()
	r.evaluators[t] = ev
	r.mu.Unlock()
	monitoring.Logf("evaluator: registered %s", t)
}

// Lookup returns the registered strategy for t.
func (r *Registry) Lookup(t Type) (Evaluator, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ev, ok := r.evaluators[t]
	return ev, ok
}

// Types returns the registered strategy types in sorted order.
func (r *Registry) Types() []Type {
	r.mu.RLock()
	defer r.mu.RUnlock()
	types := make([]Type, 0, len(r.evaluators))
	for t := range r.evaluators {
		types = append(types, t)
	}
	sort.Slice(types, func(i, j int) bool { return types[i] < types[j] })
	return types
}
