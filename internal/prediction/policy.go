// Package prediction wires obstacle containers, the evaluation
// strategies and the worker pool into the per-cycle engine: route
// selection, priority-aware dispatch, history snapshots and cycle
// statistics.
package prediction

import (
	"github.com/banshee-data/prediction.engine/internal/config"
	"github.com/banshee-data/prediction.engine/internal/evaluator"
	"github.com/banshee-data/prediction.engine/internal/monitoring"
	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// Policy is the resolved routing table from obstacle class and motion
// context to evaluation strategy. It is built once at startup from the
// route entries in config and never mutated afterwards, so dispatch
// reads it without locking.
//
// The pedestrian route is fixed at construction and cannot be
// configured; pedestrian evaluation itself stays dark in dispatch until
// the interaction model is retrained, but the strategy remains
// registered for data-collection runs.
type Policy struct {
	vehicleOnLane     evaluator.Type
	vehicleInJunction evaluator.Type
	cyclistOnLane     evaluator.Type
	defaultOnLane     evaluator.Type
	pedestrian        evaluator.Type
}

// NewPolicy resolves route entries into the four configurable slots.
// Malformed entries are skipped with a diagnostic rather than failing
// startup, matching how unknown strategy types register as no-ops. In
// data-collection mode the vehicle-on-lane slot is forced to the
// lane-scanning strategy regardless of config, since that is the only
// strategy that emits feature tensors.
func NewPolicy(routes []config.RouteEntry, dataCollection bool) *Policy {
	p := &Policy{pedestrian: evaluator.TypePedestrianInteraction}

	for i, entry := range routes {
		typ := obstacle.ObstacleType(entry.ObstacleType)
		if !typ.IsValid() {
			monitoring.Logf("prediction: route %d names unknown obstacle type %q, skipping", i, entry.ObstacleType)
			continue
		}
		evType := evaluator.Type(entry.Evaluator)
		if !evType.IsValid() {
			monitoring.Logf("prediction: route %d names unknown evaluator %q, skipping", i, entry.Evaluator)
			continue
		}
		status := obstacle.Status(entry.ObstacleStatus)

		switch typ {
		case obstacle.TypeVehicle:
			switch status {
			case obstacle.StatusOnLane:
				p.vehicleOnLane = evType
			case obstacle.StatusInJunction:
				p.vehicleInJunction = evType
			}
		case obstacle.TypeBicycle:
			if status == obstacle.StatusOnLane {
				p.cyclistOnLane = evType
			}
		case obstacle.TypePedestrian:
			// The pedestrian slot is not configurable.
		case obstacle.TypeUnknown:
			if status == obstacle.StatusOnLane {
				p.defaultOnLane = evType
			}
		}
	}

	if dataCollection {
		p.vehicleOnLane = evaluator.TypeLaneScanning
	}
	return p
}

// VehicleOnLane returns the routed strategy for on-lane vehicles, or ""
// when no route entry resolved the slot.
func (p *Policy) VehicleOnLane() evaluator.Type { return p.vehicleOnLane }

// VehicleInJunction returns the routed strategy for in-junction
// vehicles, or "" when unresolved.
func (p *Policy) VehicleInJunction() evaluator.Type { return p.vehicleInJunction }

// CyclistOnLane returns the routed strategy for on-lane cyclists, or ""
// when unresolved.
func (p *Policy) CyclistOnLane() evaluator.Type { return p.cyclistOnLane }

// DefaultOnLane returns the routed strategy for every other on-lane
// class, or "" when unresolved.
func (p *Policy) DefaultOnLane() evaluator.Type { return p.defaultOnLane }

// Pedestrian returns the fixed pedestrian strategy.
func (p *Policy) Pedestrian() evaluator.Type { return p.pedestrian }

// Types returns the distinct strategy types the policy can route to,
// for registration at startup. The fixed pedestrian strategy is always
// included.
func (p *Policy) Types() []evaluator.Type {
	seen := make(map[evaluator.Type]bool)
	out := make([]evaluator.Type, 0, 5)
	for _, t := range []evaluator.Type{
		p.vehicleOnLane, p.vehicleInJunction, p.cyclistOnLane,
		p.defaultOnLane, p.pedestrian,
	} {
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}
