package prediction

import (
	"sort"

	"github.com/banshee-data/prediction.engine/internal/monitoring"
	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// snapshotRecordCap bounds how many trailing features each obstacle
// contributes to a frame snapshot, independent of the container's own
// history capacity.
const snapshotRecordCap = 10

// EgoProfile is the ego vehicle's physical footprint used for its
// snapshot records, since the ego track carries pose but no perceived
// shape.
type EgoProfile struct {
	Length float64
	Width  float64
	Height float64
}

// FrameSink receives one frame environment per dumping cycle. The
// engine tolerates slow sinks being wrapped in a buffer that drops, but
// never blocks the cycle on one.
type FrameSink interface {
	InsertFrameEnv(env obstacle.FrameEnvironment) error
}

// BuildHistoryMap snapshots the trailing history of every movable
// obstacle plus the ego track, newest record first, at most
// snapshotRecordCap records each. Ego records take their footprint from
// the profile and carry no polygon; every other record keeps the
// perceived polygon and extents.
func BuildHistoryMap(c *obstacle.Container, ego EgoProfile) map[int]obstacle.History {
	egoID := c.EgoID()
	ids := append(c.MovableIDs(), egoID)

	histories := make(map[int]obstacle.History, len(ids))
	for _, id := range ids {
		obs := c.Get(id)
		if obs == nil {
			if id != egoID {
				monitoring.Logf("prediction: obstacle %d missing while building history map", id)
			}
			continue
		}
		features := obs.History().Recent(snapshotRecordCap)
		if len(features) == 0 {
			continue
		}

		records := make([]obstacle.HistoryRecord, 0, len(features))
		for _, f := range features {
			rec := obstacle.HistoryRecord{
				ObstacleID: id,
				Timestamp:  f.Timestamp,
				Position:   f.Position,
				Heading:    f.Heading,
			}
			if id == egoID {
				rec.Length = ego.Length
				rec.Width = ego.Width
			} else {
				rec.Length = f.Length
				rec.Width = f.Width
				if len(f.Polygon) > 0 {
					rec.Polygon = append([]obstacle.Point(nil), f.Polygon...)
				}
			}
			records = append(records, rec)
		}

		histories[id] = obstacle.History{
			Records:   records,
			Trainable: isTrainable(obs, egoID),
		}
	}
	return histories
}

// isTrainable marks histories usable as offline learning targets: real
// moving vehicles that prediction actually attends to.
func isTrainable(obs *obstacle.Obstacle, egoID int) bool {
	if obs.ID == egoID {
		return false
	}
	if obs.Priority == obstacle.PriorityIgnore || obs.Stationary {
		return false
	}
	return obs.Type == obstacle.TypeVehicle
}

// BuildFrameEnvironment assembles the per-cycle frame from a history
// map, splitting out the ego entry. Non-ego histories are ordered by
// obstacle id so the frame is deterministic.
func BuildFrameEnvironment(timestamp float64, egoID int, histories map[int]obstacle.History) obstacle.FrameEnvironment {
	env := obstacle.FrameEnvironment{Timestamp: timestamp}

	ids := make([]int, 0, len(histories))
	for id := range histories {
		if id == egoID {
			env.Ego = histories[id]
			continue
		}
		ids = append(ids, id)
	}
	sort.Ints(ids)

	env.Others = make([]obstacle.History, 0, len(ids))
	for _, id := range ids {
		env.Others = append(env.Others, histories[id])
	}
	return env
}
