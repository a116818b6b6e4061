package obstacle

import (
	"sort"
	"sync"
)

// Container configuration constants.
const (
	// DefaultStillSpeedThreshold is the speed below which an obstacle
	// counts as stationary even when perception left it unflagged (m/s).
	DefaultStillSpeedThreshold = 0.99
	// DefaultJunctionExitProximity is the distance to a junction exit
	// below which the junction decision branch is skipped (metres).
	DefaultJunctionExitProximity = 10.0
	// DefaultStaleAfterSeconds is how long an obstacle survives without a
	// fresh feature before cycle start evicts it.
	DefaultStaleAfterSeconds = 5.0
	// DefaultEgoID is the synthetic id the ego vehicle is stored under.
	DefaultEgoID = -1
)

// ContainerConfig holds configuration parameters for the obstacle container.
type ContainerConfig struct {
	HistoryCapacity       int     // Per-obstacle feature window size
	StillSpeedThreshold   float64 // Speed below which an obstacle is stationary (m/s)
	JunctionExitProximity float64 // Exit distance that disarms the junction branch (metres)
	StaleAfterSeconds     float64 // Age at which unseen obstacles are evicted
	EgoID                 int     // Synthetic ego obstacle id
}

// DefaultContainerConfig returns default container configuration.
func DefaultContainerConfig() ContainerConfig {
	return ContainerConfig{
		HistoryCapacity:       DefaultHistoryCapacity,
		StillSpeedThreshold:   DefaultStillSpeedThreshold,
		JunctionExitProximity: DefaultJunctionExitProximity,
		StaleAfterSeconds:     DefaultStaleAfterSeconds,
		EgoID:                 DefaultEgoID,
	}
}

// Container stores the obstacles perception reported, keyed by id, and the
// per-cycle id sets the prediction engine consumes. Obstacles live across
// cycles (their history accumulates); the id sets reset each cycle.
type Container struct {
	obstacles map[int]*Obstacle

	consideredIDs []int
	movableIDs    []int
	timestamp     float64

	config ContainerConfig

	mu sync.RWMutex
}

// NewContainer creates a container with the specified configuration.
func NewContainer(config ContainerConfig) *Container {
	if config.HistoryCapacity < 1 {
		config.HistoryCapacity = DefaultHistoryCapacity
	}
	return &Container{
		obstacles: make(map[int]*Obstacle),
		config:    config,
	}
}

// StartCycle begins a new perception cycle: records the cycle timestamp,
// resets the per-cycle id sets and evicts obstacles that have not been
// observed for the configured stale window.
func (c *Container) StartCycle(timestamp float64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.timestamp = timestamp
	c.consideredIDs = c.consideredIDs[:0]
	c.movableIDs = c.movableIDs[:0]

	if c.config.StaleAfterSeconds <= 0 {
		return
	}
	for id, obs := range c.obstacles {
		latest := obs.LatestFeature()
		if latest == nil || timestamp-latest.Timestamp > c.config.StaleAfterSeconds {
			delete(c.obstacles, id)
		}
	}
}

// Insert records one perception feature for the current cycle, creating the
// obstacle on first sight. Motion context flags are derived here so the
// dispatch decision tree reads plain booleans. The ego id is stored but
// never joins the considered or movable sets.
func (c *Container) Insert(f Feature, typ ObstacleType, pri Priority) *Obstacle {
	c.mu.Lock()
	defer c.mu.Unlock()

	obs, ok := c.obstacles[f.ObstacleID]
	if !ok {
		obs = NewObstacle(f.ObstacleID, typ, c.config.HistoryCapacity)
		c.obstacles[f.ObstacleID] = obs
	}

	obs.history.Append(f)
	obs.Type = typ
	obs.Priority = pri
	obs.Stationary = f.Stationary || f.Speed < c.config.StillSpeedThreshold
	obs.OnLane = f.LaneID != ""
	obs.InJunction = f.JunctionID != ""
	obs.NearJunctionExit = obs.InJunction &&
		f.JunctionExitDistance >= 0 &&
		f.JunctionExitDistance <= c.config.JunctionExitProximity

	if f.ObstacleID == c.config.EgoID {
		return obs
	}

	c.consideredIDs = append(c.consideredIDs, f.ObstacleID)
	if typ != TypeUnknown || !obs.Stationary {
		c.movableIDs = append(c.movableIDs, f.ObstacleID)
	}
	return obs
}

// Get returns the obstacle for id, or nil if absent.
func (c *Container) Get(id int) *Obstacle {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.obstacles[id]
}

// ConsideredIDs returns the ids inserted this cycle, in insertion order.
func (c *Container) ConsideredIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int, len(c.consideredIDs))
	copy(out, c.consideredIDs)
	return out
}

// MovableIDs returns this cycle's ids whose obstacles can move: every
// classified type, plus unknowns that are actually in motion.
func (c *Container) MovableIDs() []int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]int, len(c.movableIDs))
	copy(out, c.movableIDs)
	return out
}

// CycleTimestamp returns the timestamp recorded by the last StartCycle.
func (c *Container) CycleTimestamp() float64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.timestamp
}

// Size returns the number of obstacles currently stored, ego included.
func (c *Container) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.obstacles)
}

// EgoID returns the configured synthetic ego id.
func (c *Container) EgoID() int {
	return c.config.EgoID
}

// NearbyObstacles returns this cycle's considered obstacles ordered by
// distance to the given origin (ties broken by id). Used to build the
// dynamic environment handed to context-aware evaluators.
func (c *Container) NearbyObstacles(origin Point) []*Obstacle {
	c.mu.RLock()
	defer c.mu.RUnlock()

	type candidate struct {
		obs   *Obstacle
		dist2 float64
	}
	candidates := make([]candidate, 0, len(c.consideredIDs))
	for _, id := range c.consideredIDs {
		obs := c.obstacles[id]
		if obs == nil {
			continue
		}
		latest := obs.LatestFeature()
		if latest == nil {
			continue
		}
		dx := latest.Position.X - origin.X
		dy := latest.Position.Y - origin.Y
		candidates = append(candidates, candidate{obs: obs, dist2: dx*dx + dy*dy})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].dist2 != candidates[j].dist2 {
			return candidates[i].dist2 < candidates[j].dist2
		}
		return candidates[i].obs.ID < candidates[j].obs.ID
	})

	out := make([]*Obstacle, len(candidates))
	for i, cand := range candidates {
		out[i] = cand.obs
	}
	return out
}
