// Package semantic rasterizes recent obstacle history into a coarse
// ego-centered occupancy grid. The grid is rebuilt once per perception
// cycle and published as an immutable snapshot, so evaluators on worker
// goroutines read it without locking against the builder.
package semantic

import (
	"math"
	"sync"

	"github.com/banshee-data/prediction.engine/internal/obstacle"
)

// Config controls grid extent and resolution.
type Config struct {
	// CellSize is the edge length of one grid cell in metres.
	CellSize float64
	// Radius is the half-extent of the grid around the ego position in
	// metres. The grid covers [-Radius, +Radius] on both axes.
	Radius float64
}

// DefaultConfig returns the standard 160m x 160m grid at 1m resolution.
func DefaultConfig() Config {
	return Config{
		CellSize: 1.0,
		Radius:   80.0,
	}
}

// Snapshot is one published grid. It is immutable after publication.
type Snapshot struct {
	Timestamp float64
	Center    obstacle.Point
	CellSize  float64
	Cols      int
	cells     []uint16
}

// cellIndex maps a world position to a cell index, or -1 if the position
// falls outside the grid extent.
func (s *Snapshot) cellIndex(p obstacle.Point) int {
	half := float64(s.Cols) * s.CellSize / 2
	dx := p.X - s.Center.X + half
	dy := p.Y - s.Center.Y + half
	if dx < 0 || dy < 0 {
		return -1
	}
	col := int(dx / s.CellSize)
	row := int(dy / s.CellSize)
	if col >= s.Cols || row >= s.Cols {
		return -1
	}
	return row*s.Cols + col
}

// HitsAt returns the accumulated history hits in the cell containing p,
// or zero when p is outside the grid.
func (s *Snapshot) HitsAt(p obstacle.Point) int {
	idx := s.cellIndex(p)
	if idx < 0 {
		return 0
	}
	return int(s.cells[idx])
}

// CoverageAround reports the fraction of cells within radius metres of p
// that hold at least one history hit. It returns zero when p is outside
// the grid entirely.
func (s *Snapshot) CoverageAround(p obstacle.Point, radius float64) float64 {
	if s.cellIndex(p) < 0 {
		return 0
	}
	span := int(math.Ceil(radius / s.CellSize))
	total := 0
	hit := 0
	for dr := -span; dr <= span; dr++ {
		for dc := -span; dc <= span; dc++ {
			q := obstacle.Point{
				X: p.X + float64(dc)*s.CellSize,
				Y: p.Y + float64(dr)*s.CellSize,
			}
			idx := s.cellIndex(q)
			if idx < 0 {
				continue
			}
			total++
			if s.cells[idx] > 0 {
				hit++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return float64(hit) / float64(total)
}

// CellHit is one occupied grid cell with its world-space center.
type CellHit struct {
	Position obstacle.Point
	Hits     int
}

// OccupiedCells returns every cell holding at least one hit, with cell
// centers in world coordinates. Debug charts iterate this instead of
// probing cell by cell.
func (s *Snapshot) OccupiedCells() []CellHit {
	half := float64(s.Cols) * s.CellSize / 2
	var out []CellHit
	for idx, hits := range s.cells {
		if hits == 0 {
			continue
		}
		row := idx / s.Cols
		col := idx % s.Cols
		out = append(out, CellHit{
			Position: obstacle.Point{
				X: s.Center.X - half + (float64(col)+0.5)*s.CellSize,
				Y: s.Center.Y - half + (float64(row)+0.5)*s.CellSize,
			},
			Hits: int(hits),
		})
	}
	return out
}

// GridBuilder rebuilds the occupancy grid from per-cycle history
// snapshots and publishes the result.
type GridBuilder struct {
	cfg Config

	mu   sync.RWMutex
	snap *Snapshot
}

// NewGridBuilder returns a builder with the given config. Zero or
// negative dimensions fall back to the defaults.
func NewGridBuilder(cfg Config) *GridBuilder {
	def := DefaultConfig()
	if cfg.CellSize <= 0 {
		cfg.CellSize = def.CellSize
	}
	if cfg.Radius <= 0 {
		cfg.Radius = def.Radius
	}
	return &GridBuilder{cfg: cfg}
}

// RunFrame rasterizes every record in the history map into a fresh grid
// centered on the ego position and publishes it. Polygon vertices are
// rasterized alongside record positions so large obstacles cover more
// than a single cell.
func (g *GridBuilder) RunFrame(timestamp float64, histories map[int]obstacle.History, center obstacle.Point) {
	cols := int(2 * g.cfg.Radius / g.cfg.CellSize)
	if cols < 1 {
		cols = 1
	}
	snap := &Snapshot{
		Timestamp: timestamp,
		Center:    center,
		CellSize:  g.cfg.CellSize,
		Cols:      cols,
		cells:     make([]uint16, cols*cols),
	}
	for _, hist := range histories {
		for _, rec := range hist.Records {
			snap.mark(rec.Position)
			for _, v := range rec.Polygon {
				snap.mark(v)
			}
		}
	}

	g.mu.Lock()
	g.snap = snap
	g.mu.Unlock()
}

func (s *Snapshot) mark(p obstacle.Point) {
	idx := s.cellIndex(p)
	if idx < 0 {
		return
	}
	if s.cells[idx] < math.MaxUint16 {
		s.cells[idx]++
	}
}

// Snapshot returns the most recently published grid, or nil before the
// first RunFrame call.
func (g *GridBuilder) Snapshot() *Snapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}
