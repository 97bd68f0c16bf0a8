// Package scene owns a set of named Gaussian splat groups, their far-to-near
// draw order and the camera, and renders them behind a single lock.
package scene

import (
	"context"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/rasterizer"
	"github.com/Carmen-Shannon/oxy-splat/engine/sorter"
	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// GroupHandle is the stable slot index of a splat group. Handles stay valid
// after other groups are removed; slots are never reused.
type GroupHandle int

// InvalidGroup is returned when nothing was added.
const InvalidGroup GroupHandle = -1

// Targets are the output buffers for one frame.
type Targets = rasterizer.Targets

// FrameStats summarizes one frame.
type FrameStats = rasterizer.FrameStats

// ErrNoColorTarget is returned by Render when Targets.Color is nil.
var ErrNoColorTarget = rasterizer.ErrNoColorTarget

// GroupInfo describes a live group.
type GroupInfo struct {
	Handle GroupHandle
	Name   string
	PrimID int
	Splats int
}

// Scene stores splat groups and renders them. Every method is safe for
// concurrent use; edits and renders never interleave.
type Scene interface {
	// Name returns the scene's identifier.
	Name() string

	// SetName sets the scene's identifier.
	SetName(name string)

	// Active returns whether this scene is currently active for rendering.
	Active() bool

	// SetActive sets whether this scene is active for rendering.
	SetActive(active bool)

	// AddSplats ingests a batch of splats as a new named group and marks the
	// draw order stale. Mismatched optional arrays fall back to defaults; an
	// empty batch adds nothing.
	//
	// Parameters:
	//   - name: group name used by RemoveSplats; need not be unique
	//   - attrs: the raw per-splat attributes
	//
	// Returns:
	//   - GroupHandle: the new group's handle, or InvalidGroup if attrs is empty
	AddSplats(name string, attrs RawAttributes) GroupHandle

	// RemoveSplats removes the first live group with the given name. Unknown
	// names are ignored. The draw order is pruned but not re-sorted.
	//
	// Parameters:
	//   - name: the group name
	RemoveSplats(name string)

	// RemoveGroup removes a group by handle. Unknown or already removed
	// handles are ignored.
	//
	// Parameters:
	//   - h: the group handle
	RemoveGroup(h GroupHandle)

	// Clear removes every group.
	Clear()

	// SplatCount returns the number of live splats.
	SplatCount() int

	// SortIndexLen returns the number of draw-order entries.
	SortIndexLen() int

	// GroupCount returns the number of group slots, removed ones included.
	GroupCount() int

	// Group looks up the first live group with the given name.
	//
	// Parameters:
	//   - name: the group name
	//
	// Returns:
	//   - GroupInfo: the group description
	//   - bool: false if no live group has that name
	Group(name string) (GroupInfo, bool)

	// Groups returns every live group in insertion order.
	Groups() []GroupInfo

	// Bounds returns the world-space bounding box of all live splat centers.
	//
	// Returns:
	//   - [3]float32: minimum corner
	//   - [3]float32: maximum corner
	//   - bool: false if the scene is empty
	Bounds() (lo, hi [3]float32, ok bool)

	// SetWorldToView sets the view matrix. A changed matrix marks the draw
	// order stale.
	SetWorldToView(m [16]float32)

	// SetViewToProjection sets the projection matrix. The draw order does not
	// depend on it and is left untouched.
	SetViewToProjection(m [16]float32)

	// WorldToView returns the current view matrix.
	WorldToView() [16]float32

	// ViewToProjection returns the current projection matrix.
	ViewToProjection() [16]float32

	// SortStale reports whether the next Render will re-sort.
	SortStale() bool

	// Render sorts the splats if needed and composites them into targets.
	// The scene is locked for the whole frame.
	//
	// Parameters:
	//   - ctx: cancellation for the frame
	//   - targets: output buffers; Color is required
	//
	// Returns:
	//   - FrameStats: counters for the frame
	//   - error: ErrNoColorTarget, or the context error if cancelled
	Render(ctx context.Context, targets Targets) (FrameStats, error)
}

type group struct {
	name string
	live bool
}

// scene is the implementation of the Scene interface.
type scene struct {
	mu     *sync.Mutex
	name   string
	active bool

	// Group slots. The three slices are parallel and only ever grow; a
	// removed slot keeps its position with nil splats and PrimID -1.
	groups  []group
	splats  [][]splat.Splat
	primIDs []int

	index     []sorter.Index
	sortStale bool

	worldToView      [16]float32
	viewToProjection [16]float32

	sorter     sorter.Sorter
	rasterizer rasterizer.Rasterizer
	frame      rasterizer.Frame

	// pool is shared by the sorter and the rasterizer when workers > 1.
	pool     worker.DynamicWorkerPool
	workers  int
	bandRows int
}

// Ensure scene implements Scene interface.
var _ Scene = &scene{}

// NewScene creates an empty, active Scene with identity camera matrices.
//
// Parameters:
//   - name: the name of the scene
//   - options: functional options to further configure the scene
//
// Returns:
//   - Scene: the newly created scene
func NewScene(name string, options ...SceneBuilderOption) Scene {
	s := &scene{
		mu:               &sync.Mutex{},
		name:             name,
		active:           true,
		worldToView:      common.Identity4(),
		viewToProjection: common.Identity4(),
		workers:          1,
		bandRows:         rasterizer.DefaultBandRows,
	}

	for _, option := range options {
		option(s)
	}

	// The pool is created after options so WithWorkers can set the size.
	// Queue size of 256 covers one task per row band at typical resolutions.
	if s.workers > 1 {
		s.pool = worker.NewDynamicWorkerPool(s.workers, 256, 1*time.Second)
	}
	if s.sorter == nil {
		s.sorter = sorter.NewSorter(sorter.WithPool(s.pool))
	}
	if s.rasterizer == nil {
		s.rasterizer = rasterizer.NewRasterizer(
			rasterizer.WithPool(s.pool),
			rasterizer.WithBandRows(s.bandRows),
		)
	}
	return s
}

func (s *scene) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *scene) SetName(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.name = name
}

func (s *scene) Active() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

func (s *scene) SetActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.active = active
}

func (s *scene) AddSplats(name string, attrs RawAttributes) GroupHandle {
	n := attrs.Len()
	if n == 0 {
		return InvalidGroup
	}
	// Covariances and SH weights are computed before taking the lock.
	built := attrs.build()

	s.mu.Lock()
	defer s.mu.Unlock()

	slot := len(s.groups)
	s.groups = append(s.groups, group{name: name, live: true})
	s.splats = append(s.splats, built)
	s.primIDs = append(s.primIDs, attrs.PrimID)

	s.index = append(s.index, make([]sorter.Index, n)...)
	tail := s.index[len(s.index)-n:]
	for i := range tail {
		tail[i] = sorter.Index{Group: slot, Splat: i}
	}
	s.sortStale = true

	common.Logger().Debug("scene: added splat group",
		"scene", s.name, "group", name, "handle", slot, "splats", n,
		"primID", attrs.PrimID, "sh", attrs.HasSH())
	return GroupHandle(slot)
}

func (s *scene) RemoveSplats(name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if slot := s.findLocked(name); slot >= 0 {
		s.removeLocked(slot)
	}
}

func (s *scene) RemoveGroup(h GroupHandle) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := int(h)
	if slot < 0 || slot >= len(s.groups) || !s.groups[slot].live {
		return
	}
	s.removeLocked(slot)
}

func (s *scene) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for slot := range s.groups {
		if s.groups[slot].live {
			s.removeLocked(slot)
		}
	}
}

func (s *scene) findLocked(name string) int {
	for slot, g := range s.groups {
		if g.live && g.name == name {
			return slot
		}
	}
	return -1
}

// removeLocked tombstones a slot and prunes its draw-order entries. The
// stale flag is left as is: pruning keeps the survivors' relative order, so
// an order that was valid before removal is still valid after it.
func (s *scene) removeLocked(slot int) {
	name, n := s.groups[slot].name, len(s.splats[slot])
	s.groups[slot] = group{}
	s.splats[slot] = nil
	s.primIDs[slot] = -1
	s.index = sorter.Prune(s.index, slot)

	common.Logger().Debug("scene: removed splat group",
		"scene", s.name, "group", name, "handle", slot, "splats", n)
}

func (s *scene) SplatCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	total := 0
	for _, g := range s.splats {
		total += len(g)
	}
	return total
}

func (s *scene) SortIndexLen() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.index)
}

func (s *scene) GroupCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.groups)
}

func (s *scene) Group(name string) (GroupInfo, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot := s.findLocked(name)
	if slot < 0 {
		return GroupInfo{}, false
	}
	return s.infoLocked(slot), true
}

func (s *scene) Groups() []GroupInfo {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []GroupInfo
	for slot, g := range s.groups {
		if g.live {
			out = append(out, s.infoLocked(slot))
		}
	}
	return out
}

func (s *scene) infoLocked(slot int) GroupInfo {
	return GroupInfo{
		Handle: GroupHandle(slot),
		Name:   s.groups[slot].name,
		PrimID: s.primIDs[slot],
		Splats: len(s.splats[slot]),
	}
}

func (s *scene) Bounds() (lo, hi [3]float32, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, g := range s.splats {
		for i := range g {
			p := g[i].Position
			if !ok {
				lo, hi, ok = p, p, true
				continue
			}
			lo = common.Vec3Min(lo, p)
			hi = common.Vec3Max(hi, p)
		}
	}
	return lo, hi, ok
}

func (s *scene) SetWorldToView(m [16]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if m == s.worldToView {
		return
	}
	s.worldToView = m
	s.sortStale = true
}

func (s *scene) SetViewToProjection(m [16]float32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.viewToProjection = m
}

func (s *scene) WorldToView() [16]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.worldToView
}

func (s *scene) ViewToProjection() [16]float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewToProjection
}

func (s *scene) SortStale() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sortStale
}

func (s *scene) Render(ctx context.Context, targets Targets) (FrameStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if targets.Color == nil {
		return FrameStats{}, ErrNoColorTarget
	}
	s.sortIfStaleLocked()

	s.frame = rasterizer.Frame{
		Groups:           s.splats,
		PrimIDs:          s.primIDs,
		Order:            s.index,
		WorldToView:      s.worldToView,
		ViewToProjection: s.viewToProjection,
	}
	stats, err := s.rasterizer.Render(ctx, &s.frame, targets)
	s.frame = rasterizer.Frame{}
	return stats, err
}

func (s *scene) sortIfStaleLocked() {
	if !s.sortStale {
		return
	}
	start := time.Now()
	s.sorter.Sort(s.index, s.splats, s.worldToView)
	s.sortStale = false
	common.Logger().Debug("scene: sorted splats",
		"scene", s.name, "splats", len(s.index), "elapsed", time.Since(start))
}
