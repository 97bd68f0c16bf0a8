// Package sorter orders splats back to front by view depth.
package sorter

import (
	"cmp"
	"slices"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"

	"github.com/Carmen-Shannon/oxy-splat/engine/splat"
)

// DefaultChunkSize is the number of depth keys computed per worker task.
const DefaultChunkSize = 4096

// Index addresses one splat: a group slot and the splat's position in it.
type Index struct {
	Group int
	Splat int
}

// Sorter reorders a splat index far to near for a given view.
type Sorter interface {
	// Sort reorders index in place so that depth is non-increasing.
	//
	// Parameters:
	//   - index: entries to reorder; each must address a splat in groups
	//   - groups: splat storage by group slot
	//   - worldToView: column-major view matrix
	Sort(index []Index, groups [][]splat.Splat, worldToView [16]float32)
}

type keyed struct {
	idx   Index
	depth float32
}

type sorter struct {
	pool      worker.DynamicWorkerPool
	chunkSize int

	// keys is reused across sorts. Sort is only ever called from one
	// goroutine at a time, under the owning scene's lock.
	keys []keyed
}

var _ Sorter = &sorter{}

// NewSorter creates a Sorter. Without a worker pool depth keys are computed
// on the calling goroutine.
//
// Parameters:
//   - options: functional options to configure the sorter
//
// Returns:
//   - Sorter: the new sorter
func NewSorter(options ...SorterBuilderOption) Sorter {
	s := &sorter{chunkSize: DefaultChunkSize}
	for _, option := range options {
		option(s)
	}
	if s.chunkSize < 1 {
		s.chunkSize = DefaultChunkSize
	}
	return s
}

func (s *sorter) Sort(index []Index, groups [][]splat.Splat, worldToView [16]float32) {
	n := len(index)
	if n < 2 {
		return
	}

	if cap(s.keys) < n {
		s.keys = make([]keyed, n)
	}
	keys := s.keys[:n]

	fill := func(lo, hi int) {
		for i := lo; i < hi; i++ {
			e := index[i]
			keys[i] = keyed{idx: e, depth: groups[e.Group][e.Splat].Depth(worldToView)}
		}
	}

	if s.pool == nil || n <= s.chunkSize {
		fill(0, n)
	} else {
		var wg sync.WaitGroup
		taskID := 0
		for lo := 0; lo < n; lo += s.chunkSize {
			hi := min(lo+s.chunkSize, n)
			wg.Add(1)
			lo, id := lo, taskID
			taskID++
			s.pool.SubmitTask(worker.Task{
				ID: id,
				Do: func() (any, error) {
					defer wg.Done()
					fill(lo, hi)
					return nil, nil
				},
			})
		}
		wg.Wait()
	}

	// Far to near. Stable so equal depths keep insertion order.
	slices.SortStableFunc(keys, func(a, b keyed) int {
		return cmp.Compare(b.depth, a.depth)
	})

	for i := range keys {
		index[i] = keys[i].idx
	}
}

// Prune removes every entry belonging to group and returns the shortened
// slice. Survivors keep their relative order, so a sorted index stays sorted
// and removal never requires a re-sort. Anything that reorders surviving
// entries here would break that.
//
// Parameters:
//   - index: the index to prune in place
//   - group: the group slot being removed
//
// Returns:
//   - []Index: the pruned index
func Prune(index []Index, group int) []Index {
	return slices.DeleteFunc(index, func(e Index) bool {
		return e.Group == group
	})
}
