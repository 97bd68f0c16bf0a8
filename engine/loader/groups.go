package loader

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
)

// LoadGroups decodes every configured group concurrently, at most limit at
// a time, then adds the batches to sc in configuration order so group slots
// are deterministic. Nothing is added when any file fails.
//
// Parameters:
//   - ctx: cancels loads that have not started yet
//   - l: the loader used for decoding and caching
//   - groups: the groups to load
//   - sc: the scene receiving the batches
//   - limit: maximum concurrent decodes; values below 1 mean 1
//
// Returns:
//   - []scene.GroupHandle: one handle per group, in order
//   - error: the first load error
func LoadGroups(ctx context.Context, l Loader, groups []config.GroupConfig, sc scene.Scene, limit int) ([]scene.GroupHandle, error) {
	batches := make([]scene.RawAttributes, len(groups))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(max(limit, 1))
	for i, gc := range groups {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			a, err := l.Load(gc.Path)
			if err != nil {
				return fmt.Errorf("group %q: %w", gc.Name, err)
			}
			a.Transform = gc.Transform()
			a.PrimID = gc.PrimID
			batches[i] = a
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	handles := make([]scene.GroupHandle, len(groups))
	for i, gc := range groups {
		handles[i] = sc.AddSplats(gc.Name, batches[i])
	}
	common.Logger().Info("scene ready", "scene", sc.Name(), "groups", sc.GroupCount(), "splats", sc.SplatCount())
	return handles, nil
}
