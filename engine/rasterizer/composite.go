package rasterizer

import (
	"context"
	"sync"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/chewxy/math32"
)

// compositeBand draws every footprint, in order, into rows [rowLo, rowHi).
// It returns the number of composited pixels.
func compositeBand(ctx context.Context, fps []footprint, targets Targets, rowLo, rowHi int) (int, error) {
	width := targets.Color.Width()
	fragments := 0
	for i := range fps {
		if i%cancelCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return fragments, err
			}
		}
		fp := &fps[i]
		y0, y1 := max(fp.y0, rowLo), min(fp.y1, rowHi)
		x0, x1 := max(fp.x0, 0), min(fp.x1, width)
		if y0 >= y1 || x0 >= x1 {
			continue
		}

		for py := y0; py < y1; py++ {
			dy := -fp.ry + (float32(py-fp.y0)+0.5)*fp.stepY
			for px := x0; px < x1; px++ {
				dx := -fp.rx + (float32(px-fp.x0)+0.5)*fp.stepX

				power := -0.5*(fp.conicA*dx*dx+fp.conicC*dy*dy) - fp.conicB*dx*dy
				if power > 0 {
					continue
				}
				alpha := fp.opacity * math32.Exp(power)
				if alpha <= 0 {
					continue
				}
				alpha = min(alpha, MaxAlpha)

				if alpha > IDDepthAlphaThreshold {
					if targets.ID != nil {
						targets.ID.WriteInts(px, py, fp.id)
					}
					if targets.Depth != nil {
						targets.Depth.WriteFloats(px, py, fp.depth)
					}
				}
				targets.Color.OverColor(px, py, fp.color, alpha)
				fragments++
			}
		}
	}
	return fragments, nil
}

// compositeParallel splits the image into row bands and composites each band
// on the worker pool. Every band walks the full footprint list in draw order,
// so each pixel still sees splats far to near.
func (r *rasterizer) compositeParallel(ctx context.Context, targets Targets, height int) (int, error) {
	bands := (height + r.bandRows - 1) / r.bandRows
	counts := make([]int, bands)
	errs := make([]error, bands)

	var wg sync.WaitGroup
	for b := 0; b < bands; b++ {
		lo := b * r.bandRows
		hi := min(lo+r.bandRows, height)
		wg.Add(1)
		band := b
		r.pool.SubmitTask(worker.Task{
			ID: band,
			Do: func() (any, error) {
				defer wg.Done()
				counts[band], errs[band] = compositeBand(ctx, r.footprints, targets, lo, hi)
				return nil, errs[band]
			},
		})
	}
	wg.Wait()

	total := 0
	for _, c := range counts {
		total += c
	}
	for _, err := range errs {
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
