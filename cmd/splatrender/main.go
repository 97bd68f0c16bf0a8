// Command splatrender renders a YAML scene of Gaussian splat files to images.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"path/filepath"
	"runtime/pprof"
	"strings"
	"time"

	"golang.org/x/term"

	"github.com/Carmen-Shannon/oxy-splat/common"
	"github.com/Carmen-Shannon/oxy-splat/engine"
	"github.com/Carmen-Shannon/oxy-splat/engine/config"
	"github.com/Carmen-Shannon/oxy-splat/engine/loader"
	"github.com/Carmen-Shannon/oxy-splat/engine/scene"
	"github.com/Carmen-Shannon/oxy-splat/engine/target"
)

const usage = `splatrender - render Gaussian splat scenes on the CPU

USAGE:
  splatrender -config scene.yaml [flags]

FLAGS:
  -config FILE     YAML scene description (required)
  -out FILE        Color output (.png, .bmp or .tif); overrides output.color
  -depth FILE      Depth output (16-bit .png or .tif); overrides output.depth
  -id FILE         Primitive id output in false color; overrides output.id
  -workers N       Rasterizer workers; overrides render.workers
  -turntable N     Render N frames orbiting the camera target; files are numbered
  -cpuprofile FILE Write a CPU profile
  -v               Debug logging

EXAMPLES:
  splatrender -config bust.yaml -out bust.png
  splatrender -config room.yaml -turntable 36 -out frames/room.png
`

// options holds parsed command line flags. Empty or zero values leave the
// scene file's settings in place.
type options struct {
	config     string
	out        string
	depth      string
	id         string
	workers    int
	turntable  int
	cpuprofile string
	verbose    bool
}

func parseFlags(args []string, stderr io.Writer) (options, error) {
	var o options
	fs := flag.NewFlagSet("splatrender", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() { fmt.Fprint(stderr, usage) }
	fs.StringVar(&o.config, "config", "", "YAML scene description")
	fs.StringVar(&o.out, "out", "", "color output file")
	fs.StringVar(&o.depth, "depth", "", "depth output file")
	fs.StringVar(&o.id, "id", "", "id output file")
	fs.IntVar(&o.workers, "workers", 0, "rasterizer workers")
	fs.IntVar(&o.turntable, "turntable", 0, "number of turntable frames")
	fs.StringVar(&o.cpuprofile, "cpuprofile", "", "write CPU profile to file")
	fs.BoolVar(&o.verbose, "v", false, "debug logging")
	if err := fs.Parse(args); err != nil {
		return o, err
	}
	if o.config == "" {
		fs.Usage()
		return o, errors.New("-config is required")
	}
	if o.workers < 0 || o.turntable < 0 {
		return o, errors.New("-workers and -turntable must not be negative")
	}
	return o, nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := run(ctx, os.Args[1:], os.Stderr); err != nil {
		if !errors.Is(err, flag.ErrHelp) {
			fmt.Fprintln(os.Stderr, "splatrender:", err)
		}
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string, stderr io.Writer) error {
	o, err := parseFlags(args, stderr)
	if err != nil {
		return err
	}

	level := slog.LevelInfo
	if o.verbose {
		level = slog.LevelDebug
	}
	common.SetLogger(slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level})))

	if o.cpuprofile != "" {
		f, err := os.Create(o.cpuprofile)
		if err != nil {
			return fmt.Errorf("create CPU profile file: %w", err)
		}
		defer f.Close()
		if err := pprof.StartCPUProfile(f); err != nil {
			return fmt.Errorf("start CPU profile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	cfg, err := config.Load(o.config)
	if err != nil {
		return err
	}
	applyOverrides(cfg, o)
	if cfg.Output.Color == "" && cfg.Output.Depth == "" && cfg.Output.ID == "" {
		return errors.New("no outputs: set output.color, output.depth or output.id, or pass -out")
	}

	sc := scene.NewScene(filepath.Base(o.config),
		scene.WithActive(true),
		scene.WithWorkers(cfg.Render.Workers),
		scene.WithBandRows(cfg.Render.BandRows),
	)
	l := loader.NewLoader(loader.BackendTypePLY,
		loader.WithProgress(progressWriter(stderr)),
		loader.WithMaxSHDegree(cfg.SHDegree()),
	)
	if _, err := loader.LoadGroups(ctx, l, cfg.Groups, sc, cfg.Render.Workers); err != nil {
		return err
	}

	cam := cfg.NewCamera(float32(cfg.Output.Width)/float32(cfg.Output.Height), sc)
	ctrl := cam.Controller()
	targets, outputs := newTargets(cfg)
	eng := engine.NewEngine(
		engine.WithScene(0, sc),
		engine.WithCamera(cam),
		engine.WithTargets(targets),
		engine.WithClearColor(cfg.Background()),
	)
	defer eng.Quit()

	frames := max(cfg.Render.Turntable, 1)
	base := ctrl.Pose()
	for i := 0; i < frames; i++ {
		if frames > 1 {
			p := base
			p.Azimuth += 2 * math.Pi * float32(i) / float32(frames)
			ctrl.SetPose(p)
		}
		stats, err := eng.RenderOnce(ctx)
		if err != nil {
			return fmt.Errorf("render frame %d: %w", i, err)
		}
		common.Logger().Info("frame rendered",
			"frame", i,
			"splats", stats.Splats,
			"drawn", stats.Drawn,
			"culled", stats.Culled,
			"elapsed", stats.Duration.Round(time.Microsecond),
		)
		for _, out := range outputs {
			path := out.path
			if frames > 1 {
				path = numbered(path, i, frames)
			}
			if err := target.Save(path, out.src); err != nil {
				return err
			}
			common.Logger().Debug("wrote output", "path", path)
		}
	}
	return nil
}

func applyOverrides(cfg *config.Config, o options) {
	cfg.Output.Color = common.Coalesce(o.out, cfg.Output.Color)
	cfg.Output.Depth = common.Coalesce(o.depth, cfg.Output.Depth)
	cfg.Output.ID = common.Coalesce(o.id, cfg.Output.ID)
	cfg.Render.Workers = common.Coalesce(o.workers, cfg.Render.Workers)
	cfg.Render.Turntable = common.Coalesce(o.turntable, cfg.Render.Turntable)
}

// progressWriter returns w when it is an interactive terminal, so that
// progress bars never end up in redirected logs.
func progressWriter(w io.Writer) io.Writer {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	return f
}

type output struct {
	path string
	src  target.Source
}

// newTargets allocates the color target and whichever of depth and id have an output path.
func newTargets(cfg *config.Config) (scene.Targets, []output) {
	w, h := cfg.Output.Width, cfg.Output.Height
	color := target.NewBuffer(w, h, target.FormatFloat32x4)
	t := scene.Targets{Color: color}
	var outs []output
	if cfg.Output.Color != "" {
		outs = append(outs, output{cfg.Output.Color, color})
	}
	if cfg.Output.Depth != "" {
		depth := target.NewBuffer(w, h, target.FormatFloat32)
		t.Depth = depth
		outs = append(outs, output{cfg.Output.Depth, depth})
	}
	if cfg.Output.ID != "" {
		id := target.NewBuffer(w, h, target.FormatInt32)
		t.ID = id
		outs = append(outs, output{cfg.Output.ID, id})
	}
	return t, outs
}

// numbered inserts a zero-padded frame number before the extension.
func numbered(path string, frame, frames int) string {
	ext := filepath.Ext(path)
	digits := len(fmt.Sprint(frames - 1))
	return fmt.Sprintf("%s_%0*d%s", strings.TrimSuffix(path, ext), digits, frame, ext)
}
