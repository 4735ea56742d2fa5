// Package pipeline runs the blend computation end to end: it loads the
// correspondence rasters of every projector, splits each projector's samples
// into viewports, turns each viewport into a distance field on the shared UV
// grid, normalizes the fields into cross-fade weights and writes them back
// into projector space.
package pipeline

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
	"github.com/paulmach/orb"
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"golang.org/x/sync/errgroup"

	"projblend/internal/models"
	"projblend/pkg/blend"
	"projblend/pkg/cluster"
	"projblend/pkg/config"
	"projblend/pkg/distance"
	"projblend/pkg/errs"
	"projblend/pkg/hull"
	"projblend/pkg/mask"
	"projblend/pkg/raster"
	"projblend/pkg/resample"
	"projblend/pkg/seam"
)

// ViewportStats summarizes one viewport of a run.
type ViewportStats struct {
	ID models.ViewportID `yaml:"-"`

	// Projector is the projector's file number
	Projector int `yaml:"projector"`
	Viewport  int `yaml:"viewport"`

	// Samples is the number of valid samples assigned to the viewport
	Samples int `yaml:"samples"`

	// PixelHull and UVHull are the hull vertex counts
	PixelHull int `yaml:"pixel_hull"`
	UVHull    int `yaml:"uv_hull"`

	// PixelMask and UVMask are the number of pixels set in each mask
	PixelMask int `yaml:"pixel_mask"`
	UVMask    int `yaml:"uv_mask"`

	// Wrapped records a seam correction of the projector's U coordinates
	Wrapped bool `yaml:"wrapped"`

	// Written and Outside are the resampling counts
	Written int `yaml:"written"`
	Outside int `yaml:"outside"`
}

// Result describes a completed run.
type Result struct {
	// RunID identifies the run in logs and the debug report
	RunID string

	// Viewports holds the statistics of every viewport in projector then
	// viewport order
	Viewports []ViewportStats

	// Outputs lists the written blend rasters, one per projector
	Outputs []string

	// Duration is the wall time of Process
	Duration time.Duration
}

// projector holds everything computed for one projector.
type projector struct {
	samples   *models.SampleSet
	clusters  []*models.Cluster
	viewports []*models.Viewport

	// pixelMasks and uvMasks are indexed by viewport
	pixelMasks []*mask.Mask
	uvMasks    []*mask.Mask

	// first is the position of viewport 0 in Blender.fields
	first int
}

// Blender computes blend weights for a set of projectors.
//
// The process consists of several steps:
// 1. Loading the valid samples of every projector and undoing seams
// 2. Splitting each projector's samples into viewports
// 3. Building hulls and rasterizing pixel and UV masks per viewport
// 4. Computing the distance field of every UV mask in parallel
// 5. Normalizing the fields into weights
// 6. Resampling the weights into projector space and writing the outputs
type Blender struct {
	// cfg is the validated run configuration
	cfg *config.Config

	logger *log.Logger

	// runID identifies this run
	runID string

	projectors []*projector

	// fields holds one field per viewport, distances until normalized and
	// weights afterwards
	fields []*mat.Dense

	// sum is the aggregate distance field
	sum *mat.Dense

	stats []ViewportStats
}

// NewBlender creates a blender for cfg. A nil logger logs to the default
// logger.
func NewBlender(cfg *config.Config, logger *log.Logger) *Blender {
	if logger == nil {
		logger = log.Default()
	}
	runID := uuid.NewString()
	return &Blender{
		cfg:    cfg,
		logger: logger.With("run", runID[:8]),
		runID:  runID,
	}
}

// RunID returns the identifier of this blender's run.
func (b *Blender) RunID() string { return b.runID }

// Process runs the complete blending pipeline. It checks ctx between
// projectors and viewports and returns ctx.Err() when cancelled. A Blender
// may run Process repeatedly; every run starts from the input files.
func (b *Blender) Process(ctx context.Context) (*Result, error) {
	start := time.Now()
	if err := b.cfg.Validate(); err != nil {
		return nil, err
	}

	b.reset()

	if b.cfg.DebugDir != "" {
		if err := os.MkdirAll(b.cfg.DebugDir, 0755); err != nil {
			return nil, errs.IO("mkdir", b.cfg.DebugDir, err)
		}
	}

	// Step 1: Load samples
	b.logger.Info("Step 1: Loading samples...", "projectors", len(b.cfg.ProjectorIDs))
	if err := b.loadProjectors(ctx); err != nil {
		return nil, err
	}

	// Step 2: Split samples into viewports
	if b.cfg.ViewportConfig != "" {
		b.logger.Info("Step 2: Labelling viewports from calibration...", "path", b.cfg.ViewportConfig)
	} else {
		b.logger.Info("Step 2: Clustering viewports...", "viewports", b.cfg.ViewportCount)
	}
	if err := b.splitViewports(ctx); err != nil {
		return nil, err
	}

	// Step 3: Build hulls and masks
	b.logger.Info("Step 3: Building hulls and masks...", "mode", b.cfg.HullMode)
	if err := b.buildMasks(ctx); err != nil {
		return nil, err
	}

	// Step 4: Distance fields
	b.logger.Info("Step 4: Computing distance fields...", "fields", len(b.fields), "workers", b.cfg.Workers)
	if err := b.computeFields(ctx); err != nil {
		return nil, err
	}

	// Step 5: Normalize
	b.logger.Info("Step 5: Normalizing blend weights...")
	sum, err := blend.Normalize(b.fields)
	if err != nil {
		return nil, fmt.Errorf("failed to normalize weights: %w", err)
	}
	b.sum = sum

	// Step 6: Resample and write
	b.logger.Info("Step 6: Resampling and writing outputs...", "dir", b.cfg.OutputDir)
	outputs, err := b.writeOutputs(ctx)
	if err != nil {
		return nil, err
	}

	result := &Result{
		RunID:     b.runID,
		Viewports: b.stats,
		Outputs:   outputs,
		Duration:  time.Since(start),
	}

	if b.cfg.DebugDir != "" {
		b.logger.Info("Saving diagnostics...", "dir", b.cfg.DebugDir)
		b.saveDiagnostics(result)
	}
	return result, nil
}

// reset drops the state of a previous run.
func (b *Blender) reset() {
	b.projectors = nil
	b.fields = nil
	b.sum = nil
	b.stats = nil
}

// loadProjectors reads the sample raster of every projector.
func (b *Blender) loadProjectors(ctx context.Context) error {
	b.projectors = make([]*projector, 0, len(b.cfg.ProjectorIDs))
	for i, number := range b.cfg.ProjectorIDs {
		if err := ctx.Err(); err != nil {
			return err
		}
		path := b.cfg.InputPath(number)
		set, err := LoadSamples(path, i, number, b.cfg.ValidThreshold)
		if err != nil {
			return errors.Wrapf(err, "loading projector %d", number)
		}
		b.logger.Debug("loaded samples", "projector", number, "path", path,
			"samples", set.Len(), "width", set.Width, "height", set.Height, "wrapped", set.Wrapped)
		b.projectors = append(b.projectors, &projector{samples: set})
	}
	return nil
}

// splitViewports assigns every projector's samples to viewports, either by
// clustering or from the calibration's viewport polygons.
func (b *Blender) splitViewports(ctx context.Context) error {
	var polygons []orb.Ring
	if b.cfg.ViewportConfig != "" {
		cal, err := config.LoadCalibration(b.cfg.ViewportConfig)
		if err != nil {
			return err
		}
		polygons = cal.Viewports()
	}

	w, h := b.cfg.UVScale.Width, b.cfg.UVScale.Height
	for _, p := range b.projectors {
		if err := ctx.Err(); err != nil {
			return err
		}
		set := p.samples

		var labels []int
		if polygons != nil {
			labels = cluster.FromMask(set.Pixels, mask.Labels(polygons, set.Width, set.Height))
		} else {
			labels = cluster.SingleLinkage(set.Pixels, b.cfg.ViewportCount, cluster.Options{Neighbors: b.cfg.Neighbors})
		}

		groups := nonEmpty(cluster.Groups(labels))
		if len(groups) != b.cfg.ViewportCount {
			return errs.Dataf(set.Number, errs.NoIndex, "expected %d viewports, found %d clusters", b.cfg.ViewportCount, len(groups))
		}

		uv := set.UVPoints(w, h)
		p.clusters = make([]*models.Cluster, len(groups))
		for v, idx := range groups {
			cl := &models.Cluster{
				ID:      models.ViewportID{Projector: set.Projector, Viewport: v},
				Indices: idx,
				Pixels:  make([]orb.Point, len(idx)),
				UV:      make([]orb.Point, len(idx)),
			}
			for j, k := range idx {
				cl.Pixels[j] = set.Pixels[k]
				cl.UV[j] = uv[k]
			}
			p.clusters[v] = cl
			b.logger.Debug("viewport samples", "projector", set.Number, "viewport", v, "samples", len(idx))
		}
	}
	return nil
}

// buildMasks computes the hulls and masks of every viewport.
func (b *Blender) buildMasks(ctx context.Context) error {
	w, h := b.cfg.UVScale.Width, b.cfg.UVScale.Height
	for _, p := range b.projectors {
		set := p.samples
		p.first = len(b.fields)
		for v, cl := range p.clusters {
			if err := ctx.Err(); err != nil {
				return err
			}
			pixHull, uvHull := hull.Build(b.cfg.HullMode, cl.Pixels, cl.UV)
			if len(pixHull) < 3 || len(uvHull) < 3 {
				return errs.Dataf(set.Number, v, "degenerate hull: %d pixel-space and %d UV-space vertices", len(pixHull), len(uvHull))
			}

			vp := &models.Viewport{
				ID:        cl.ID,
				Samples:   len(cl.Indices),
				PixelHull: pixHull,
				UVHull:    uvHull,
				Wrapped:   set.Wrapped,
			}
			pm := mask.Polygon(pixHull, set.Width, set.Height)
			um := mask.Polygon(uvHull, w, h)

			p.viewports = append(p.viewports, vp)
			p.pixelMasks = append(p.pixelMasks, pm)
			p.uvMasks = append(p.uvMasks, um)
			b.fields = append(b.fields, nil)
			b.stats = append(b.stats, ViewportStats{
				ID:        cl.ID,
				Projector: set.Number,
				Viewport:  v,
				Samples:   vp.Samples,
				PixelHull: len(pixHull),
				UVHull:    len(uvHull),
				PixelMask: pm.Count(),
				UVMask:    um.Count(),
				Wrapped:   set.Wrapped,
			})
			b.logger.Debug("viewport masks", "projector", set.Number, "viewport", v,
				"pixel_hull", len(pixHull), "uv_hull", len(uvHull), "pixel_mask", pm.Count(), "uv_mask", um.Count())
		}
	}
	return nil
}

// computeFields runs the distance transforms concurrently. Every field is
// stored at its viewport's position, so the result does not depend on
// scheduling.
func (b *Blender) computeFields(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.cfg.Workers)

	shift := seam.HalfTurn(b.cfg.UVScale.Width)
	for _, p := range b.projectors {
		for v, vp := range p.viewports {
			k := p.first + v
			um := p.uvMasks[v]
			wrapped := vp.Wrapped
			id := vp.ID
			number := p.samples.Number
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				f := distance.Transform(um)
				if wrapped {
					f = seam.Roll(f, shift)
				}
				b.fields[k] = f
				b.logger.Debug("distance field done", "projector", number, "viewport", id.Viewport, "max", mat.Max(f))
				return nil
			})
		}
	}
	// every field must be complete before summation
	return g.Wait()
}

// writeOutputs resamples the weights of every projector into its
// interpolated raster and writes the result.
func (b *Blender) writeOutputs(ctx context.Context) ([]string, error) {
	outputs := make([]string, 0, len(b.projectors))
	for _, p := range b.projectors {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		set := p.samples
		path := b.cfg.InterpPath(set.Number)
		interp, err := raster.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "loading interpolated raster of projector %d", set.Number)
		}
		if !interp.HasSize(set.Width, set.Height) {
			return nil, errs.Dataf(set.Number, errs.NoIndex, "interpolated raster %s is %dx%d, samples are %dx%d",
				path, interp.Width, interp.Height, set.Width, set.Height)
		}

		out := resample.Output(interp)
		for v := range p.viewports {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			k := p.first + v
			st := resample.Apply(out, interp, p.pixelMasks[v], b.fields[k])
			b.stats[k].Written = st.Written
			b.stats[k].Outside = st.Outside
			if st.Outside > 0 {
				b.logger.Debug("lookups outside the UV grid", "projector", set.Number, "viewport", v, "count", st.Outside)
			}
		}

		outPath := b.cfg.OutputPath(set.Number)
		if err := raster.WriteFile(outPath, out); err != nil {
			return nil, err
		}
		b.logger.Info("wrote blend raster", "projector", set.Number, "path", outPath)
		outputs = append(outputs, outPath)
	}
	return outputs, nil
}

// nonEmpty drops empty groups, which label masks leave for viewports
// without samples.
func nonEmpty(groups [][]int) [][]int {
	out := groups[:0]
	for _, g := range groups {
		if len(g) > 0 {
			out = append(out, g)
		}
	}
	return out
}
