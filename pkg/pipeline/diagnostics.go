package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/paulmach/orb"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"projblend/pkg/config"
	"projblend/pkg/errs"
	"projblend/pkg/mask"
	"projblend/pkg/plot"
	"projblend/pkg/preview"
	"projblend/pkg/raster"
)

// debugExt is the extension of rasters written to the debug directory.
const debugExt = ".pfm"

// Report is written as report.yaml into the debug directory.
type Report struct {
	RunID     string          `yaml:"run_id"`
	Finished  time.Time       `yaml:"finished"`
	Duration  string          `yaml:"duration"`
	Config    *config.Config  `yaml:"config"`
	Outputs   []string        `yaml:"outputs"`
	Viewports []ViewportStats `yaml:"viewports"`
}

// saveDiagnostics writes masks, the gradient sum, weight previews, sample
// plots and the run report. Failures are logged and do not fail the run.
func (b *Blender) saveDiagnostics(result *Result) {
	for _, p := range b.projectors {
		number := p.samples.Number
		for v := range p.viewports {
			if err := b.saveIntermediaryResult(fmt.Sprintf("masks_%d_%d%s", number, v, debugExt), p.pixelMasks[v]); err != nil {
				b.logger.Warn("failed to save mask", "projector", number, "viewport", v, "err", err)
			}
			if err := b.saveIntermediaryResult(fmt.Sprintf("blend_%d_%d.png", number, v), preview.NewViewer(b.fields[p.first+v])); err != nil {
				b.logger.Warn("failed to save weight preview", "projector", number, "viewport", v, "err", err)
			}
		}

		hulls := make([]orb.Ring, len(p.viewports))
		for v, vp := range p.viewports {
			hulls[v] = vp.PixelHull
		}
		path := filepath.Join(b.cfg.DebugDir, fmt.Sprintf("samples_%d.png", number))
		if err := plot.NewPlotter().SavePNG(path, p.samples.Width, p.samples.Height, p.clusters, hulls); err != nil {
			b.logger.Warn("failed to save sample plot", "projector", number, "err", err)
		}
	}

	if err := b.saveIntermediaryResult("gradsum"+debugExt, b.sum); err != nil {
		b.logger.Warn("failed to save gradient sum", "err", err)
	}
	if err := b.saveIntermediaryResult("gradsum.png", preview.NewNormalizedViewer(b.sum)); err != nil {
		b.logger.Warn("failed to save gradient sum preview", "err", err)
	}

	report := &Report{
		RunID:     result.RunID,
		Finished:  time.Now().UTC(),
		Duration:  result.Duration.String(),
		Config:    b.cfg,
		Outputs:   result.Outputs,
		Viewports: result.Viewports,
	}
	if err := b.saveIntermediaryResult("report.yaml", report); err != nil {
		b.logger.Warn("failed to save report", "err", err)
	}
}

// saveIntermediaryResult writes data to name inside the debug directory,
// encoded according to its type.
func (b *Blender) saveIntermediaryResult(name string, data any) error {
	path := filepath.Join(b.cfg.DebugDir, name)

	switch v := data.(type) {
	case *mask.Mask:
		img := raster.FromGrid(v.Width, v.Height, func(x, y int) float64 {
			return float64(v.At(x, y))
		})
		return raster.WriteFile(path, img)

	case *preview.Viewer:
		return v.Save(path)

	case *mat.Dense:
		rows, cols := v.Dims()
		img := raster.FromGrid(cols, rows, func(x, y int) float64 {
			return v.At(y, x)
		})
		return raster.WriteFile(path, img)

	case *Report:
		out, err := yaml.Marshal(v)
		if err != nil {
			return fmt.Errorf("failed to marshal report: %w", err)
		}
		return errs.IO("write", path, os.WriteFile(path, out, 0644))

	default:
		return fmt.Errorf("unsupported intermediary result %T", data)
	}
}
