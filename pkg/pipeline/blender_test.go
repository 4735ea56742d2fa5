package pipeline

import (
	"context"
	"errors"
	"image/color"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"projblend/pkg/config"
	"projblend/pkg/errs"
	"projblend/pkg/raster"
)

const (
	testWidth  = 90
	testHeight = 30
)

// blockCols are the column ranges of the three viewports drawn by every test
// projector; all blocks span rows [5, 25).
var blockCols = [][2]int{{5, 25}, {35, 55}, {65, 85}}

func inBlock(x, y int) bool {
	if y < 5 || y >= 25 {
		return false
	}
	for _, b := range blockCols {
		if x >= b[0] && x < b[1] {
			return true
		}
	}
	return false
}

// projectorImage returns a correspondence raster whose valid pixels are the
// three blocks, with U given per column and V = row/30.
func projectorImage(u func(x int) float64) *raster.Image {
	img := raster.New(testWidth, testHeight)
	for y := 0; y < testHeight; y++ {
		for x := 0; x < testWidth; x++ {
			if !inBlock(x, y) {
				img.Set(raster.U, x, y, raster.Invalid)
				img.Set(raster.V, x, y, raster.Invalid)
				continue
			}
			img.Set(raster.U, x, y, u(x))
			img.Set(raster.V, x, y, float64(y)/testHeight)
			img.Set(raster.I, x, y, 1)
		}
	}
	return img
}

// plainU covers U in [0.03, 0.47] without touching the seam.
func plainU(x int) float64 { return float64(x) / 180 }

// seamU is plainU shifted by 0.72 so the middle block crosses U = 1.
func seamU(x int) float64 { return math.Mod(float64(x)/180+0.72, 1) }

// writeTestInputs writes the sample and interpolated rasters of projectors
// 0 (plain) and 1 (seam) into dir.
func writeTestInputs(t *testing.T, dir string) {
	t.Helper()
	for number, u := range []func(int) float64{plainU, seamU} {
		img := projectorImage(u)
		cfg := config.DefaultConfig()
		cfg.ResolveDirs(dir)
		for _, path := range []string{cfg.InputPath(number), cfg.InterpPath(number)} {
			if err := raster.WriteFile(path, img); err != nil {
				t.Fatalf("failed to write %s: %v", path, err)
			}
		}
	}
}

func testConfig(dir string) *config.Config {
	cfg := config.DefaultConfig()
	cfg.ResolveDirs(dir)
	cfg.UVScale = config.UVScale{Width: 200, Height: 40}
	cfg.ProjectorIDs = []int{0, 1}
	cfg.Workers = 2
	return cfg
}

func testLogger() *log.Logger {
	return log.New(io.Discard)
}

func TestProcess(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	dir := t.TempDir()
	writeTestInputs(t, dir)
	cfg := testConfig(dir)

	b := NewBlender(cfg, testLogger())
	result, err := b.Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	if result.RunID == "" || result.RunID != b.RunID() {
		t.Errorf("Expected run id %q, got %q", b.RunID(), result.RunID)
	}
	if len(result.Viewports) != 6 {
		t.Fatalf("Expected 6 viewports, got %d", len(result.Viewports))
	}
	if len(result.Outputs) != 2 {
		t.Fatalf("Expected 2 outputs, got %d", len(result.Outputs))
	}
	for _, st := range result.Viewports {
		if st.Samples != 400 {
			t.Errorf("Viewport %v: expected 400 samples, got %d", st.ID, st.Samples)
		}
		if st.PixelHull != 4 {
			t.Errorf("Viewport %v: expected 4 hull vertices, got %d", st.ID, st.PixelHull)
		}
		if st.Wrapped != (st.Projector == 1) {
			t.Errorf("Viewport %v: wrapped = %v", st.ID, st.Wrapped)
		}
	}

	out0, err := raster.ReadFile(cfg.OutputPath(0))
	if err != nil {
		t.Fatalf("Failed to read output 0: %v", err)
	}
	out1, err := raster.ReadFile(cfg.OutputPath(1))
	if err != nil {
		t.Fatalf("Failed to read output 1: %v", err)
	}

	// projector 0 block 0 overlaps projector 1 block 2 in UV space
	if w := out0.At(raster.I, 20, 15); w <= 0 || w >= 1 {
		t.Errorf("Expected a shared weight in (0, 1) at projector 0 (20,15), got %v", w)
	}
	// projector 1 block 1 straddles the seam and is only covered once; a
	// missing roll would leave it at zero
	if w := out1.At(raster.I, 45, 15); math.Abs(w-1) > 1e-6 {
		t.Errorf("Expected weight 1 at projector 1 (45,15), got %v", w)
	}
	if w := out0.At(raster.I, 45, 15); math.Abs(w-1) > 1e-6 {
		t.Errorf("Expected weight 1 at projector 0 (45,15), got %v", w)
	}

	// outside every viewport the weight stays zero and UV is copied
	if w := out0.At(raster.I, 0, 0); w != 0 {
		t.Errorf("Expected weight 0 outside the viewports, got %v", w)
	}
	if got := out1.At(raster.U, 45, 15); math.Abs(got-seamU(45)) > 1e-6 {
		t.Errorf("Expected U %v copied from the interpolated raster, got %v", seamU(45), got)
	}

	// weights sum to one wherever any viewport covers the UV grid
	rows, cols := b.sum.Dims()
	for r := 0; r < rows; r++ {
		for c := 0; c < cols; c++ {
			if b.sum.At(r, c) <= 0 {
				continue
			}
			var total float64
			for _, f := range b.fields {
				total += f.At(r, c)
			}
			if math.Abs(total-1) > 1e-6 {
				t.Fatalf("Weights at (%d,%d) sum to %v", r, c, total)
			}
		}
	}
}

func TestProcessWithCalibration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	dir := t.TempDir()
	writeTestInputs(t, dir)

	cal := `display:
  virtualDisplays:
    - viewport: [[4, 4], [25, 4], [25, 25], [4, 25]]
    - viewport: [[34, 4], [55, 4], [55, 25], [34, 25]]
    - viewport: [[64, 4], [85, 4], [85, 25], [64, 25]]
p2c: {}
p2g: {}
`
	calPath := filepath.Join(dir, "display.yaml")
	if err := os.WriteFile(calPath, []byte(cal), 0644); err != nil {
		t.Fatal(err)
	}

	cfg := testConfig(dir)
	cfg.ViewportConfig = calPath
	result, err := NewBlender(cfg, testLogger()).Process(context.Background())
	if err != nil {
		t.Fatalf("Process failed: %v", err)
	}
	if len(result.Viewports) != 6 {
		t.Fatalf("Expected 6 viewports, got %d", len(result.Viewports))
	}

	out1, err := raster.ReadFile(cfg.OutputPath(1))
	if err != nil {
		t.Fatalf("Failed to read output 1: %v", err)
	}
	if w := out1.At(raster.I, 45, 15); math.Abs(w-1) > 1e-6 {
		t.Errorf("Expected weight 1 at projector 1 (45,15), got %v", w)
	}
}

func TestProcessDebugDir(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	dir := t.TempDir()
	writeTestInputs(t, dir)
	cfg := testConfig(dir)
	cfg.DebugDir = filepath.Join(dir, "debug")

	if _, err := NewBlender(cfg, testLogger()).Process(context.Background()); err != nil {
		t.Fatalf("Process failed: %v", err)
	}

	for _, name := range []string{
		"masks_0_0.pfm", "masks_1_2.pfm",
		"blend_0_0.png", "blend_1_2.png",
		"samples_0.png", "samples_1.png",
		"gradsum.pfm", "gradsum.png",
		"report.yaml",
	} {
		if _, err := os.Stat(filepath.Join(cfg.DebugDir, name)); err != nil {
			t.Errorf("Expected debug file %s: %v", name, err)
		}
	}

	sum, err := imaging.Open(filepath.Join(cfg.DebugDir, "gradsum.png"))
	if err != nil {
		t.Fatalf("Failed to open gradient sum preview: %v", err)
	}
	// distances are at least 1 inside a mask, so only a normalized preview
	// has grey levels below white
	var peak uint16
	grey := 0
	bounds := sum.Bounds()
	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			v := color.Gray16Model.Convert(sum.At(x, y)).(color.Gray16).Y
			peak = max(peak, v)
			if v > 0 && v < 0xffff {
				grey++
			}
		}
	}
	if peak != 0xffff || grey == 0 {
		t.Errorf("Gradient sum preview peak %d with %d grey pixels, want a normalized preview", peak, grey)
	}

	m, err := raster.ReadFile(filepath.Join(cfg.DebugDir, "masks_0_1.pfm"))
	if err != nil {
		t.Fatalf("Failed to read mask: %v", err)
	}
	if m.At(raster.I, 45, 15) != 1 || m.At(raster.I, 20, 15) != 0 {
		t.Errorf("Mask of viewport 1 does not cover block 1 only")
	}
}

func TestProcessRepeated(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping end-to-end test in short mode")
	}

	dir := t.TempDir()
	writeTestInputs(t, dir)
	cfg := testConfig(dir)
	b := NewBlender(cfg, testLogger())

	first, err := b.Process(context.Background())
	if err != nil {
		t.Fatalf("First Process failed: %v", err)
	}
	want, err := raster.ReadFile(first.Outputs[0])
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}

	second, err := b.Process(context.Background())
	if err != nil {
		t.Fatalf("Second Process failed: %v", err)
	}
	if len(second.Viewports) != len(first.Viewports) {
		t.Fatalf("Second run has %d viewports, first had %d", len(second.Viewports), len(first.Viewports))
	}
	got, err := raster.ReadFile(second.Outputs[0])
	if err != nil {
		t.Fatalf("Failed to read output: %v", err)
	}
	for i, w := range want.Planes[raster.I] {
		if got.Planes[raster.I][i] != w {
			t.Fatalf("Weight %d = %v after a second run, want %v", i, got.Planes[raster.I][i], w)
		}
	}
}

func TestProcessErrors(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, dir string, cfg *config.Config)
		code   int
		target any
	}{
		{
			name:   "missing sample raster",
			setup:  func(t *testing.T, dir string, cfg *config.Config) {},
			code:   errs.ExitIO,
			target: new(*errs.IOError),
		},
		{
			name: "too many viewports",
			setup: func(t *testing.T, dir string, cfg *config.Config) {
				writeTestInputs(t, dir)
				cfg.ViewportCount = 4
			},
			code:   errs.ExitData,
			target: new(*errs.DataError),
		},
		{
			name: "no valid samples",
			setup: func(t *testing.T, dir string, cfg *config.Config) {
				writeTestInputs(t, dir)
				empty := projectorImage(plainU)
				for i := range empty.Planes[raster.U] {
					empty.Planes[raster.U][i] = raster.Invalid
				}
				if err := raster.WriteFile(cfg.InputPath(1), empty); err != nil {
					t.Fatal(err)
				}
			},
			code:   errs.ExitData,
			target: new(*errs.DataError),
		},
		{
			name: "interpolated size mismatch",
			setup: func(t *testing.T, dir string, cfg *config.Config) {
				writeTestInputs(t, dir)
				if err := raster.WriteFile(cfg.InterpPath(0), raster.New(10, 10)); err != nil {
					t.Fatal(err)
				}
			},
			code:   errs.ExitData,
			target: new(*errs.DataError),
		},
		{
			name: "invalid config",
			setup: func(t *testing.T, dir string, cfg *config.Config) {
				cfg.HullMode = "union"
			},
			code:   errs.ExitConfig,
			target: new(*errs.ConfigError),
		},
		{
			name: "malformed calibration",
			setup: func(t *testing.T, dir string, cfg *config.Config) {
				writeTestInputs(t, dir)
				cfg.ViewportConfig = filepath.Join(dir, "display.yaml")
				if err := os.WriteFile(cfg.ViewportConfig, []byte("display: {}\n"), 0644); err != nil {
					t.Fatal(err)
				}
			},
			code:   errs.ExitConfig,
			target: new(*errs.ConfigError),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			cfg := testConfig(dir)
			tt.setup(t, dir, cfg)

			_, err := NewBlender(cfg, testLogger()).Process(context.Background())
			if err == nil {
				t.Fatal("Expected an error, got nil")
			}
			if !errors.As(err, tt.target) {
				t.Errorf("Expected %T, got %v", tt.target, err)
			}
			if got := errs.ExitCode(err); got != tt.code {
				t.Errorf("Expected exit code %d, got %d (%v)", tt.code, got, err)
			}
			if _, statErr := os.Stat(cfg.OutputPath(0)); statErr == nil {
				t.Error("Expected no output to be written on failure")
			}
		})
	}
}

func TestProcessCancelled(t *testing.T) {
	dir := t.TempDir()
	writeTestInputs(t, dir)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewBlender(testConfig(dir), testLogger()).Process(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("Expected context.Canceled, got %v", err)
	}
	if got := errs.ExitCode(err); got != errs.ExitInterrupted {
		t.Errorf("Expected exit code %d, got %d", errs.ExitInterrupted, got)
	}
}

func TestSamples(t *testing.T) {
	img := projectorImage(plainU)
	set := Samples(img, -0.99)
	if set.Len() != 3*20*20 {
		t.Fatalf("Expected 1200 samples, got %d", set.Len())
	}
	// row-major: the first sample is the top-left corner of block 0
	if set.Pixels[0][0] != 5 || set.Pixels[0][1] != 5 {
		t.Errorf("Expected first sample at (5,5), got %v", set.Pixels[0])
	}
	if set.Pixels[1][0] != 6 {
		t.Errorf("Expected second sample at column 6, got %v", set.Pixels[1])
	}
}

func TestLoadSamplesUnwrapsSeam(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "p.pfm")
	if err := raster.WriteFile(path, projectorImage(seamU)); err != nil {
		t.Fatal(err)
	}
	set, err := LoadSamples(path, 0, 7, -0.99)
	if err != nil {
		t.Fatalf("LoadSamples failed: %v", err)
	}
	if !set.Wrapped {
		t.Fatal("Expected the seam to be detected")
	}
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, u := range set.U {
		lo, hi = math.Min(lo, u), math.Max(hi, u)
	}
	if hi-lo > 0.5 {
		t.Errorf("Expected U range <= 0.5 after unwrapping, got %v", hi-lo)
	}
	if set.Number != 7 {
		t.Errorf("Expected projector number 7, got %d", set.Number)
	}
}
