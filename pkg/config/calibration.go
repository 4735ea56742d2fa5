package config

import (
	"fmt"
	"os"

	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"

	"projblend/pkg/errs"
	"projblend/pkg/mask"
)

// requiredCalibrationKeys must all be present at the top level of a display
// calibration document.
var requiredCalibrationKeys = []string{"display", "p2c", "p2g"}

// VirtualDisplay is one entry of display.virtualDisplays. Only the viewport
// polygon is used here.
type VirtualDisplay struct {
	ID       string   `yaml:"id"`
	Viewport [][2]int `yaml:"viewport"`
}

// Calibration is the subset of a display calibration document projblend
// reads: the viewport polygon of every virtual display, in projector pixel
// coordinates.
type Calibration struct {
	Display struct {
		VirtualDisplays []VirtualDisplay `yaml:"virtualDisplays"`
	} `yaml:"display"`
}

// LoadCalibration reads the display calibration file at path.
func LoadCalibration(path string) (*Calibration, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errs.IO("read", path, err)
	}

	var top map[string]yaml.Node
	if err := yaml.Unmarshal(data, &top); err != nil {
		return nil, errs.Config("viewport_config", fmt.Errorf("error parsing calibration file %s: %w", path, err))
	}
	for _, k := range requiredCalibrationKeys {
		if _, ok := top[k]; !ok {
			return nil, errs.Configf(k, "malformed calibration config, missing %s", k)
		}
	}

	cal := &Calibration{}
	if err := yaml.Unmarshal(data, cal); err != nil {
		return nil, errs.Config("display", fmt.Errorf("error parsing calibration file %s: %w", path, err))
	}
	if n := len(cal.Display.VirtualDisplays); n == 0 {
		return nil, errs.Configf("display.virtualDisplays", "no virtual displays in %s", path)
	} else if n > mask.MaxLabel {
		return nil, errs.Configf("display.virtualDisplays", "%d virtual displays in %s, at most %d are supported", n, path, mask.MaxLabel)
	}
	return cal, nil
}

// Viewports returns the viewport polygons in document order.
func (c *Calibration) Viewports() []orb.Ring {
	rings := make([]orb.Ring, len(c.Display.VirtualDisplays))
	for i, vd := range c.Display.VirtualDisplays {
		ring := make(orb.Ring, len(vd.Viewport))
		for j, p := range vd.Viewport {
			ring[j] = orb.Point{float64(p[0]), float64(p[1])}
		}
		rings[i] = ring
	}
	return rings
}
