package main

import (
	"context"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ZoomFloor 最小级别
const ZoomFloor = 0

// ZoomCeil 最大级别
const ZoomCeil = 22

// ZoomRange tile-builder zoom bounds, min <= max.
type ZoomRange struct {
	Min int
	Max int
}

func clampZoom(z int) int {
	if z < ZoomFloor {
		return ZoomFloor
	}
	if z > ZoomCeil {
		return ZoomCeil
	}
	return z
}

func (z ZoomRange) clamped() ZoomRange {
	z.Min = clampZoom(z.Min)
	z.Max = clampZoom(z.Max)
	if z.Min > z.Max {
		z.Min = z.Max
	}
	return z
}

var (
	extentPattern       = regexp.MustCompile(`Extent:\s*\(([-\d.eE+]+),\s*([-\d.eE+]+)\)\s*-\s*\(([-\d.eE+]+),\s*([-\d.eE+]+)\)`)
	featureCountPattern = regexp.MustCompile(`Feature Count:\s*(\d+)`)
)

// ZoomPlanner 根据图形范围和要素数估算缩放级别
// The estimate is advisory: an explicit caller range always wins and
// is returned untouched.
type ZoomPlanner struct {
	runner   Runner
	tools    ToolPaths
	defaults ZoomRange
	timeout  time.Duration
}

func NewZoomPlanner(runner Runner, tools ToolPaths, defaults ZoomRange, timeout time.Duration) *ZoomPlanner {
	return &ZoomPlanner{runner: runner, tools: tools, defaults: defaults, timeout: timeout}
}

// Plan 计算缩放级别, explicit 优先
func (p *ZoomPlanner) Plan(ctx context.Context, src ShapefileSource, explicit *ZoomRange) ZoomRange {
	if explicit != nil {
		return *explicit
	}

	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	res, err := p.runner.Run(ctx, p.tools.OgrInfo, "-so", "-al", src.Path)
	if err != nil || res.ExitCode != 0 {
		log.Warnf("zoom probe failed for %s, using defaults %d-%d", src.Path, p.defaults.Min, p.defaults.Max)
		return p.defaults.clamped()
	}
	return p.estimate(res.Stdout).clamped()
}

func (p *ZoomPlanner) estimate(text string) ZoomRange {
	zr := p.defaults

	bound, ok := parseExtent(text)
	if !ok {
		return zr
	}

	// wider extent, lower max zoom; tiny extent, deeper max zoom
	area := (bound.Max[0] - bound.Min[0]) * (bound.Max[1] - bound.Min[1])
	switch {
	case area > 1000000:
		zr.Max = p.defaults.Max - 2
	case area < 100:
		zr.Max = p.defaults.Max + 2
	}

	// denser datasets warrant deeper tiles
	if count, ok := parseFeatureCount(text); ok {
		switch {
		case count > 100000:
			zr.Max += 2
		case count > 10000:
			zr.Max++
		}
	}

	// for lon/lat extents, lower the min zoom until the whole bound
	// fits a single tile
	if geographic(bound) {
		if cz := coveringZoom(bound, p.defaults.Min); cz < zr.Min {
			zr.Min = cz
		}
	}
	return zr
}

func parseExtent(text string) (orb.Bound, bool) {
	m := extentPattern.FindStringSubmatch(text)
	if m == nil {
		return orb.Bound{}, false
	}
	coords := make([]float64, 4)
	for i, s := range m[1:] {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return orb.Bound{}, false
		}
		coords[i] = v
	}
	return orb.Bound{
		Min: orb.Point{coords[0], coords[1]},
		Max: orb.Point{coords[2], coords[3]},
	}, true
}

func parseFeatureCount(text string) (int, bool) {
	m := featureCountPattern.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	n, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return n, true
}

func geographic(b orb.Bound) bool {
	return b.Min[0] >= -180 && b.Max[0] <= 180 && b.Min[1] >= -90 && b.Max[1] <= 90
}

// coveringZoom 整个范围落在单个瓦片内的最深级别
func coveringZoom(b orb.Bound, limit int) int {
	z := 0
	for z < limit {
		next := maptile.Zoom(z + 1)
		if maptile.At(b.Min, next) != maptile.At(b.Max, next) {
			break
		}
		z++
	}
	return z
}

// sanitizeTileArgs strips auto-zoom directives and explicit zoom
// bounds from extra tile-builder arguments. The scheduler always
// supplies its own bounds, so anything left here would conflict.
func sanitizeTileArgs(args []string) []string {
	out := make([]string, 0, len(args))
	skip := false
	for _, a := range args {
		if skip {
			skip = false
			continue
		}
		switch a {
		case "-zg", "--maximum-zoom=g", "--max-zoom=g":
			continue
		case "-z", "-Z", "--minimum-zoom", "--min-zoom", "--maximum-zoom", "--max-zoom":
			skip = true
			continue
		}
		if strings.HasPrefix(a, "--minimum-zoom=") ||
			strings.HasPrefix(a, "--min-zoom=") ||
			strings.HasPrefix(a, "--maximum-zoom=") ||
			strings.HasPrefix(a, "--max-zoom=") {
			continue
		}
		out = append(out, a)
	}
	return out
}
