package main

import (
	"context"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSanitizeTileArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{
			"auto zoom directives removed",
			[]string{"-zg", "--maximum-zoom=g", "--read-parallel"},
			[]string{"--read-parallel"},
		},
		{
			"explicit pairs removed with value",
			[]string{"--minimum-zoom", "3", "--maximum-zoom", "12", "--force"},
			[]string{"--force"},
		},
		{
			"equals form removed",
			[]string{"--min-zoom=2", "--max-zoom=10", "--drop-densest-as-needed"},
			[]string{"--drop-densest-as-needed"},
		},
		{
			"short flags removed with value",
			[]string{"-z", "12", "-Z", "2", "--force"},
			[]string{"--force"},
		},
		{
			"unrelated args untouched",
			[]string{"--read-parallel", "--force", "--no-tile-size-limit"},
			[]string{"--read-parallel", "--force", "--no-tile-size-limit"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, sanitizeTileArgs(tt.in))
		})
	}
}

func TestZoomRangeClamped(t *testing.T) {
	assert.Equal(t, ZoomRange{Min: 0, Max: 22}, ZoomRange{Min: -3, Max: 30}.clamped())
	assert.Equal(t, ZoomRange{Min: 5, Max: 5}, ZoomRange{Min: 9, Max: 5}.clamped())
	assert.Equal(t, ZoomRange{Min: 4, Max: 14}, ZoomRange{Min: 4, Max: 14}.clamped())
}

func TestParseExtent(t *testing.T) {
	bound, ok := parseExtent(ogrInfoWGS84)
	require.True(t, ok)
	assert.InDelta(t, -120.5, bound.Min[0], 1e-9)
	assert.InDelta(t, 35.0, bound.Max[1], 1e-9)

	_, ok = parseExtent("Layer name: roads")
	assert.False(t, ok)
}

func TestCoveringZoom(t *testing.T) {
	world := orb.Bound{Min: orb.Point{-180, -85}, Max: orb.Point{180, 85}}
	assert.Equal(t, 0, coveringZoom(world, 10))

	city := orb.Bound{Min: orb.Point{-120.5, 34}, Max: orb.Point{-119.5, 35}}
	assert.Equal(t, 4, coveringZoom(city, 4))
}

func TestPlanExplicitWins(t *testing.T) {
	fr := &fakeRunner{}
	p := NewZoomPlanner(fr, testTools(), ZoomRange{Min: 4, Max: 14}, 0)

	explicit := &ZoomRange{Min: 5, Max: 9}
	zr := p.Plan(context.Background(), ShapefileSource{Path: "a.shp"}, explicit)

	assert.Equal(t, *explicit, zr)
	// no probe at all when the caller pinned the range
	assert.Empty(t, fr.calls)
}

func TestPlanEstimates(t *testing.T) {
	tests := []struct {
		name  string
		probe string
		want  ZoomRange
	}{
		// tiny lon/lat extent deepens max zoom
		{"small geographic", ogrInfoWGS84, ZoomRange{Min: 4, Max: 16}},
		// huge metric extent backs max zoom off
		{"large projected", ogrInfoUTM, ZoomRange{Min: 4, Max: 12}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fr := &fakeRunner{handler: func(name string, args []string) (ExecResult, error) {
				return ExecResult{Stdout: tt.probe}, nil
			}}
			p := NewZoomPlanner(fr, testTools(), ZoomRange{Min: 4, Max: 14}, 0)
			zr := p.Plan(context.Background(), ShapefileSource{Path: "a.shp"}, nil)
			assert.Equal(t, tt.want, zr)
		})
	}
}

func TestPlanDenseDatasetDeepens(t *testing.T) {
	probe := `Feature Count: 150000
Extent: (10.000000, 50.000000) - (11.000000, 51.000000)
`
	fr := &fakeRunner{handler: func(name string, args []string) (ExecResult, error) {
		return ExecResult{Stdout: probe}, nil
	}}
	p := NewZoomPlanner(fr, testTools(), ZoomRange{Min: 4, Max: 14}, 0)

	zr := p.Plan(context.Background(), ShapefileSource{Path: "dense.shp"}, nil)
	// area < 100 adds 2, count > 100000 adds 2 more
	assert.Equal(t, ZoomRange{Min: 4, Max: 18}, zr)
}

func TestPlanProbeFailureUsesDefaults(t *testing.T) {
	fr := &fakeRunner{handler: func(name string, args []string) (ExecResult, error) {
		return ExecResult{ExitCode: 1, Stderr: "FAILURE"}, nil
	}}
	p := NewZoomPlanner(fr, testTools(), ZoomRange{Min: 4, Max: 14}, 0)

	zr := p.Plan(context.Background(), ShapefileSource{Path: "a.shp"}, nil)
	assert.Equal(t, ZoomRange{Min: 4, Max: 14}, zr)
}
