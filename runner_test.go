package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	log.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// fakeRunner 外部工具测试替身
type fakeRunner struct {
	mu      sync.Mutex
	calls   [][]string
	handler func(name string, args []string) (ExecResult, error)
}

func (f *fakeRunner) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	f.mu.Lock()
	f.calls = append(f.calls, append([]string{name}, args...))
	f.mu.Unlock()

	if ctx.Err() != nil {
		return ExecResult{}, ctx.Err()
	}
	if f.handler != nil {
		return f.handler(name, args)
	}
	return ExecResult{}, nil
}

// callsFor returns the recorded argument lists for one tool.
func (f *fakeRunner) callsFor(tool string) [][]string {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out [][]string
	for _, c := range f.calls {
		if filepath.Base(c[0]) == tool {
			out = append(out, c[1:])
		}
	}
	return out
}

const ogrInfoWGS84 = `INFO: Open of 'roads.shp'
Layer name: roads
Geometry: Line String
Feature Count: 42
Extent: (-120.500000, 34.000000) - (-119.500000, 35.000000)
Layer SRS WKT:
GEOGCRS["WGS 84",
    DATUM["World Geodetic System 1984"],
    ID["EPSG",4326]]
`

const ogrInfoUTM = `INFO: Open of 'parcels.shp'
Layer name: parcels
Geometry: Polygon
Feature Count: 1200
Extent: (500000.000000, 4000000.000000) - (600000.000000, 4100000.000000)
Layer SRS WKT:
PROJCRS["NAD83 / UTM zone 11N",
    BASEGEOGCRS["NAD83",
        ID["EPSG",4269]],
    ID["EPSG",26911]]
`

// happyToolHandler emulates all three tools succeeding: the probes
// answer, the converters write non-empty artifacts at the paths named
// in their argument lists.
func happyToolHandler(ogrInfoOut string) func(name string, args []string) (ExecResult, error) {
	return func(name string, args []string) (ExecResult, error) {
		switch filepath.Base(name) {
		case "ogrinfo":
			return ExecResult{Stdout: ogrInfoOut}, nil
		case "ogr2ogr":
			out := args[len(args)-2]
			if err := os.WriteFile(out, []byte(`{"type":"FeatureCollection","features":[]}`), 0o644); err != nil {
				return ExecResult{}, err
			}
			return ExecResult{}, nil
		case "tippecanoe":
			out := argAfter(args, "-o")
			if err := os.WriteFile(out, []byte("PMTiles"), 0o644); err != nil {
				return ExecResult{}, err
			}
			return ExecResult{}, nil
		}
		return ExecResult{}, fmt.Errorf("unexpected tool %s", name)
	}
}

func argAfter(args []string, flag string) string {
	for i, a := range args {
		if a == flag && i+1 < len(args) {
			return args[i+1]
		}
	}
	return ""
}

func testTools() ToolPaths {
	return ToolPaths{OgrInfo: "ogrinfo", Ogr2Ogr: "ogr2ogr", Tippecanoe: "tippecanoe"}
}

// writeShapefileSet lays down a minimal complete shapefile set and
// returns the source pointing at its .shp.
func writeShapefileSet(t *testing.T, dir, base string) ShapefileSource {
	t.Helper()
	require.NoError(t, os.MkdirAll(dir, 0o755))
	for _, ext := range []string{".shp", ".shx", ".dbf"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, base+ext), []byte("stub"), 0o644))
	}
	return ShapefileSource{Path: filepath.Join(dir, base+".shp")}
}
