package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

// JobState 转换任务状态
type JobState string

const (
	StatePending        JobState = "pending"
	StateDetectingCRS   JobState = "detecting-crs"
	StateConverting     JobState = "converting-geojson"
	StateBuildingTiles  JobState = "building-tiles"
	StateSucceeded      JobState = "succeeded"
	StateFailed         JobState = "failed"
	StateOwnershipFixed JobState = "ownership-fixed"
)

// ErrKind 任务失败类别
type ErrKind int

const (
	ErrKindNone ErrKind = iota
	ErrKindMissingCompanion
	ErrKindConversion
	ErrKindTileBuild
	ErrKindTimeout
	ErrKindCollision
)

var errTimedOut = errors.New("timed out")

// ConversionResult one per source, created when the job finishes and
// never mutated afterwards.
type ConversionResult struct {
	Source    ShapefileSource
	Succeeded bool
	CRS       string
	GeoJSON   string
	PMTiles   string
	Elapsed   time.Duration
	Kind      ErrKind
	Err       error
}

// ConversionJob drives one shapefile through CRS detection, GeoJSON
// conversion and the tile build. One job's failure is captured in its
// result and never aborts the batch.
type ConversionJob struct {
	Source    ShapefileSource
	OutDir    string
	Reproject bool
	Explicit  *ZoomRange
	ExtraArgs []string
	Timeout   time.Duration
	Owner     *ownerSpec

	runner    Runner
	tools     ToolPaths
	inspector *CRSInspector
	planner   *ZoomPlanner
}

func (j *ConversionJob) Run(ctx context.Context) ConversionResult {
	start := time.Now()
	res := ConversionResult{Source: j.Source}
	j.transition(StatePending, nil)

	if missing := j.Source.MissingCompanions(); len(missing) > 0 {
		return j.fail(res, start, ErrKindMissingCompanion,
			fmt.Errorf("shapefile set incomplete, missing companion file(s): %s", strings.Join(missing, ", ")))
	}

	// 探测坐标系, 失败则降级
	j.transition(StateDetectingCRS, nil)
	info, err := j.inspector.Detect(ctx, j.Source)
	detected := err == nil
	if detected {
		res.CRS = info.Code
	} else {
		log.WithField("source", j.Source.Base()).
			Warnf("CRS detection failed, converting without explicit override: %v", err)
	}

	// shapefile -> GeoJSON
	j.transition(StateConverting, nil)
	geojson := j.Source.GeoJSONPath(j.OutDir)
	// stale output makes the GeoJSON driver fail on layer delete
	os.Remove(geojson)
	args := reprojectionArgs(info, detected, j.Reproject)
	args = append(args, "-lco", "RFC7946=YES", "-f", "GeoJSON", geojson, j.Source.Path)
	if err := j.runTool(ctx, j.tools.Ogr2Ogr, args); err != nil {
		return j.fail(res, start, ErrKindConversion, err)
	}
	if err := checkArtifact(geojson); err != nil {
		return j.fail(res, start, ErrKindConversion, err)
	}
	res.GeoJSON = geojson

	zr := j.planner.Plan(ctx, j.Source, j.Explicit)

	// GeoJSON -> tile archive
	j.transition(StateBuildingTiles, nil)
	pmtiles := j.Source.PMTilesPath(j.OutDir)
	targs := []string{
		"--minimum-zoom", strconv.Itoa(zr.Min),
		"--maximum-zoom", strconv.Itoa(zr.Max),
	}
	targs = append(targs, sanitizeTileArgs(j.ExtraArgs)...)
	targs = append(targs, "-o", pmtiles, geojson)
	if err := j.runTool(ctx, j.tools.Tippecanoe, targs); err != nil {
		return j.fail(res, start, ErrKindTileBuild, err)
	}
	if err := checkArtifact(pmtiles); err != nil {
		return j.fail(res, start, ErrKindTileBuild, err)
	}
	res.PMTiles = pmtiles

	res.Succeeded = true
	res.Elapsed = time.Since(start)
	j.transition(StateSucceeded, nil)

	// 修改产物属主, 失败不影响任务结果
	if j.Owner != nil {
		if err := chownArtifacts(res, *j.Owner); err != nil {
			log.WithField("source", j.Source.Base()).
				Warnf("ownership fix-up failed: %v", err)
		} else {
			j.transition(StateOwnershipFixed, nil)
		}
	}
	return res
}

func (j *ConversionJob) runTool(ctx context.Context, name string, args []string) error {
	if j.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.Timeout)
		defer cancel()
	}
	res, err := j.runner.Run(ctx, name, args...)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return fmt.Errorf("%s %w after %s", filepath.Base(name), errTimedOut, j.Timeout)
		}
		return fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(res.Stdout)
		}
		return fmt.Errorf("%s exited %d: %s", filepath.Base(name), res.ExitCode, detail)
	}
	if res.Stderr != "" {
		log.WithField("source", j.Source.Base()).Debug(strings.TrimSpace(res.Stderr))
	}
	return nil
}

func (j *ConversionJob) fail(res ConversionResult, start time.Time, kind ErrKind, err error) ConversionResult {
	if errors.Is(err, errTimedOut) {
		kind = ErrKindTimeout
	}
	res.Kind = kind
	res.Err = err
	res.Elapsed = time.Since(start)
	j.transition(StateFailed, err)
	return res
}

func (j *ConversionJob) transition(state JobState, err error) {
	fields := logrus.Fields{"source": j.Source.Base(), "state": state}
	if err != nil {
		fields["error"] = err.Error()
		log.WithFields(fields).Error("job state")
		return
	}
	log.WithFields(fields).Debug("job state")
}

// reprojectionArgs threads the detected CRS into the converter call.
// Degraded mode (no detection) keeps the target projection but lets
// the converter read the source projection from the .prj itself.
func reprojectionArgs(info CRSInfo, detected, enabled bool) []string {
	if !enabled {
		return nil
	}
	if !detected {
		return []string{"-t_srs", "EPSG:4326"}
	}
	if info.WebFriendly() {
		return nil
	}
	if info.HasEPSGCode() {
		return []string{"-s_srs", info.Code, "-t_srs", "EPSG:4326"}
	}
	return []string{"-t_srs", "EPSG:4326"}
}

func checkArtifact(path string) error {
	fi, err := os.Stat(path)
	if err != nil {
		return fmt.Errorf("expected output %s was not created", path)
	}
	if fi.Size() == 0 {
		return fmt.Errorf("output %s is empty", path)
	}
	return nil
}
