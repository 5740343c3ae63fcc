package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"
)

const (
	toolOgrInfo    = "ogrinfo"
	toolOgr2Ogr    = "ogr2ogr"
	toolTippecanoe = "tippecanoe"

	envOgrInfo    = "OGRINFO_PATH"
	envOgr2Ogr    = "OGR2OGR_PATH"
	envTippecanoe = "TIPPECANOE_PATH"

	probeTimeout = 10 * time.Second
)

// ToolPaths 外部工具路径, 进程启动时解析一次
type ToolPaths struct {
	OgrInfo    string
	Ogr2Ogr    string
	Tippecanoe string
}

type ToolNotFoundError struct {
	Tool   string
	Path   string
	Detail string
}

func (e *ToolNotFoundError) Error() string {
	return fmt.Sprintf("required tool %s not found or not runnable (%s): %s", e.Tool, e.Path, e.Detail)
}

// ResolveTools 解析三个外部工具并验证可执行
// Resolution order: env override, then PATH, then the bare name.
// Each binary gets one eager version probe so a batch of N files
// cannot discover a missing tool at file N.
func ResolveTools(runner Runner) (ToolPaths, error) {
	tp := ToolPaths{
		OgrInfo:    locateTool(envOgrInfo, toolOgrInfo),
		Ogr2Ogr:    locateTool(envOgr2Ogr, toolOgr2Ogr),
		Tippecanoe: locateTool(envTippecanoe, toolTippecanoe),
	}
	probes := []struct {
		tool string
		path string
	}{
		{toolOgrInfo, tp.OgrInfo},
		{toolOgr2Ogr, tp.Ogr2Ogr},
		{toolTippecanoe, tp.Tippecanoe},
	}
	for _, p := range probes {
		if err := probeTool(runner, p.tool, p.path); err != nil {
			return ToolPaths{}, err
		}
	}
	return tp, nil
}

func locateTool(envVar, name string) string {
	if p := os.Getenv(envVar); p != "" {
		return p
	}
	if p, err := exec.LookPath(name); err == nil {
		return p
	}
	return name
}

func probeTool(runner Runner, tool, path string) error {
	ctx, cancel := context.WithTimeout(context.Background(), probeTimeout)
	defer cancel()

	res, err := runner.Run(ctx, path, "--version")
	if err != nil {
		return &ToolNotFoundError{Tool: tool, Path: path, Detail: err.Error()}
	}
	if res.ExitCode != 0 {
		detail := strings.TrimSpace(res.Stderr)
		if detail == "" {
			detail = fmt.Sprintf("exit code %d", res.ExitCode)
		}
		return &ToolNotFoundError{Tool: tool, Path: path, Detail: detail}
	}
	return nil
}
