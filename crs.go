package main

import (
	"context"
	"fmt"
	"os"
	"regexp"
	"strings"
	"time"
)

// CRSInfo 探测到的坐标系
type CRSInfo struct {
	// Code is "EPSG:xxxx" when a code could be extracted,
	// otherwise the raw WKT declaration.
	Code string
}

// WebFriendly reports whether the source is already geographic or
// Web-Mercator equivalent, in which case no reprojection flags are
// threaded into the converter invocation.
func (c CRSInfo) WebFriendly() bool {
	switch c.Code {
	case "EPSG:4326", "EPSG:3857", "OGC:CRS84", "CRS:84":
		return true
	}
	// bare geographic WKT without an embedded code
	return strings.HasPrefix(c.Code, "GEOGCS")
}

// HasEPSGCode reports whether Code can be handed to ogr2ogr as -s_srs.
func (c CRSInfo) HasEPSGCode() bool {
	return strings.HasPrefix(c.Code, "EPSG:")
}

var (
	// ogrinfo 输出里 WKT2 的 ID 声明, 最后一个是主坐标系
	epsgIDPattern       = regexp.MustCompile(`ID\["EPSG",(\d{3,5})\]`)
	epsgLoosePattern    = regexp.MustCompile(`EPSG["\s:]*["\s]*(\d{3,5})`)
	prjAuthorityPattern = regexp.MustCompile(`(?i)AUTHORITY\s*\[\s*"EPSG"\s*,\s*"(\d{3,5})"\s*\]`)
	prjLoosePattern     = regexp.MustCompile(`(?i)EPSG\s*[:\s]\s*(\d{3,5})`)
)

// CRSInspector 通过 ogrinfo 探测坐标系, 失败时回退解析 .prj
type CRSInspector struct {
	runner  Runner
	tools   ToolPaths
	timeout time.Duration
}

func NewCRSInspector(runner Runner, tools ToolPaths, timeout time.Duration) *CRSInspector {
	return &CRSInspector{runner: runner, tools: tools, timeout: timeout}
}

// Detect probes the source CRS. A failure is non-fatal to callers:
// the conversion degrades to running without an explicit CRS override.
func (ci *CRSInspector) Detect(ctx context.Context, src ShapefileSource) (CRSInfo, error) {
	if ci.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, ci.timeout)
		defer cancel()
	}

	res, err := ci.runner.Run(ctx, ci.tools.OgrInfo, "-al", "-so", src.Path)
	if err == nil && res.ExitCode == 0 {
		if info, ok := parseOgrInfoCRS(res.Stdout); ok {
			return info, nil
		}
		log.Warnf("ogrinfo reported no EPSG for %s, falling back to .prj", src.Path)
	} else {
		log.Warnf("ogrinfo failed for %s, falling back to .prj", src.Path)
	}

	return parsePrj(src.PrjPath())
}

func parseOgrInfoCRS(text string) (CRSInfo, bool) {
	// prefer the last explicit EPSG id, which names the top-level CRS
	if m := epsgIDPattern.FindAllStringSubmatch(text, -1); len(m) > 0 {
		return CRSInfo{Code: "EPSG:" + m[len(m)-1][1]}, true
	}
	if m := epsgLoosePattern.FindStringSubmatch(text); m != nil {
		return CRSInfo{Code: "EPSG:" + m[1]}, true
	}
	for _, line := range strings.Split(text, "\n") {
		if strings.Contains(line, "PROJCS") || strings.Contains(line, "GEOGCS") {
			return CRSInfo{Code: strings.TrimSpace(line)}, true
		}
	}
	return CRSInfo{}, false
}

// parsePrj 解析 .prj 的 WKT (单行或多行)
func parsePrj(path string) (CRSInfo, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return CRSInfo{}, fmt.Errorf("no readable .prj companion: %w", err)
	}
	text := string(data)

	if m := prjAuthorityPattern.FindStringSubmatch(text); m != nil {
		return CRSInfo{Code: "EPSG:" + m[1]}, nil
	}
	if m := prjLoosePattern.FindStringSubmatch(text); m != nil {
		return CRSInfo{Code: "EPSG:" + m[1]}, nil
	}

	lower := strings.ToLower(text)
	switch {
	case strings.Contains(lower, "wgs_84"),
		strings.Contains(lower, "wgs 84"),
		strings.Contains(lower, "gcs_wgs_1984"):
		return CRSInfo{Code: "EPSG:4326"}, nil
	case strings.Contains(lower, "pseudo-mercator"),
		strings.Contains(lower, "popular visualisation pseudo mercator"),
		strings.Contains(lower, "mercator"):
		return CRSInfo{Code: "EPSG:3857"}, nil
	}

	// raw WKT, caller may still classify it
	return CRSInfo{Code: strings.TrimSpace(text)}, nil
}
