package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

const (
	ExtShapefile = ".shp"
	ExtGeoJSON   = ".geojson"
	ExtPMTiles   = ".pmtiles"
)

// 缺少 .shx 或 .dbf 时 ogr2ogr 无法读取图层
var requiredCompanions = []string{".shx", ".dbf"}

// ShapefileSource 一个待转换的 shapefile
type ShapefileSource struct {
	Path string
}

// Base returns the file stem shared by the whole shapefile set.
func (s ShapefileSource) Base() string {
	name := filepath.Base(s.Path)
	return strings.TrimSuffix(name, filepath.Ext(name))
}

func (s ShapefileSource) sibling(ext string) string {
	return strings.TrimSuffix(s.Path, filepath.Ext(s.Path)) + ext
}

// PrjPath 投影文件路径 (可能不存在)
func (s ShapefileSource) PrjPath() string {
	return s.sibling(".prj")
}

// MissingCompanions lists required sibling files that do not exist.
func (s ShapefileSource) MissingCompanions() []string {
	var missing []string
	for _, ext := range requiredCompanions {
		if _, err := os.Stat(s.sibling(ext)); err != nil {
			missing = append(missing, filepath.Base(s.sibling(ext)))
		}
	}
	return missing
}

// GeoJSONPath 中间产物路径
func (s ShapefileSource) GeoJSONPath(outDir string) string {
	return filepath.Join(outDir, s.Base()+ExtGeoJSON)
}

// PMTilesPath 最终产物路径
func (s ShapefileSource) PMTilesPath(outDir string) string {
	return filepath.Join(outDir, s.Base()+ExtPMTiles)
}

// discoverSources 扫描输入目录或单个文件
// A directory is walked recursively for *.shp; a named single file
// must exist and carry the shapefile extension. An empty directory
// yields an empty slice, not an error.
func discoverSources(input string) ([]ShapefileSource, error) {
	info, err := os.Stat(input)
	if err != nil {
		return nil, fmt.Errorf("input %s not found: %w", input, err)
	}
	if !info.IsDir() {
		if !strings.EqualFold(filepath.Ext(input), ExtShapefile) {
			return nil, fmt.Errorf("input %s is not a shapefile or directory", input)
		}
		return []ShapefileSource{{Path: input}}, nil
	}

	var sources []ShapefileSource
	err = filepath.Walk(input, func(path string, fi os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if fi.IsDir() {
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), ExtShapefile) {
			sources = append(sources, ShapefileSource{Path: path})
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("scan %s: %w", input, err)
	}
	return sources, nil
}
