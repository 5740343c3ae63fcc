package main

import (
	"flag"
	"fmt"
	"os"
)

var (
	hf         bool
	configPath string
	logLevel   string

	inputPath  string
	outputPath string
	minZoom    int
	maxZoom    int
	workers    int
	noPreview  bool
	serverMode bool
	postChown  bool
	ownerUID   int
	ownerGID   int
)

func InitFlag() {
	flag.BoolVar(&hf, "h", false, "this help")
	flag.StringVar(&configPath, "c", "./config.yaml", "set config `file`")
	flag.StringVar(&logLevel, "l", "info", "set log level (default: info)")
	flag.StringVar(&inputPath, "i", "", "input shapefile or directory")
	flag.StringVar(&outputPath, "o", "", "output directory")
	flag.IntVar(&minZoom, "min-zoom", -1, "minimum zoom level")
	flag.IntVar(&maxZoom, "max-zoom", -1, "maximum zoom level")
	flag.IntVar(&workers, "w", 0, "worker count (default: from config)")
	flag.BoolVar(&noPreview, "no-preview", false, "do not hand off to the viewer after converting")
	flag.BoolVar(&serverMode, "server", false, "viewer mode only, convert nothing")
	flag.BoolVar(&postChown, "post-chown", false, "chown output artifacts after conversion")
	flag.IntVar(&ownerUID, "owner-uid", -1, "uid for -post-chown (overrides HOST_UID)")
	flag.IntVar(&ownerGID, "owner-gid", -1, "gid for -post-chown (overrides HOST_GID)")
	flag.Usage = usage
	flag.Parse()

	if hf {
		flag.Usage()
		os.Exit(0)
	}
}

func usage() {
	fmt.Fprintf(os.Stderr, `shptiler version: shptiler/v0.1.0
Usage: shptiler [-h] [-c filename] [-l logLevel] [-i input] [-o output]
`)
	flag.PrintDefaults()
}
