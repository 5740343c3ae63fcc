package main

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/teris-io/shortid"
	pb "gopkg.in/cheggaaa/pb.v1"
)

func InitTask() {
	start := time.Now()

	runner := execRunner{}
	if serverMode {
		launchPreview(runner)
		return
	}

	// 工具缺失直接终止, 不等到第 N 个文件才发现
	tools, err := ResolveTools(runner)
	if err != nil {
		log.Fatalf("startup check failed: %v", err)
	}

	input := inputPath
	if input == "" {
		input = conf.Input.Directory
	}
	outDir := outputPath
	if outDir == "" {
		outDir = conf.Output.Directory
	}
	os.MkdirAll(outDir, os.ModePerm)

	sources, err := discoverSources(input)
	if err != nil {
		log.Fatalf("%v", err)
	}
	if len(sources) == 0 {
		log.Infof("no shapefiles found under %s", input)
		return
	}
	log.Infof("found %d shapefile(s) to convert", len(sources))

	poolSize := workers
	if poolSize <= 0 {
		poolSize = conf.Task.Workers
	}

	batch := NewBatch(sources, tools, runner, BatchConfig{
		OutDir:    outDir,
		Workers:   poolSize,
		Reproject: conf.Reproject,
		Explicit:  explicitZoom(),
		Defaults:  defaultZoom(),
		ExtraArgs: conf.Tippecanoe.Args,
		Timeout:   time.Duration(conf.Task.Timeout) * time.Second,
		Owner:     resolveOwner(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	// 注册安全退出
	SafeExitInst.Register(batch.Abort)

	report := batch.Run(ctx)

	for _, res := range report.Results {
		if !res.Succeeded {
			log.Errorf("%s failed: %v", res.Source.Path, res.Err)
		}
	}
	log.WithFields(logrus.Fields{
		"batch":     report.ID,
		"total":     report.Total,
		"succeeded": report.Succeeded,
		"failed":    report.Failed,
	}).Infof("conversion complete, %d/%d succeeded", report.Succeeded, report.Total)

	secs := time.Since(start).Seconds()
	log.Printf("\n%.3fs finished...", secs)

	if report.Total > 0 && report.Succeeded == 0 {
		os.Exit(1)
	}

	if !noPreview && !conf.Preview.Skip && report.Succeeded > 0 {
		launchPreview(runner)
	}
}

// explicitZoom is non-nil only when the caller pinned both bounds;
// it then overrides any computed or tool-default zoom behavior.
func explicitZoom() *ZoomRange {
	if minZoom < 0 || maxZoom < 0 {
		return nil
	}
	zr := ZoomRange{Min: minZoom, Max: maxZoom}
	return &zr
}

func defaultZoom() ZoomRange {
	zr := ZoomRange{Min: conf.Zoom.Min, Max: conf.Zoom.Max}
	if minZoom >= 0 {
		zr.Min = minZoom
	}
	if maxZoom >= 0 {
		zr.Max = maxZoom
	}
	return zr
}

// ProgressFunc 任务完成回调, done 单调递增
type ProgressFunc func(done, total int, res ConversionResult)

type BatchConfig struct {
	OutDir    string
	Workers   int
	Reproject bool
	Explicit  *ZoomRange
	Defaults  ZoomRange
	ExtraArgs []string
	Timeout   time.Duration
	Owner     *ownerSpec
	OnDone    ProgressFunc
	HideBar   bool
}

// Batch 批量转换任务
type Batch struct {
	ID      string
	Sources []ShapefileSource

	cfg    BatchConfig
	runner Runner
	tools  ToolPaths

	results []ConversionResult
	done    int
	mu      sync.Mutex
	pmu     sync.Mutex
	wg      sync.WaitGroup
	workers chan struct{}
	cancel  context.CancelFunc
}

// BatchReport 批次汇总, 结果顺序与发现顺序一致
type BatchReport struct {
	ID        string
	Results   []ConversionResult
	Total     int
	Succeeded int
	Failed    int
	Elapsed   time.Duration
}

// NewBatch 创建批量转换任务
func NewBatch(sources []ShapefileSource, tools ToolPaths, runner Runner, cfg BatchConfig) *Batch {
	id, _ := shortid.Generate()
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	return &Batch{
		ID:      id,
		Sources: sources,
		cfg:     cfg,
		runner:  runner,
		tools:   tools,
		results: make([]ConversionResult, len(sources)),
		workers: make(chan struct{}, cfg.Workers),
	}
}

// Abort 取消批次, 已完成的结果保留在报告里
func (b *Batch) Abort() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.cancel != nil {
		b.cancel()
	}
}

// Run executes every job under the worker pool and aggregates results
// back into discovery order, whatever order the workers finish in.
func (b *Batch) Run(ctx context.Context) *BatchReport {
	start := time.Now()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	b.mu.Lock()
	b.cancel = cancel
	b.mu.Unlock()

	var bar *pb.ProgressBar
	if !b.cfg.HideBar {
		bar = pb.New(len(b.Sources)).Prefix(fmt.Sprintf("Batch %s : ", b.ID))
		bar.SetRefreshRate(time.Second)
		bar.Start()
	}

	// 输出重名检测: 重复的 base name 直接判失败, 不启动任务
	seen := make(map[string]int)
	launch := make([]bool, len(b.Sources))
	for i, src := range b.Sources {
		if first, dup := seen[src.Base()]; dup {
			b.results[i] = ConversionResult{
				Source: src,
				Kind:   ErrKindCollision,
				Err:    fmt.Errorf("output name %q collides with %s", src.Base(), b.Sources[first].Path),
			}
			continue
		}
		seen[src.Base()] = i
		launch[i] = true
	}

	for i, src := range b.Sources {
		if !launch[i] {
			b.complete(bar, b.results[i])
			continue
		}
		// 向队列申请 worker
		select {
		case b.workers <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			log.Warnf("batch %s canceled, %d job(s) not started", b.ID, len(b.Sources)-i)
			break
		}
		b.wg.Add(1)
		go func(idx int, src ShapefileSource) {
			defer func() {
				b.wg.Done()
				<-b.workers
			}()
			res := b.newJob(src).Run(ctx)
			b.mu.Lock()
			b.results[idx] = res
			b.mu.Unlock()
			b.complete(bar, res)
		}(i, src)
	}
	b.wg.Wait()
	if bar != nil {
		bar.Finish()
	}
	return b.report(start)
}

func (b *Batch) newJob(src ShapefileSource) *ConversionJob {
	return &ConversionJob{
		Source:    src,
		OutDir:    b.cfg.OutDir,
		Reproject: b.cfg.Reproject,
		Explicit:  b.cfg.Explicit,
		ExtraArgs: b.cfg.ExtraArgs,
		Timeout:   b.cfg.Timeout,
		Owner:     b.cfg.Owner,
		runner:    b.runner,
		tools:     b.tools,
		inspector: NewCRSInspector(b.runner, b.tools, b.cfg.Timeout),
		planner:   NewZoomPlanner(b.runner, b.tools, b.cfg.Defaults, b.cfg.Timeout),
	}
}

// complete 串行更新进度, 保证计数单调且观察者不交错
// Progress has its own mutex: the observer never runs under b.mu, so
// it may react to a completion by calling Abort directly.
func (b *Batch) complete(bar *pb.ProgressBar, res ConversionResult) {
	b.pmu.Lock()
	b.done++
	done := b.done
	if bar != nil {
		bar.Increment()
	}
	if b.cfg.OnDone != nil {
		b.cfg.OnDone(done, len(b.Sources), res)
	}
	b.pmu.Unlock()

	if res.Succeeded {
		log.Infof("%s -> %s (%dms)", res.Source.Base(), res.PMTiles, res.Elapsed.Milliseconds())
	}
}

func (b *Batch) report(start time.Time) *BatchReport {
	rep := &BatchReport{ID: b.ID}
	for _, res := range b.results {
		// canceled before launch, nothing to report
		if res.Source.Path == "" {
			continue
		}
		rep.Results = append(rep.Results, res)
		rep.Total++
		if res.Succeeded {
			rep.Succeeded++
		} else {
			rep.Failed++
		}
	}
	rep.Elapsed = time.Since(start)
	return rep
}
