package main

import (
	"bytes"
	"context"
	"os/exec"
)

// ExecResult 外部命令执行结果
type ExecResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
}

// Runner 外部命令执行抽象, 测试时可替换
type Runner interface {
	Run(ctx context.Context, name string, args ...string) (ExecResult, error)
}

type execRunner struct{}

// Run executes name with args and captures both output streams.
// A non-zero exit is not an error here; the exit code is returned
// instead. An error means the process could not run at all, or the
// context expired and the child was killed.
func (execRunner) Run(ctx context.Context, name string, args ...string) (ExecResult, error) {
	cmd := exec.CommandContext(ctx, name, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	res := ExecResult{Stdout: stdout.String(), Stderr: stderr.String()}
	if err != nil {
		if ctx.Err() != nil {
			return res, ctx.Err()
		}
		if ee, ok := err.(*exec.ExitError); ok {
			res.ExitCode = ee.ExitCode()
			return res, nil
		}
		return res, err
	}
	return res, nil
}
