package main

import (
	"context"
	"strconv"
	"strings"
)

// launchPreview hands the output directory to the configured viewer
// command. The viewer itself (static page, tile server) is an
// external collaborator; it discovers tile archives by scanning the
// output directory on its own.
func launchPreview(runner Runner) {
	command := conf.Preview.Command
	if command == "" {
		log.Warn("no preview command configured, skipping viewer hand-off")
		return
	}

	args := make([]string, 0, len(conf.Preview.Args))
	for _, a := range conf.Preview.Args {
		a = strings.Replace(a, "{output}", conf.Output.Directory, -1)
		a = strings.Replace(a, "{port}", strconv.Itoa(conf.Preview.Port), -1)
		args = append(args, a)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	SafeExitInst.Register(cancel)

	log.Infof("starting viewer at http://localhost:%d", conf.Preview.Port)
	res, err := runner.Run(ctx, command, args...)
	if err != nil {
		log.Errorf("viewer process error: %v", err)
		return
	}
	if res.ExitCode != 0 {
		log.Errorf("viewer exited %d: %s", res.ExitCode, strings.TrimSpace(res.Stderr))
	}
}
