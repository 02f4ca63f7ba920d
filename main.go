package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/yumekawa-dev/kanade/engine"
	"github.com/yumekawa-dev/kanade/engine/config"
	"github.com/yumekawa-dev/kanade/engine/core"
	"github.com/yumekawa-dev/kanade/runner"
)

func main() {
	configPath := flag.String("config", "kanade.toml", "path to the configuration file")
	chartPath := flag.String("chart", "", "chart file to play, overriding the configuration")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		core.LogFatal("load configuration: %v", err)
	}
	if *chartPath != "" {
		cfg.Game.ChartPath = *chartPath
	}

	game, err := runner.New(cfg)
	if err != nil {
		core.LogFatal("create game: %v", err)
	}

	e, err := engine.New(game)
	if err != nil {
		core.LogFatal("create engine: %v", err)
	}
	if err := e.Initialize(); err != nil {
		core.LogFatal("initialize engine: %v", err)
	}

	// signal channel to capture system calls
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
	go func() {
		<-sigCh
		e.RequestQuit()
	}()

	if err := e.Run(); err != nil {
		core.LogFatal("engine run: %v", err)
	}
}
