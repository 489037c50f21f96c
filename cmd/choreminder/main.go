package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"choreminder/internal/app"
	logx "choreminder/pkg/logx"
)

func main() {
	var cfgPath string
	flag.StringVar(&cfgPath, "config", "./config.yaml", "path to config file (yaml or json)")
	flag.Parse()

	// Until the config is loaded, failures go to a plain console logger.
	boot := logx.NewConsole("info")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	a, err := app.New(cfgPath)
	if err != nil {
		boot.Error("fatal", logx.String("config", cfgPath), logx.Err(err))
		os.Exit(1)
	}
	if err := a.Start(ctx); err != nil {
		boot.Error("fatal start", logx.Err(err))
		os.Exit(1)
	}

	reason := app.StopSignal
	select {
	case <-ctx.Done():
	case <-a.Done():
		if a.Err() != nil {
			reason = app.StopFatalError
		}
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer stopCancel()
	_ = a.Stop(stopCtx, reason)

	if err := a.Err(); err != nil {
		boot.Error("fatal", logx.Err(err))
		stopCancel()
		os.Exit(1)
	}
}
