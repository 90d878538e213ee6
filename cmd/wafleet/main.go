package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/talkincode/wafleet/config"
	"github.com/talkincode/wafleet/internal/adminapi"
	"github.com/talkincode/wafleet/internal/app"
	"github.com/talkincode/wafleet/internal/webserver"
	"go.uber.org/zap"
)

var (
	h        = flag.Bool("h", false, "help usage")
	showVer  = flag.Bool("v", false, "show version")
	conffile = flag.String("c", "", "config yaml file")
	initdb   = flag.Bool("initdb", false, "drop and recreate database schema")
	dbdebug  = flag.Bool("x", false, "enable debug mode")
)

var (
	BuildVersion = "dev"
)

func printHelp() {
	if *h {
		ustr := fmt.Sprintf("wafleet version: %s, usage: wafleet -h\nOptions:", BuildVersion)
		fmt.Fprintf(os.Stderr, "%s\n", ustr)
		flag.PrintDefaults()
		os.Exit(0)
	}
}

func main() {
	flag.Parse()
	printHelp()

	if *showVer {
		fmt.Println(BuildVersion)
		os.Exit(0)
	}

	cfg, err := config.LoadConfig(*conffile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}
	if *dbdebug {
		cfg.System.Debug = true
	}

	application := app.NewApplication(cfg)
	application.Init(cfg)
	defer application.Release()

	if *initdb {
		application.InitDb()
		zap.L().Info("database schema recreated")
		os.Exit(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigc := make(chan os.Signal, 1)
		signal.Notify(sigc, syscall.SIGINT, syscall.SIGTERM)
		<-sigc
		zap.L().Info("shutdown signal received")
		cancel()
	}()

	application.StartBackgroundJobs(ctx)

	server := webserver.Init(application)
	adminapi.InitRouter()

	if err := server.Start(ctx); err != nil {
		zap.L().Fatal("web server failed", zap.Error(err))
	}
}
