package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hashicorp/go-envparse"
	flag "github.com/spf13/pflag"

	"github.com/unaxfromsibiria/roomb-go/internal/config"
	"github.com/unaxfromsibiria/roomb-go/internal/connection"
	"github.com/unaxfromsibiria/roomb-go/internal/logging"
	"github.com/unaxfromsibiria/roomb-go/internal/server"
)

const confEnvVariable = "CONF"

var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	if len(os.Args) > 1 && os.Args[1] == "version" {
		fmt.Printf("dispatchd %s (built %s)\n", Version, BuildTime)
		return
	}

	loadDotEnv()

	var (
		confFlag    = flag.String("conf", "", "path to the JSON configuration file (overrides "+confEnvVariable+")")
		listenFlag  = flag.String("listen", "", "override the configured listen socket, e.g. 127.0.0.1:5882")
		workersFlag = flag.Int("workers", 0, "override the configured worker pool size")
	)
	flag.Parse()

	confFile := os.Getenv(confEnvVariable)
	if *confFlag != "" {
		confFile = *confFlag
	}
	if confFile == "" {
		fmt.Fprintf(os.Stderr, "dispatchd: set env variable %s or pass --conf\n", confEnvVariable)
		os.Exit(1)
	}

	cfg, err := config.Load(confFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "dispatchd: %v\n", err)
		os.Exit(1)
	}

	logLevel := slog.LevelInfo
	if cfg.IsDebug() {
		logLevel = slog.LevelDebug
	}
	logWriter := logging.SetupWriter(cfg.LogDir(), cfg.LogRotationEnabled(), cfg.LogKeepDays())
	slog.SetDefault(slog.New(slog.NewTextHandler(logWriter, &slog.HandlerOptions{Level: logLevel})))

	slog.Info("dispatchd starting", "version", Version, "build", BuildTime, "description", cfg.String())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if rw, ok := logWriter.(*logging.RotatingWriter); ok {
		rw.Start(ctx)
		defer rw.Close()
		connection.SetAccessLogOutput(rw.Stream("access"))
	}

	srvCfg := server.Config{
		Socket:               cfg.Socket(),
		Workers:              cfg.Workers(),
		CommandBufferSize:    cfg.CommandBufferSize(),
		Node:                 cfg.Node(),
		Secret:               cfg.Secret(),
		ConnectionBufferSize: cfg.ConnectionBufferSize(),
	}
	if *listenFlag != "" {
		srvCfg.Socket = *listenFlag
	}
	if *workersFlag > 0 {
		srvCfg.Workers = *workersFlag
	}

	srv := server.New(srvCfg)

	config.StartWatcher(ctx, confFile, 5*time.Second, func(old, newCfg *config.Config) {
		srv.Reconfigure(newCfg.Workers(), newCfg.CommandBufferSize())
		connection.LogConfigReloaded(newCfg.Workers(), newCfg.CommandBufferSize())
	})

	if err := srv.Start(ctx); err != nil {
		slog.Error("server stopped with error", "error", err)
		os.Exit(1)
	}
}

// loadDotEnv loads a ".env" file, if present, into the process
// environment before configuration is read, for local-development
// convenience. Missing or unreadable .env files are silently ignored;
// this is a convenience, not a requirement.
func loadDotEnv() {
	f, err := os.Open(".env")
	if err != nil {
		return
	}
	defer f.Close()

	vars, err := envparse.Parse(f)
	if err != nil {
		slog.Debug("failed to parse .env", "error", err)
		return
	}
	for k, v := range vars {
		if _, set := os.LookupEnv(k); !set {
			os.Setenv(k, v)
		}
	}
}
