package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/aleister1102/webmirror/internal/archiver"
	"github.com/aleister1102/webmirror/internal/config"
	"github.com/aleister1102/webmirror/internal/fetcher"
	"github.com/aleister1102/webmirror/internal/filter"
	"github.com/aleister1102/webmirror/internal/logger"
	"github.com/aleister1102/webmirror/internal/pipeline"
	"github.com/aleister1102/webmirror/internal/policy"
	"github.com/aleister1102/webmirror/internal/server"
)

func main() {
	flags := ParseFlags()

	gCfg, err := config.LoadGlobalConfig(flags.GlobalConfigFile)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not load global config using path '%s': %v", flags.GlobalConfigFile, err)
	}
	if flags.ListenAddress != "" {
		gCfg.ServerConfig.ListenAddress = flags.ListenAddress
	}

	zLogger, err := logger.New(gCfg.LogConfig)
	if err != nil {
		log.Fatalf("[FATAL] Main: Could not initialize logger: %v", err)
	}
	zLogger.Info().Msg("Logger initialized successfully.")

	signatures, err := policy.NewSignatureMatcher(gCfg.PolicyConfig.Signatures)
	if err != nil {
		zLogger.Fatal().Err(err).Msg("Could not compile signature table")
	}
	trust := policy.NewTrustPolicy(gCfg.PolicyConfig)
	scripts := filter.NewScriptAnalyzer(signatures, zLogger)

	f := fetcher.NewFetcher(gCfg.FetcherConfig, zLogger)
	f.MaxBodyBytes = int64(gCfg.MirrorConfig.MaxAssetSizeMB) * 1024 * 1024

	pl := pipeline.New(f, trust, signatures, scripts, gCfg.MirrorConfig, zLogger)

	workDir := gCfg.MirrorConfig.WorkDir
	if workDir == "" {
		workDir = os.TempDir()
	}
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		zLogger.Fatal().Err(err).Str("dir", workDir).Msg("Could not create work directory")
	}

	srv := server.New(gCfg.ServerConfig, pl, archiver.New(zLogger), workDir, zLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Start(ctx); err != nil {
		zLogger.Fatal().Err(err).Msg("HTTP server failed")
	}
	zLogger.Info().Msg("Shutdown complete.")
}
