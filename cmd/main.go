package main

import (
	"log/slog"
	"os"

	"github.com/lmittmann/tint"

	"github.com/chenBenjamin97/pose-compare/pkg/api"
	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/config"
	"github.com/chenBenjamin97/pose-compare/pkg/video"
)

func main() {
	level := new(slog.LevelVar)
	logger := slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      level,
			TimeFormat: "15:04:05",
		}),
	)
	slog.SetDefault(logger)

	config.LoadDotEnv(logger)
	cfg, err := config.Load(".")
	if err != nil {
		logger.Error("Error: Could not load configuration", "err", err)
		os.Exit(1)
	}
	level.Set(cfg.LogLevel())

	//create missing directories from config file
	if err := cfg.EnsureDirectories(); err != nil {
		logger.Error("Error: Could not create data directories", "err", err)
		os.Exit(1)
	}

	server := api.NewServer(cfg, api.Deps{
		OpenSource: func(path string) (compare.Source, error) {
			return video.OpenCapture(path, cfg.Sampling.FPS)
		},
		Estimators: video.NewEstimatorFactory(logger),
		Encode:     video.EncodeJPEG,
	}, logger)
	defer server.Close()

	logger.Info("serving", "port", cfg.HTTP.Port, "estimator", cfg.Estimator.Kind, "model", cfg.Estimator.Model)
	r := server.SetRouter()
	if err := r.Run(":" + cfg.HTTP.Port); err != nil {
		logger.Error("Error: server stopped", "err", err)
		os.Exit(1)
	}
}
