package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/chenBenjamin97/pose-compare/pkg/compare"
	"github.com/chenBenjamin97/pose-compare/pkg/render"
	"github.com/chenBenjamin97/pose-compare/pkg/utils"
)

//EnvPrefix prefixes every environment variable override, e.g. POSECOMPARE_HTTP_PORT
const EnvPrefix = "POSECOMPARE"

type HTTP struct {
	Port string `mapstructure:"port"`
}

type Directory struct {
	Root   string `mapstructure:"root"`
	Source string `mapstructure:"source"`
}

type Frontend struct {
	StaticFilesPath string `mapstructure:"static-files-path"`
}

type Sampling struct {
	MaxFrames int `mapstructure:"max-frames"`
	FPS       int `mapstructure:"fps"`
}

//Estimator holds the model selection and the per call options of the pose estimator
type Estimator struct {
	compare.EstimatorConfig `mapstructure:",squash"`
	FlipHorizontal          bool    `mapstructure:"flip-horizontal"`
	ScoreThreshold          float64 `mapstructure:"score-threshold"`
}

type Pipeline struct {
	FrameTimeout time.Duration `mapstructure:"frame-timeout"`
	Retries      int           `mapstructure:"retries"`
}

type Log struct {
	Level string `mapstructure:"level"`
}

//Config is the whole configuration, passed explicitly to whoever needs a part of it
type Config struct {
	HTTP      HTTP          `mapstructure:"http"`
	Directory Directory     `mapstructure:"directory"`
	Frontend  Frontend      `mapstructure:"frontend"`
	Sampling  Sampling      `mapstructure:"sampling"`
	Render    render.Config `mapstructure:"render"`
	Estimator Estimator     `mapstructure:"estimator"`
	Pipeline  Pipeline      `mapstructure:"pipeline"`
	Log       Log           `mapstructure:"log"`
}

func setDefaults(v *viper.Viper) {
	r := render.DefaultConfig()
	o := compare.DefaultOptions()

	v.SetDefault("http.port", "8080")
	v.SetDefault("directory.root", "./data")
	v.SetDefault("directory.source", "./data/uploads")
	v.SetDefault("frontend.static-files-path", "./client/")
	v.SetDefault("sampling.max-frames", utils.MaxSampledFrames)
	v.SetDefault("sampling.fps", utils.AssumedFPS)
	v.SetDefault("render.visibility-threshold", r.VisibilityThreshold)
	v.SetDefault("render.line.glow", r.Line.Glow)
	v.SetDefault("render.line.solid", r.Line.Solid)
	v.SetDefault("render.point.glow", r.Point.Glow)
	v.SetDefault("render.point.solid", r.Point.Solid)
	v.SetDefault("render.glow-alpha", r.GlowAlpha)
	v.SetDefault("estimator.kind", o.Estimator.Kind)
	v.SetDefault("estimator.model", o.Estimator.Model)
	v.SetDefault("estimator.quality", o.Estimator.Quality)
	v.SetDefault("estimator.smoothing", o.Estimator.Smoothing)
	v.SetDefault("estimator.segmentation", o.Estimator.Segmentation)
	v.SetDefault("estimator.model-path", "./openpose/graph_opt.pb")
	v.SetDefault("estimator.command", "")
	v.SetDefault("estimator.flip-horizontal", o.Estimate.FlipHorizontal)
	v.SetDefault("estimator.score-threshold", o.Estimate.ScoreThreshold)
	v.SetDefault("pipeline.frame-timeout", o.FrameTimeout)
	v.SetDefault("pipeline.retries", o.Retries)
	v.SetDefault("log.level", "info")
}

//LoadDotEnv loads the given .env files (".env" when none is given) into the process environment.
//Missing files are not an error, variables already set are kept.
func LoadDotEnv(logger *slog.Logger, files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if !errors.Is(err, os.ErrNotExist) {
				logger.Warn("config: could not load env file", "file", f, "err", err)
			}
			continue
		}
		logger.Debug("config: loaded env file", "file", f)
	}
}

//Load reads config.yaml from the first of dirs that has one ("." when none is given).
//A missing file leaves every key at its default, environment variables override both.
func Load(dirs ...string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	if len(dirs) == 0 {
		dirs = []string{"."}
	}
	for _, d := range dirs {
		v.AddConfigPath(d)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("Load: could not read config file, got '%w'", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("Load: could not decode config, got '%w'", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

//Validate rejects values the pipeline cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.HTTP.Port == "" {
		errs = append(errs, errors.New("http.port is empty"))
	}
	if c.Directory.Source == "" {
		errs = append(errs, errors.New("directory.source is empty"))
	}
	if c.Sampling.MaxFrames <= 0 || c.Sampling.MaxFrames > utils.MaxSampledFrames {
		errs = append(errs, fmt.Errorf("sampling.max-frames must be within [1,%d], got %d", utils.MaxSampledFrames, c.Sampling.MaxFrames))
	}
	if c.Sampling.FPS <= 0 {
		errs = append(errs, fmt.Errorf("sampling.fps must be positive, got %d", c.Sampling.FPS))
	}
	if c.Render.VisibilityThreshold < 0 || c.Render.VisibilityThreshold > 1 {
		errs = append(errs, fmt.Errorf("render.visibility-threshold must be within [0,1], got %v", c.Render.VisibilityThreshold))
	}
	if c.Render.GlowAlpha < 0 || c.Render.GlowAlpha > 1 {
		errs = append(errs, fmt.Errorf("render.glow-alpha must be within [0,1], got %v", c.Render.GlowAlpha))
	}
	if c.Pipeline.Retries < 0 {
		errs = append(errs, fmt.Errorf("pipeline.retries must not be negative, got %d", c.Pipeline.Retries))
	}
	if c.Pipeline.FrameTimeout < 0 {
		errs = append(errs, fmt.Errorf("pipeline.frame-timeout must not be negative, got %s", c.Pipeline.FrameTimeout))
	}
	if c.Estimator.Kind == "command" && c.Estimator.Command == "" {
		errs = append(errs, errors.New("estimator.command is required for the command estimator"))
	}
	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

//SessionOptions returns the pipeline options sessions are created with
func (c *Config) SessionOptions() compare.Options {
	return compare.Options{
		Estimator: c.Estimator.EstimatorConfig,
		Estimate: compare.EstimateOptions{
			MaxPoses:       1,
			FlipHorizontal: c.Estimator.FlipHorizontal,
			ScoreThreshold: c.Estimator.ScoreThreshold,
		},
		MaxFrames:    c.Sampling.MaxFrames,
		FrameTimeout: c.Pipeline.FrameTimeout,
		Retries:      c.Pipeline.Retries,
	}
}

//LogLevel parses log.level, unknown values fall back to info
func (c *Config) LogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

//EnsureDirectories creates the data directories that do not exist yet
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Directory.Root, c.Directory.Source} {
		if dir == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0766); err != nil {
			return fmt.Errorf("EnsureDirectories: could not create '%s', got '%w'", dir, err)
		}
	}
	return nil
}
