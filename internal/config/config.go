package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"

	"github.com/roach88/knotter/internal/validate"
)

// EnvPrefix prefixes every environment override, e.g. KNOTTER_SERVER_ADDR.
const EnvPrefix = "KNOTTER_"

//go:embed schema.cue
var schemaSource string

// Config is the complete knotter configuration.
type Config struct {
	Server     ServerConfig     `json:"server" yaml:"server" envPrefix:"SERVER_"`
	Log        LogConfig        `json:"log" yaml:"log" envPrefix:"LOG_"`
	Storage    StorageConfig    `json:"storage" yaml:"storage" envPrefix:"STORAGE_"`
	Geometry   GeometryConfig   `json:"geometry" yaml:"geometry" envPrefix:"GEOMETRY_"`
	Projection ProjectionConfig `json:"projection" yaml:"projection" envPrefix:"PROJECTION_"`
	Tracing    TracingConfig    `json:"tracing" yaml:"tracing" envPrefix:"TRACING_"`
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr            string        `json:"addr" yaml:"addr" env:"ADDR"`
	PageSize        int           `json:"page_size" yaml:"page_size" env:"PAGE_SIZE"`
	RateLimit       float64       `json:"rate_limit" yaml:"rate_limit" env:"RATE_LIMIT"`
	RateBurst       int           `json:"rate_burst" yaml:"rate_burst" env:"RATE_BURST"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout" yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
}

// LogConfig configures the slog handler.
type LogConfig struct {
	Level  string `json:"level" yaml:"level" env:"LEVEL"`
	Format string `json:"format" yaml:"format" env:"FORMAT"`
}

// StorageConfig selects the event log backend.
type StorageConfig struct {
	Driver string `json:"driver" yaml:"driver" env:"DRIVER"`
	Path   string `json:"path" yaml:"path" env:"PATH"`
}

// GeometryConfig holds the validation limits of every globe.
type GeometryConfig struct {
	SphereRadius     float64 `json:"sphere_radius" yaml:"sphere_radius" env:"SPHERE_RADIUS"`
	BallRadius       float64 `json:"ball_radius" yaml:"ball_radius" env:"BALL_RADIUS"`
	SurfaceTolerance float64 `json:"surface_tolerance" yaml:"surface_tolerance" env:"SURFACE_TOLERANCE"`
	MinSeparation    float64 `json:"min_separation" yaml:"min_separation" env:"MIN_SEPARATION"`
	TangentTolerance float64 `json:"tangent_tolerance" yaml:"tangent_tolerance" env:"TANGENT_TOLERANCE"`
	MinImpulse       float64 `json:"min_impulse" yaml:"min_impulse" env:"MIN_IMPULSE"`
	MaxImpulse       float64 `json:"max_impulse" yaml:"max_impulse" env:"MAX_IMPULSE"`
}

// ProjectionConfig toggles the incremental projection cache.
type ProjectionConfig struct {
	Cache bool `json:"cache" yaml:"cache" env:"CACHE"`
}

// TracingConfig controls span export. Spans go to an OTLP/HTTP collector.
type TracingConfig struct {
	Enabled     bool    `json:"enabled" yaml:"enabled" env:"ENABLED"`
	Endpoint    string  `json:"endpoint" yaml:"endpoint" env:"ENDPOINT"`
	SampleRatio float64 `json:"sample_ratio" yaml:"sample_ratio" env:"SAMPLE_RATIO"`
	ServiceName string  `json:"service_name" yaml:"service_name" env:"SERVICE_NAME"`
}

// Default returns the built-in configuration.
func Default() *Config {
	r := validate.DefaultRules()
	return &Config{
		Server: ServerConfig{
			Addr:            ":8080",
			PageSize:        10,
			RateLimit:       20,
			RateBurst:       40,
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			Path:   "knotter.db",
		},
		Geometry: GeometryConfig{
			SphereRadius:     r.SphereRadius,
			BallRadius:       r.BallRadius,
			SurfaceTolerance: r.SurfaceTolerance,
			MinSeparation:    r.MinSeparation,
			TangentTolerance: r.TangentTolerance,
			MinImpulse:       r.MinImpulse,
			MaxImpulse:       r.MaxImpulse,
		},
		Projection: ProjectionConfig{Cache: true},
		Tracing: TracingConfig{
			SampleRatio: 1,
			ServiceName: "knotter",
		},
	}
}

// Load reads the configuration. An empty path skips the file layer.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decodeYAML(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// Validate checks cfg against the embedded CUE schema.
func (c *Config) Validate() error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(schemaSource, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile config schema: %w", err)
	}

	value := ctx.Encode(c)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	unified := schema.LookupPath(cue.ParsePath("#Config")).Unify(value)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %s", cueerrors.Details(err, nil))
	}
	return nil
}

// Rules converts the geometry section into validation limits.
func (c *Config) Rules() validate.Rules {
	g := c.Geometry
	return validate.Rules{
		SphereRadius:     g.SphereRadius,
		BallRadius:       g.BallRadius,
		SurfaceTolerance: g.SurfaceTolerance,
		MinSeparation:    g.MinSeparation,
		TangentTolerance: g.TangentTolerance,
		MinImpulse:       g.MinImpulse,
		MaxImpulse:       g.MaxImpulse,
	}
}
