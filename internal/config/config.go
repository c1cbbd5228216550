package config

import (
	"errors"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Hermes        HermesConfig        `yaml:"hermes"`
	Scoring       ScoringConfig       `yaml:"scoring"`
	Planning      PlanningConfig      `yaml:"planning"`
	Interventions InterventionsConfig `yaml:"interventions"`
	Logging       LoggingConfig       `yaml:"logging"`
}

type ServerConfig struct {
	Port              int    `yaml:"port"`
	MetricsPort       int    `yaml:"metrics_port"`
	AdminToken        string `yaml:"admin_token"`
	RateLimitPerMin   int    `yaml:"rate_limit_per_min"`
	ShutdownTimeoutMs int    `yaml:"shutdown_timeout_ms"`
}

type DatabaseConfig struct {
	// Driver is one of memory, sqlite or postgres.
	Driver     string `yaml:"driver"`
	URL        string `yaml:"url"`
	SQLitePath string `yaml:"sqlite_path"`
}

type HermesConfig struct {
	URL string `yaml:"url"`
}

type ScoringConfig struct {
	Weights     ScoringWeights `yaml:"weights"`
	AdaptationK float64        `yaml:"adaptation_k"`
}

type ScoringWeights struct {
	Alpha   float64 `yaml:"alpha"`
	Beta    float64 `yaml:"beta"`
	Gamma   float64 `yaml:"gamma"`
	Delta   float64 `yaml:"delta"`
	Epsilon float64 `yaml:"epsilon"`
}

type PlanningConfig struct {
	CurriculumOrder []string `yaml:"curriculum_order"`
	DefaultSemester string   `yaml:"default_semester"`
}

type InterventionsConfig struct {
	TablesPath          string  `yaml:"tables_path"`
	AttendanceThreshold float64 `yaml:"attendance_threshold"`
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func (c *Config) ShutdownTimeout() time.Duration {
	return time.Duration(c.Server.ShutdownTimeoutMs) * time.Millisecond
}

func Load(path string) (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Port:              8700,
			MetricsPort:       8701,
			RateLimitPerMin:   120,
			ShutdownTimeoutMs: 10000,
		},
		Database: DatabaseConfig{
			Driver:     "memory",
			SQLitePath: "trajectory.db",
		},
		Hermes: HermesConfig{
			URL: "nats://localhost:4222",
		},
		Scoring: ScoringConfig{
			Weights: ScoringWeights{
				Alpha:   0.35,
				Beta:    0.25,
				Gamma:   0.20,
				Delta:   0.15,
				Epsilon: 0.05,
			},
			AdaptationK: 0.9,
		},
		Planning: PlanningConfig{
			DefaultSemester: "2025-2",
		},
		Interventions: InterventionsConfig{
			AttendanceThreshold: 0.60,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

// Validate rejects configurations the scoring engine cannot run with.
func (c *Config) Validate() error {
	var errs []error

	w := c.Scoring.Weights
	sum := 0.0
	for name, v := range map[string]float64{
		"alpha": w.Alpha, "beta": w.Beta, "gamma": w.Gamma, "delta": w.Delta, "epsilon": w.Epsilon,
	} {
		if v < 0 || math.IsNaN(v) {
			errs = append(errs, fmt.Errorf("scoring weight %s must be non-negative, got %v", name, v))
		}
		sum += v
	}
	if math.Abs(sum-1.0) > 0.001 {
		errs = append(errs, fmt.Errorf("scoring weights must sum to 1.0, got %.4f", sum))
	}
	if c.Scoring.AdaptationK <= 0 || math.IsNaN(c.Scoring.AdaptationK) {
		errs = append(errs, fmt.Errorf("scoring adaptation_k must be positive, got %v", c.Scoring.AdaptationK))
	}

	switch c.Database.Driver {
	case "", "memory":
	case "sqlite":
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("database sqlite_path is required for the sqlite driver"))
		}
	case "postgres":
		if c.Database.URL == "" {
			errs = append(errs, errors.New("database url is required for the postgres driver"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown database driver %q", c.Database.Driver))
	}

	if t := c.Interventions.AttendanceThreshold; t <= 0 || t > 1 {
		errs = append(errs, fmt.Errorf("interventions attendance_threshold must be in (0, 1], got %v", t))
	}
	if strings.TrimSpace(c.Planning.DefaultSemester) == "" {
		errs = append(errs, errors.New("planning default_semester is required"))
	}

	return errors.Join(errs...)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TRAJECTORY_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = n
		}
	}
	if v := os.Getenv("TRAJECTORY_METRICS_PORT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Server.MetricsPort = n
		}
	}
	if v := os.Getenv("TRAJECTORY_ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("TRAJECTORY_DATABASE_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("TRAJECTORY_DATABASE_URL"); v != "" {
		cfg.Database.URL = v
	}
	if v := os.Getenv("TRAJECTORY_SQLITE_PATH"); v != "" {
		cfg.Database.SQLitePath = v
	}
	if v := os.Getenv("TRAJECTORY_HERMES_URL"); v != "" {
		cfg.Hermes.URL = v
	}
	if v := os.Getenv("TRAJECTORY_ADAPTATION_K"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Scoring.AdaptationK = f
		}
	}
	if v := os.Getenv("TRAJECTORY_DEFAULT_SEMESTER"); v != "" {
		cfg.Planning.DefaultSemester = v
	}
	if v := os.Getenv("TRAJECTORY_INTERVENTIONS_TABLES"); v != "" {
		cfg.Interventions.TablesPath = v
	}
	if v := os.Getenv("TRAJECTORY_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("TRAJECTORY_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
}
