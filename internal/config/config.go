package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/JonnyWalker81/nillabg/internal/models"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Database  DatabaseConfig  `mapstructure:"database"`
	Normalize NormalizeConfig `mapstructure:"normalize"`
	Classify  ClassifyConfig  `mapstructure:"classify"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Cleanup   CleanupConfig   `mapstructure:"cleanup"`
	Server    ServerConfig    `mapstructure:"server"`
	Log       LogConfig       `mapstructure:"log"`
}

// DatabaseConfig holds the warehouse connection settings.
// DSN, when set, is used verbatim and the discrete fields are ignored.
type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"` // mysql, postgres or sqlite
	DSN      string `mapstructure:"dsn"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	Path     string `mapstructure:"path"` // sqlite file
}

// NormalizeConfig holds the fixed offsets applied to staging timestamps
type NormalizeConfig struct {
	EntryOffsetMinutes     int `mapstructure:"entry_offset_minutes"`
	TreatmentOffsetMinutes int `mapstructure:"treatment_offset_minutes"`
}

// ClassifyConfig holds the meal and insulin classification thresholds
type ClassifyConfig struct {
	HypoMaxCarbs            float64  `mapstructure:"hypo_max_carbs"`
	SnackMinCarbs           float64  `mapstructure:"snack_min_carbs"`
	SnackMaxCarbs           float64  `mapstructure:"snack_max_carbs"`
	InsulinProximityMinutes int      `mapstructure:"insulin_proximity_minutes"`
	BolusNames              []string `mapstructure:"bolus_names"`
	BasalNames              []string `mapstructure:"basal_names"`
}

// MetricsConfig holds the association windows in minutes and the pre-meal gate in mg/dL
type MetricsConfig struct {
	TimeWindowMinutes   int     `mapstructure:"time_window_minutes"`
	PostOffsetMinutes   int     `mapstructure:"post_offset_minutes"`
	PreWindowMinutes    int     `mapstructure:"pre_window_minutes"`
	PostWindowMinutes   int     `mapstructure:"post_window_minutes"`
	NoCorrBeforeMinutes int     `mapstructure:"nocorr_before_minutes"`
	NoCorrAfterMinutes  int     `mapstructure:"nocorr_after_minutes"`
	PreMealMin          float64 `mapstructure:"pre_meal_min"`
	PreMealMax          float64 `mapstructure:"pre_meal_max"`
}

// CleanupConfig holds the duplicate small-dose cleanup thresholds
type CleanupConfig struct {
	MaxUnits      float64 `mapstructure:"max_units"`
	WindowMinutes int     `mapstructure:"window_minutes"`
}

// ServerConfig holds server-specific configuration
type ServerConfig struct {
	Port           string `mapstructure:"port"`
	Env            string `mapstructure:"env"`
	AllowedOrigins string `mapstructure:"allowed_origins"` // comma-separated; empty allows all
}

// LogConfig holds logging configuration
type LogConfig struct {
	Backend string `mapstructure:"backend"`
	Level   string `mapstructure:"level"`
	Format  string `mapstructure:"format"`
}

// Load reads configuration from .env, environment variables and config files
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("error reading .env file: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	// Read from environment variables
	v.SetEnvPrefix("NILLABG")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Also bind to the variable names the loader scripts used
	v.BindEnv("database.host", "MYSQLHOST")
	v.BindEnv("database.user", "MYSQLUSER")
	v.BindEnv("database.password", "MYSQLPW")
	v.BindEnv("database.name", "MYSQLDB")
	v.BindEnv("server.port", "PORT")
	v.BindEnv("server.allowed_origins", "NILLABG_SERVER_ALLOWED_ORIGINS", "CORS_ALLOWED_ORIGINS")

	// Read from config file if it exists
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	// It's okay if config file doesn't exist
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, err
	}

	return &config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 3306)
	v.SetDefault("database.user", "")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "nightscout")
	v.SetDefault("database.dsn", "")
	v.SetDefault("database.path", "nillabg.db")

	v.SetDefault("normalize.entry_offset_minutes", 120)
	v.SetDefault("normalize.treatment_offset_minutes", 120)

	v.SetDefault("classify.hypo_max_carbs", 4.0)
	v.SetDefault("classify.snack_min_carbs", 4.0)
	v.SetDefault("classify.snack_max_carbs", 7.0)
	v.SetDefault("classify.insulin_proximity_minutes", 30)
	v.SetDefault("classify.bolus_names", []string{"novorapid", "novarap", "fiasp", "humalog", "apidra", "lyumjev"})
	v.SetDefault("classify.basal_names", []string{"tresiba", "lantus", "levemir", "toujeo", "abasaglar"})

	v.SetDefault("metrics.time_window_minutes", 50)
	v.SetDefault("metrics.post_offset_minutes", 120)
	v.SetDefault("metrics.pre_window_minutes", 15)
	v.SetDefault("metrics.post_window_minutes", 15)
	v.SetDefault("metrics.nocorr_before_minutes", 120)
	v.SetDefault("metrics.nocorr_after_minutes", 180)
	v.SetDefault("metrics.pre_meal_min", 63.0)
	v.SetDefault("metrics.pre_meal_max", 117.0)

	v.SetDefault("cleanup.max_units", 1.0)
	v.SetDefault("cleanup.window_minutes", 5)

	v.SetDefault("server.port", "8080")
	v.SetDefault("server.env", "development")
	v.SetDefault("server.allowed_origins", "")

	v.SetDefault("log.backend", "slog")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
}

// Validate checks that all required configuration values are present
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql", "postgres":
		if c.Database.DSN == "" && (c.Database.Host == "" || c.Database.User == "" || c.Database.Name == "") {
			return fmt.Errorf("database host, user and name are required for %s (MYSQLHOST, MYSQLUSER, MYSQLDB)", c.Database.Driver)
		}
	case "sqlite":
		if c.Database.DSN == "" && c.Database.Path == "" {
			return fmt.Errorf("database.path is required for sqlite")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", c.Database.Driver)
	}

	if c.Classify.SnackMaxCarbs <= c.Classify.SnackMinCarbs {
		return fmt.Errorf("classify.snack_max_carbs must exceed classify.snack_min_carbs")
	}
	if c.Metrics.PreMealMax < c.Metrics.PreMealMin {
		return fmt.Errorf("metrics.pre_meal_max must not be below metrics.pre_meal_min")
	}
	if c.Metrics.TimeWindowMinutes < 0 || c.Metrics.PreWindowMinutes < 0 || c.Metrics.PostWindowMinutes < 0 {
		return fmt.Errorf("metrics windows must not be negative")
	}
	if c.Cleanup.WindowMinutes < 0 {
		return fmt.Errorf("cleanup.window_minutes must not be negative")
	}
	return nil
}

// Params converts the minute-based settings into association parameters
func (m MetricsConfig) Params() models.MetricsParams {
	p := models.DefaultMetricsParams()
	p.TimeWindow = minutes(m.TimeWindowMinutes)
	p.PostOffset = minutes(m.PostOffsetMinutes)
	p.PreWindow = minutes(m.PreWindowMinutes)
	p.PostWindow = minutes(m.PostWindowMinutes)
	p.NoCorrBefore = minutes(m.NoCorrBeforeMinutes)
	p.NoCorrAfter = minutes(m.NoCorrAfterMinutes)
	p.PreMealMin = m.PreMealMin
	p.PreMealMax = m.PreMealMax
	return p
}

func minutes(n int) time.Duration {
	return time.Duration(n) * time.Minute
}
