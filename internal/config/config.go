// Package config defines the application configuration and loads it with
// viper from a YAML file, defaults and BUDGETOPT_ environment overrides.
package config

import (
	"fmt"
	"strings"

	"github.com/iwvelando/budget-optimizer/internal/features"
	"github.com/iwvelando/budget-optimizer/internal/forecast"
	"github.com/iwvelando/budget-optimizer/internal/history"
	"github.com/iwvelando/budget-optimizer/internal/pipeline"
	"github.com/iwvelando/budget-optimizer/pkg/configprocessor"
	"github.com/iwvelando/budget-optimizer/pkg/constants"
	"github.com/spf13/viper"
)

// Configuration holds all configuration for budget-optimizer.
type Configuration struct {
	Logging   LoggingConfig      `mapstructure:"logging" yaml:"logging,omitempty"`
	Output    OutputConfig       `mapstructure:"output" yaml:"output,omitempty"`
	Model     ModelConfig        `mapstructure:"model" yaml:"model"`
	Channels  []features.Channel `mapstructure:"channels" yaml:"channels,omitempty"`
	Optimizer OptimizerConfig    `mapstructure:"optimizer" yaml:"optimizer"`
	History   HistoryConfig      `mapstructure:"history" yaml:"history"`
	Store     StoreConfig        `mapstructure:"store" yaml:"store,omitempty"`
}

// LoggingConfig holds logging configuration options
type LoggingConfig struct {
	Level      string `mapstructure:"level" yaml:"level,omitempty"`           // debug, info, warn, error
	Format     string `mapstructure:"format" yaml:"format,omitempty"`         // json, console
	OutputFile string `mapstructure:"outputFile" yaml:"outputFile,omitempty"` // optional file output
}

// OutputConfig holds output format configuration options
type OutputConfig struct {
	Format string `mapstructure:"format" yaml:"format,omitempty"` // json, pretty, csv
}

// ModelConfig locates the forecast model artifact.
type ModelConfig struct {
	Path   string `mapstructure:"path" yaml:"path"`
	Kind   string `mapstructure:"kind" yaml:"kind,omitempty"`     // xgboost, linear
	Schema string `mapstructure:"schema" yaml:"schema,omitempty"` // v1, v2
}

// HistoryConfig shapes the synthesized history.
type HistoryConfig struct {
	DefaultDuration int     `mapstructure:"defaultDuration" yaml:"defaultDuration"`
	MaxDuration     int     `mapstructure:"maxDuration" yaml:"maxDuration"`
	Jitter          float64 `mapstructure:"jitter" yaml:"jitter"`
	Decay           float64 `mapstructure:"decay" yaml:"decay"`
	Floor           float64 `mapstructure:"floor" yaml:"floor"`
}

// StoreConfig locates the campaign metrics database. An empty DSN disables it.
type StoreConfig struct {
	Driver string `mapstructure:"driver" yaml:"driver,omitempty"` // pgx, sqlite
	DSN    string `mapstructure:"dsn" yaml:"dsn,omitempty"`
}

// Enabled reports whether a metrics store is configured.
func (s StoreConfig) Enabled() bool {
	return strings.TrimSpace(s.DSN) != ""
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
	v.SetDefault("logging.outputFile", "")
	v.SetDefault("output.format", constants.OutputFormatJSON)
	v.SetDefault("model.path", "models/optimal_budget_xgb_model.json")
	v.SetDefault("model.kind", "xgboost")
	v.SetDefault("model.schema", features.SchemaV1)
	v.SetDefault("optimizer.defaultBudget", constants.DefaultTotalBudget)
	v.SetDefault("optimizer.minPerChannel", constants.DefaultMinPerChannel)
	v.SetDefault("optimizer.maxRatio", constants.DefaultMaxRatio)
	v.SetDefault("optimizer.minROAS", constants.DefaultMinROAS)
	v.SetDefault("optimizer.maxROAS", constants.DefaultMaxROAS)
	v.SetDefault("history.defaultDuration", constants.DefaultDuration)
	v.SetDefault("history.maxDuration", constants.MaxDuration)
	v.SetDefault("history.jitter", constants.DefaultJitter)
	v.SetDefault("history.decay", constants.TrendDecayPerDay)
	v.SetDefault("history.floor", constants.TrendFloor)
	v.SetDefault("store.driver", "pgx")
	v.SetDefault("store.dsn", "")
}

// LoadConfiguration takes a file path as input and loads the YAML-formatted
// configuration there. An empty path yields defaults plus environment overrides.
func LoadConfiguration(configPath string) (*Configuration, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(constants.EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("error reading config file, %s", err)
		}
	}

	var configuration Configuration
	if err := v.Unmarshal(&configuration); err != nil {
		return nil, fmt.Errorf("unable to decode into struct, %s", err)
	}
	if len(configuration.Channels) == 0 {
		configuration.Channels = append([]features.Channel(nil), features.DefaultChannels...)
	}

	return &configuration, nil
}

// Settings converts the configuration into engine settings.
func (c *Configuration) Settings() (pipeline.Settings, error) {
	schema, err := features.LookupSchema(c.Model.Schema)
	if err != nil {
		return pipeline.Settings{}, err
	}
	settings := pipeline.DefaultSettings()
	settings.Schema = schema
	if len(c.Channels) > 0 {
		settings.Channels = c.Channels
	}
	settings.Band = forecast.Band{Min: c.Optimizer.MinROAS, Max: c.Optimizer.MaxROAS}
	settings.Policy = c.Optimizer.Policy()
	settings.History = history.Options{
		Jitter: c.History.Jitter,
		Decay:  c.History.Decay,
		Floor:  c.History.Floor,
	}
	settings.DefaultBudget = c.Optimizer.DefaultBudget
	settings.DefaultDuration = c.History.DefaultDuration
	settings.MaxDuration = c.History.MaxDuration
	return settings, nil
}

// ValidateConfiguration performs general validation of the configuration and returns warnings
func (c *Configuration) ValidateConfiguration() []string {
	processor := configprocessor.NewProcessor()
	return processor.ValidateConfiguration(configprocessor.Info{
		Channels:      len(c.Channels),
		DefaultBudget: c.Optimizer.DefaultBudget,
		MinPerChannel: c.Optimizer.MinPerChannel,
		MaxRatio:      c.Optimizer.MaxRatio,
		MinROAS:       c.Optimizer.MinROAS,
		MaxROAS:       c.Optimizer.MaxROAS,
		Jitter:        c.History.Jitter,
		ModelPath:     c.Model.Path,
		StoreDriver:   c.Store.Driver,
		StoreDSN:      c.Store.DSN,
	})
}
