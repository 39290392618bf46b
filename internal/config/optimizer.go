package config

import (
	"github.com/iwvelando/budget-optimizer/internal/optimizer"
)

// OptimizerConfig holds the allocation policy and forecast band.
type OptimizerConfig struct {
	DefaultBudget float64 `mapstructure:"defaultBudget" yaml:"defaultBudget"`
	MinPerChannel float64 `mapstructure:"minPerChannel" yaml:"minPerChannel"`
	MaxRatio      float64 `mapstructure:"maxRatio" yaml:"maxRatio"`
	MinROAS       float64 `mapstructure:"minROAS" yaml:"minROAS"`
	MaxROAS       float64 `mapstructure:"maxROAS" yaml:"maxROAS"`
}

// Policy returns the bounds policy described by the configuration.
func (o OptimizerConfig) Policy() optimizer.BoundsPolicy {
	return optimizer.BoundsPolicy{MinDefault: o.MinPerChannel, MaxRatio: o.MaxRatio}
}
