package config

import (
	"strings"
	"testing"

	"github.com/iwvelando/budget-optimizer/internal/features"
	"github.com/iwvelando/budget-optimizer/internal/optimizer"
)

func TestOptimizerConfigPolicy(t *testing.T) {
	cfg := OptimizerConfig{MinPerChannel: 25000, MaxRatio: 0.5}
	want := optimizer.BoundsPolicy{MinDefault: 25000, MaxRatio: 0.5}
	if got := cfg.Policy(); got != want {
		t.Fatalf("expected %+v, got %+v", want, got)
	}
}

func TestValidateConfiguration(t *testing.T) {
	base := func() *Configuration {
		conf, err := LoadConfiguration("")
		if err != nil {
			t.Fatalf("LoadConfiguration returned error: %v", err)
		}
		return conf
	}

	testCases := []struct {
		name    string
		mutate  func(c *Configuration)
		warning string
	}{
		{name: "defaults are clean"},
		{
			name:    "missing model path",
			mutate:  func(c *Configuration) { c.Model.Path = "" },
			warning: "No model path configured",
		},
		{
			name:    "floors exceed default budget",
			mutate:  func(c *Configuration) { c.Optimizer.DefaultBudget = 100000 },
			warning: "floors will be dropped",
		},
		{
			name: "ratio cannot cover budget",
			mutate: func(c *Configuration) {
				c.Channels = features.DefaultChannels[:2]
				c.Optimizer.MaxRatio = 0.3
			},
			warning: "caps will be widened",
		},
		{
			name:    "unknown store driver",
			mutate:  func(c *Configuration) { c.Store = StoreConfig{Driver: "mysql", DSN: "root@/ads"} },
			warning: "mysql",
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			conf := base()
			if tc.mutate != nil {
				tc.mutate(conf)
			}
			warnings := conf.ValidateConfiguration()
			if tc.warning == "" {
				if len(warnings) != 0 {
					t.Fatalf("expected no warnings, got %v", warnings)
				}
				return
			}
			joined := strings.Join(warnings, "\n")
			if !strings.Contains(joined, tc.warning) {
				t.Fatalf("expected a warning containing %q, got %v", tc.warning, warnings)
			}
		})
	}
}
