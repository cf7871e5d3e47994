package rankcfg

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg, err := Default()
	require.NoError(t, err)

	assert.Equal(t, "options_rank_v1", cfg.Meta.ConfigID)
	assert.Equal(t, 100.0, cfg.Liquidity.VolumeThreshold)
	assert.Equal(t, 500.0, cfg.Liquidity.OIThreshold)
	assert.Equal(t, 1.0, cfg.Liquidity.PriceThreshold)
	assert.InDelta(t, 1.0, cfg.Composite.Sum(), 1e-9)
	assert.Equal(t, 100, cfg.Composite.TopN)
	assert.InDelta(t, 0.5, cfg.Smoothing.Alpha(), 1e-9)
}

func TestGreeks_TierFor(t *testing.T) {
	g := MustDefault().Greeks

	tests := []struct {
		dte       int
		wantDelta float64
		wantCap   float64
	}{
		{0, 0.65, 50},
		{7, 0.65, 50},
		{8, 0.60, 50},
		{21, 0.60, 50},
		{22, 0.55, 40},
		{45, 0.55, 40},
		{46, 0.50, 25},
		{365, 0.50, 25},
	}

	for _, tt := range tests {
		tier := g.TierFor(tt.dte)
		assert.Equal(t, tt.wantDelta, tier.DeltaTarget, "dte=%d", tt.dte)
		assert.Equal(t, tt.wantCap, tier.ThetaCap, "dte=%d", tt.dte)
	}
}

func TestHash(t *testing.T) {
	cfg := MustDefault()

	hash, err := Hash(cfg)
	require.NoError(t, err)
	assert.Len(t, hash, 64)

	// 동일 설정 → 동일 해시
	hash2, _ := Hash(MustDefault())
	assert.Equal(t, hash, hash2)

	cfg.Composite.TopN = 50
	hash3, _ := Hash(cfg)
	assert.NotEqual(t, hash, hash3)
}

func TestParse_UnknownField(t *testing.T) {
	data := string(defaultYAML) + "\nunknown_section: 1\n"
	_, err := Parse([]byte(data))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"composite weights", func(c *Config) { c.Composite.GreeksWeight = 0.30 }, "composite"},
		{"momentum weights", func(c *Config) { c.Momentum.PriceWeight = 0.6 }, "momentum"},
		{"value weights", func(c *Config) { c.Value.SpreadWeight = 0 }, "value"},
		{"zero threshold", func(c *Config) { c.Liquidity.OIThreshold = 0 }, "OIThreshold"},
		{"zero window", func(c *Config) { c.Smoothing.Window = 0 }, "Window"},
		{"unordered tiers", func(c *Config) { c.Greeks.DTETiers[1].MaxDTE = 5 }, "dte_tiers"},
		{"alignment order", func(c *Config) { c.Greeks.Alignment.CounterTrend = 0.95 }, "alignment"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := MustDefault()
			tt.mutate(cfg)

			err := Validate(cfg)
			require.Error(t, err)

			var verr ValidationError
			require.ErrorAs(t, err, &verr)
			assert.True(t, strings.Contains(verr.Field, tt.field), "field %q", verr.Field)
		})
	}
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "rank.yaml")
	custom := strings.Replace(string(defaultYAML), "top_n: 100", "top_n: 25", 1)
	require.NoError(t, os.WriteFile(path, []byte(custom), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, cfg.Composite.TopN)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
