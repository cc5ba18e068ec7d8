package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeConfig(t, `{
		"port": 8000,
		"database": {"host": "localhost", "dbname": "recsys", "user": "recsys"},
		"admin": {"jwt_secret": "0123456789abcdef"}
	}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 5432, cfg.Database.Port)
	require.Equal(t, 128, cfg.Vector.Dimension)
	require.Equal(t, CacheTypeMemory, cfg.Cache.Type)
	require.InDelta(t, 0.6, cfg.Recommend.CFWeight, 1e-12)
	require.InDelta(t, 0.4, cfg.Recommend.ContentWeight, 1e-12)
	require.Equal(t, 5, cfg.Recommend.DefaultLimit)
	require.Equal(t, 20, cfg.Recommend.MaxLimit)
	require.Equal(t, "hybrid_recommendation_model", cfg.Retrain.ModelName)
	require.True(t, cfg.Retrain.QuantityWeighted())
	require.Equal(t, "info", cfg.LogConfig.Level)
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{
			name: "weights do not sum to one",
			body: `{"port": 8000, "database": {"dsn": "postgres://x"}, "admin": {"jwt_secret": "0123456789abcdef"},
				"recommend": {"cf_weight": 0.7, "content_weight": 0.7}}`,
		},
		{
			name: "redis without address",
			body: `{"port": 8000, "database": {"dsn": "postgres://x"}, "admin": {"jwt_secret": "0123456789abcdef"},
				"cache": {"type": "redis"}}`,
		},
		{
			name: "missing jwt secret",
			body: `{"port": 8000, "database": {"dsn": "postgres://x"}}`,
		},
		{
			name: "missing database",
			body: `{"port": 8000, "admin": {"jwt_secret": "0123456789abcdef"}}`,
		},
		{
			name: "bad json",
			body: `{"port": `,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.body))
			require.Error(t, err)
		})
	}
}

func TestQuantityWeightedOverride(t *testing.T) {
	off := false
	require.False(t, RetrainConfig{WeightByQuantity: &off}.QuantityWeighted())
}
