package main

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_NonInteractiveFixtures(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_OUTPUT_DIR", filepath.Join(dir, "output"))
	t.Setenv("APP_CHART_DIR", filepath.Join(dir, "output", "visualizations"))
	t.Setenv("APP_LOG_DIR", filepath.Join(dir, "logs"))
	t.Setenv("APP_QUERY_DIR", filepath.Join(dir, "no-query-dir"))
	t.Setenv("APP_LOG_FORMAT", "json")
	t.Setenv("APP_METRICS_FILE", filepath.Join(dir, "blackmid.prom"))

	err := run(context.Background(), options{
		envFile:        filepath.Join(dir, "missing.env"),
		useFixtures:    true,
		nonInteractive: true,
		checkpoint:     "2024-01-01",
		start:          "2024-01-01 00:00:00",
		end:            "2024-01-07 23:59:59",
		charts:         true,
	})
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(dir, "output", "demo_black_mid.xlsx"))

	exports, err := filepath.Glob(filepath.Join(dir, "output", "black_mid_integrated_*.xlsx"))
	require.NoError(t, err)
	assert.Len(t, exports, 1)

	charts, err := filepath.Glob(filepath.Join(dir, "output", "visualizations", "*.html"))
	require.NoError(t, err)
	assert.NotEmpty(t, charts)

	prom, err := os.ReadFile(filepath.Join(dir, "blackmid.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(prom), `black_heatmap_run_total{operation="integrated",status="success"} 1`)
}

func TestRun_NonInteractiveRequiresInput(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_LOG_DIR", "")
	t.Setenv("APP_OUTPUT_DIR", filepath.Join(dir, "output"))

	err := run(context.Background(), options{
		envFile:        filepath.Join(dir, "missing.env"),
		nonInteractive: true,
	})
	assert.ErrorContains(t, err, "-input is required")
}
