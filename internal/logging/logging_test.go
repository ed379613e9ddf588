package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSetup_WritesConsoleAndFile(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)
	var console bytes.Buffer

	logger, closer, err := Setup(Options{
		Dir:    dir,
		Level:  "debug",
		Format: "json",
		Stdout: &console,
		Now:    func() time.Time { return now },
	})
	require.NoError(t, err)

	logger.Info().Str("component", "test").Msg("hello")
	require.NoError(t, closer.Close())

	assert.Contains(t, console.String(), `"message":"hello"`)

	data, err := os.ReadFile(filepath.Join(dir, "black_heatmap_20240506.log"))
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"test"`)
}

func TestSetup_InvalidLevelDefaultsToInfo(t *testing.T) {
	var console bytes.Buffer
	logger, _, err := Setup(Options{Level: "loud", Stdout: &console})
	require.NoError(t, err)

	logger.Debug().Msg("hidden")
	logger.Info().Msg("shown")
	assert.NotContains(t, console.String(), "hidden")
	assert.Contains(t, console.String(), "shown")
}
