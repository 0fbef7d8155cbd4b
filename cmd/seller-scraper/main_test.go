package main

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/maltedev/wildberries-parser/internal/config"
	"github.com/maltedev/wildberries-parser/pkg/logger"
)

func loadTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load()
	require.NoError(t, err)
	return cfg
}

func TestRunReturnsStartupFailure(t *testing.T) {
	t.Setenv("DB_HOST", "127.0.0.1")
	t.Setenv("DB_PORT", "1")
	cfg := loadTestConfig(t)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	outDir := t.TempDir()
	err := run(ctx, cfg, flags{static: true, outDir: outDir, maxPages: 1, maxProducts: 1}, logger.New("error", "text"))
	assert.ErrorContains(t, err, "failed to connect to database")

	// the csv was created and closed before run returned
	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
}

func TestRunRejectsInvalidConfig(t *testing.T) {
	t.Setenv("MAX_RETRIES", "0")
	cfg := loadTestConfig(t)

	outDir := t.TempDir()
	err := run(context.Background(), cfg, flags{static: true, outDir: outDir, noDB: true}, logger.New("error", "text"))
	assert.ErrorContains(t, err, "invalid configuration")

	entries, err := os.ReadDir(outDir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitList(" a, ,b ,"))
	assert.Empty(t, splitList(""))
}
