package main

import (
	"testing"

	"bitbucket.org/dtolpin/sonig/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSelfcheck(t *testing.T) {
	cfg := config.Default()
	cfg.Out = t.TempDir()
	cfg.Format = "svg"
	shrink(cfg)
	require.NoError(t, cfg.Validate())
	assert.NoError(t, runAll(cfg, nil))
}

func TestRunUnknown(t *testing.T) {
	cfg := config.Default()
	cfg.Out = t.TempDir()
	assert.Error(t, runAll(cfg, []string{"flutter"}))
}
