package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaultsFile(t *testing.T) {
	cfg := MustLoadDefaultConfig()

	require.NotNil(t, cfg.RTreeMinFanout)
	require.NotNil(t, cfg.RTreeMaxFanout)
	require.NotNil(t, cfg.PackingFactor)
	require.NotNil(t, cfg.DefaultWindowSeconds)
	require.NotNil(t, cfg.ScheduleAheadFraction)
	require.NotNil(t, cfg.RootFindEpsT)
	require.NotNil(t, cfg.SessionLivenessUpdateSeconds)
	require.NotNil(t, cfg.SessionLivenessAbandonSeconds)
	require.NotNil(t, cfg.CollisionVelocityScale)

	require.NoError(t, cfg.Validate())

	require.Equal(t, 2, cfg.GetRTreeMinFanout())
	require.Equal(t, 5, cfg.GetRTreeMaxFanout())
	require.InDelta(t, 0.45, cfg.GetPackingFactor(), 1e-12)
	require.InDelta(t, 10.0, cfg.GetDefaultWindowSeconds(), 1e-12)
	require.InDelta(t, 0.6, cfg.GetScheduleAheadFraction(), 1e-12)
	require.InDelta(t, 1e-4, cfg.GetRootFindEpsT(), 1e-12)
	require.InDelta(t, 30.0, cfg.GetSessionLivenessUpdateSeconds(), 1e-12)
	require.InDelta(t, 40.0, cfg.GetSessionLivenessAbandonSeconds(), 1e-12)
	require.InDelta(t, 1.0, cfg.GetCollisionVelocityScale(), 1e-12)
}

func TestEmptyTuningConfigFallsBackToDefaults(t *testing.T) {
	cfg := EmptyTuningConfig()

	require.Nil(t, cfg.RTreeMinFanout)
	require.Equal(t, 2, cfg.GetRTreeMinFanout())
	require.Equal(t, 5, cfg.GetRTreeMaxFanout())
	require.InDelta(t, 0.45, cfg.GetPackingFactor(), 1e-12)
	require.InDelta(t, 1.0, cfg.GetCollisionVelocityScale(), 1e-12)
}

func TestLoadTuningConfigPartialOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "partial.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"collision_velocity_scale": 2.5, "packing_factor": 0.5}`), 0o644))

	cfg, err := LoadTuningConfig(path)
	require.NoError(t, err)

	require.InDelta(t, 2.5, cfg.GetCollisionVelocityScale(), 1e-12)
	require.InDelta(t, 0.5, cfg.GetPackingFactor(), 1e-12)
	// Omitted fields keep their defaults.
	require.Equal(t, 2, cfg.GetRTreeMinFanout())
}

func TestValidateRejectsOutOfRangeValues(t *testing.T) {
	bad := *EmptyTuningConfig()
	scale := 0.0
	bad.PackingFactor = &scale
	require.Error(t, bad.Validate())

	frac := 1.5
	bad2 := *EmptyTuningConfig()
	bad2.ScheduleAheadFraction = &frac
	require.Error(t, bad2.Validate())
}

func TestLoadTuningConfigRejectsWrongExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.txt")
	require.NoError(t, os.WriteFile(path, []byte(`{}`), 0o644))

	_, err := LoadTuningConfig(path)
	require.Error(t, err)
}
