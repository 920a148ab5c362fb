package robot

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, "automation_workspace", cfg.Workspace)
	assert.Equal(t, "10.10.10.10:40001", cfg.Address)
}

func TestLoadConfigOverlay(t *testing.T) {
	path := filepath.Join(t.TempDir(), "robot.yaml")
	content := `
address: 192.168.1.20
workspace: shelf_workspace
height_offset: 0.01
place_pose:
  x: 0.1
  y: 0.2
  z: 0.3
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "192.168.1.20", cfg.Address)
	assert.Equal(t, "shelf_workspace", cfg.Workspace)
	assert.InDelta(t, 0.01, cfg.HeightOffset, 1e-9)
	assert.Equal(t, Pose{X: 0.1, Y: 0.2, Z: 0.3}, cfg.PlacePose)
	assert.Equal(t, DefaultConfig().ObservationPose, cfg.ObservationPose)
}

func TestLoadConfigInvalid(t *testing.T) {
	dir := t.TempDir()

	blank := filepath.Join(dir, "blank.yaml")
	require.NoError(t, os.WriteFile(blank, []byte("workspace: \"\"\n"), 0o600))
	_, err := LoadConfig(blank)
	assert.ErrorContains(t, err, "workspace is required")

	broken := filepath.Join(dir, "broken.yaml")
	require.NoError(t, os.WriteFile(broken, []byte("address: [\n"), 0o600))
	_, err = LoadConfig(broken)
	assert.Error(t, err)

	_, err = LoadConfig(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}
