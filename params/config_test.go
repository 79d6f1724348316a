package params

import (
	"path/filepath"
	"testing"

	"github.com/cespare/cp"
	"github.com/stretchr/testify/require"
)

func TestDefaultMatchesScenarioGeometry(t *testing.T) {
	cfg := Default()
	require.Equal(t, 8, cfg.BankCount)
	require.Equal(t, 1024, cfg.BankDepth)
}

// TestLoadTOMLOverridesDefault copies the checked-in fixture into a
// scratch directory before loading it, so the test never risks mutating
// the repo's testdata in place.
func TestLoadTOMLOverridesDefault(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "corenpu.toml")
	require.NoError(t, cp.CopyFile(dst, filepath.Join("testdata", "corenpu.toml")))

	cfg, err := LoadTOML(dst)
	require.NoError(t, err)
	require.Equal(t, 50000, cfg.CmdPort)
	require.Equal(t, 4, cfg.BankCount)
	require.Equal(t, 64, cfg.BankDepth)
	// rob_capacity is absent from the fixture, so it still comes from Default().
	require.Equal(t, 16, cfg.ROBCapacity)
}

func TestLoadTOMLMissingFileErrors(t *testing.T) {
	_, err := LoadTOML(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
