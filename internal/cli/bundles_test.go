package cli

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dedicated/internal/bootstrap"
)

func writeBundleDir(t *testing.T, root, kindDir, id, meta string) {
	t.Helper()
	dir := filepath.Join(root, kindDir, id)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "data.txt"), []byte(id), 0o644))
	if meta != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "bundle.yaml"), []byte(meta), 0o644))
	}
}

func readBundleRecords(t *testing.T, data []byte) []bundleOutput {
	t.Helper()
	var out []bundleOutput
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		var rec bundleOutput
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		out = append(out, rec)
	}
	return out
}

func TestBundlesCmd_Run(t *testing.T) {
	globals, stdout, _ := testGlobals(t, "json")
	globals.Level = "error"
	root := globals.Config.DataDir
	writeBundleDir(t, root, "maps", "DesertPlanet", "")
	writeBundleDir(t, root, "maps", "IceWorld", "name: IceWorld\nversion: v2\n")
	writeBundleDir(t, root, "games", "coremod", "name: CoreMod\nversion: \"1.0\"\n")

	t.Run("lists every bundle", func(t *testing.T) {
		stdout.Reset()
		require.NoError(t, (&BundlesCmd{}).Run(globals))

		recs := readBundleRecords(t, stdout.Bytes())
		require.Len(t, recs, 3)
		assert.Equal(t, []string{"DesertPlanet", "IceWorld", "coremod"}, []string{recs[0].ID, recs[1].ID, recs[2].ID})
		assert.Equal(t, "CoreMod 1.0", recs[2].Display)
		assert.Equal(t, "mod", recs[2].Kind)
		assert.Empty(t, recs[2].Checksum)
	})

	t.Run("filters and checksums", func(t *testing.T) {
		stdout.Reset()
		cmd := &BundlesCmd{Where: []string{"kind=map"}, Exclude: []string{"v2$"}, Checksums: true}
		require.NoError(t, cmd.Run(globals))

		recs := readBundleRecords(t, stdout.Bytes())
		require.Len(t, recs, 1)
		assert.Equal(t, "DesertPlanet", recs[0].Display)
		assert.Len(t, recs[0].Checksum, 8)
	})

	t.Run("table output", func(t *testing.T) {
		globals.Format = "console"
		defer func() { globals.Format = "json" }()
		stdout.Reset()
		require.NoError(t, (&BundlesCmd{Pattern: "Ice"}).Run(globals))
		assert.Contains(t, stdout.String(), "IceWorld v2")
		assert.NotContains(t, stdout.String(), "DesertPlanet")
	})

	t.Run("bad where clause", func(t *testing.T) {
		stdout.Reset()
		err := (&BundlesCmd{Where: []string{"colour=red"}}).Run(globals)
		var exitErr *ExitError
		require.True(t, errors.As(err, &exitErr))
		assert.Equal(t, int(bootstrap.ExitUsage), exitErr.Code)
	})
}
