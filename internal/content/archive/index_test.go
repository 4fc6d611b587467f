package archive

import (
	"archive/zip"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dedicated/internal/content/cache"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func writeZip(t *testing.T, path string, files map[string]string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	zw := zip.NewWriter(f)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	require.NoError(t, f.Close())
}

// fixture lays out a data dir with one map directory, a base mod and two
// revisions of CoreMod v1 that depend on it.
func fixture(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, MapsDir, "DesertPlanet", "map.smf"), "heightmap")
	writeFile(t, filepath.Join(dir, MapsDir, "DesertPlanet", "mapinfo.lua"), "return {}")
	writeFile(t, filepath.Join(dir, GamesDir, "base", "units.lua"), "units")
	writeFile(t, filepath.Join(dir, GamesDir, "base", MetadataFile), "name: Base\n")
	writeZip(t, filepath.Join(dir, GamesDir, "coremod-1.zip"), map[string]string{
		MetadataFile:   "name: CoreMod\nversion: v1\ndepends:\n  - Base\n",
		"gamedata.lua": "old",
	})
	writeZip(t, filepath.Join(dir, GamesDir, "coremod-2.zip"), map[string]string{
		MetadataFile:   "name: CoreMod\nversion: v1\ndepends:\n  - Base\n",
		"gamedata.lua": "new",
	})
	return dir
}

func TestScan(t *testing.T) {
	x, err := Open(Options{DataDirs: []string{fixture(t)}})
	require.NoError(t, err)

	ids := []string{}
	for _, b := range x.Bundles() {
		ids = append(ids, b.ID)
	}
	assert.Equal(t, []string{"DesertPlanet", "base", "coremod-1.zip", "coremod-2.zip"}, ids)
}

func TestResolveBundleIdentifier(t *testing.T) {
	x, err := Open(Options{DataDirs: []string{fixture(t)}})
	require.NoError(t, err)

	t.Run("latest revision wins", func(t *testing.T) {
		id, err := x.ResolveBundleIdentifier("CoreMod v1")
		require.NoError(t, err)
		assert.Equal(t, "coremod-2.zip", id)
	})

	t.Run("case insensitive", func(t *testing.T) {
		id, err := x.ResolveBundleIdentifier("coremod V1")
		require.NoError(t, err)
		assert.Equal(t, "coremod-2.zip", id)
	})

	t.Run("identifier accepted", func(t *testing.T) {
		id, err := x.ResolveBundleIdentifier("coremod-1.zip")
		require.NoError(t, err)
		assert.Equal(t, "coremod-1.zip", id)
	})

	t.Run("unknown", func(t *testing.T) {
		_, err := x.ResolveBundleIdentifier("Nope")
		assert.ErrorIs(t, err, ErrBundleNotFound)
	})
}

func TestMaterializeBundle(t *testing.T) {
	dir := fixture(t)
	x, err := Open(Options{DataDirs: []string{dir}})
	require.NoError(t, err)

	assert.True(t, x.HasLocalBundle("DesertPlanet"))
	assert.False(t, x.HasLocalBundle("CoreMod v1"))

	require.NoError(t, x.MaterializeBundle("CoreMod v1"))
	assert.True(t, x.HasLocalBundle("CoreMod v1"))
	assert.True(t, x.HasLocalBundle("Base"), "dependencies are mounted too")
	assert.FileExists(t, filepath.Join(dir, "cache", "extracted", "coremod-2.zip", "gamedata.lua"))

	// A second call must not touch the source archive again.
	require.NoError(t, os.Remove(filepath.Join(dir, GamesDir, "coremod-2.zip")))
	require.NoError(t, x.MaterializeBundle("CoreMod v1"))
}

func TestMaterializeMissingDependency(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, GamesDir, "mod", MetadataFile), "name: Mod\ndepends: [Missing]\n")
	x, err := Open(Options{DataDirs: []string{dir}})
	require.NoError(t, err)

	err = x.MaterializeBundle("Mod")
	assert.ErrorIs(t, err, ErrBundleNotFound)
}

func TestChecksumOfBundle(t *testing.T) {
	dir := fixture(t)
	x, err := Open(Options{DataDirs: []string{dir}})
	require.NoError(t, err)

	mapSum, err := x.ChecksumOfBundle("DesertPlanet")
	require.NoError(t, err)
	assert.NotZero(t, mapSum)

	again, err := x.ChecksumOfBundle("DesertPlanet")
	require.NoError(t, err)
	assert.Equal(t, mapSum, again)

	v1, err := x.ChecksumOfBundle("coremod-1.zip")
	require.NoError(t, err)
	v2, err := x.ChecksumOfBundle("coremod-2.zip")
	require.NoError(t, err)
	assert.NotEqual(t, v1, v2, "revisions with different content differ")

	t.Run("same content in another index agrees", func(t *testing.T) {
		y, err := Open(Options{DataDirs: []string{fixture(t)}})
		require.NoError(t, err)
		sum, err := y.ChecksumOfBundle("DesertPlanet")
		require.NoError(t, err)
		assert.Equal(t, mapSum, sum)
	})

	t.Run("dependency content is part of the checksum", func(t *testing.T) {
		other := fixture(t)
		writeFile(t, filepath.Join(other, GamesDir, "base", "units.lua"), "patched units")
		y, err := Open(Options{DataDirs: []string{other}})
		require.NoError(t, err)
		sum, err := y.ChecksumOfBundle("coremod-2.zip")
		require.NoError(t, err)
		assert.NotEqual(t, v2, sum)
	})
}

func TestChecksumUsesCache(t *testing.T) {
	dir := fixture(t)
	dbPath := filepath.Join(t.TempDir(), "cache.db")

	store, err := cache.Open(dbPath)
	require.NoError(t, err)
	x, err := Open(Options{DataDirs: []string{dir}, Cache: store})
	require.NoError(t, err)
	first, err := x.ChecksumOfBundle("DesertPlanet")
	require.NoError(t, err)
	require.NoError(t, x.Close())

	store, err = cache.Open(dbPath)
	require.NoError(t, err)
	y, err := Open(Options{DataDirs: []string{dir}, Cache: store})
	require.NoError(t, err)
	defer y.Close()
	second, err := y.ChecksumOfBundle("DesertPlanet")
	require.NoError(t, err)
	assert.Equal(t, first, second)
}

func TestReplacedZipIsExtractedAgain(t *testing.T) {
	dir := t.TempDir()
	zipPath := filepath.Join(dir, GamesDir, "coremod.zip")
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	writeZip(t, zipPath, map[string]string{"gamedata.lua": "old"})

	checksum := func() uint32 {
		store, err := cache.Open(dbPath)
		require.NoError(t, err)
		x, err := Open(Options{DataDirs: []string{dir}, Cache: store})
		require.NoError(t, err)
		defer x.Close()
		sum, err := x.ChecksumOfBundle("coremod")
		require.NoError(t, err)
		return sum
	}

	old := checksum()
	assert.Equal(t, old, checksum(), "unchanged zip reuses its extraction")

	writeZip(t, zipPath, map[string]string{"gamedata.lua": "brand new gameplay"})
	later := time.Now().Add(time.Hour)
	require.NoError(t, os.Chtimes(zipPath, later, later))

	replaced := checksum()
	assert.NotEqual(t, old, replaced)
	data, err := os.ReadFile(filepath.Join(dir, "cache", "extracted", "coremod.zip", "gamedata.lua"))
	require.NoError(t, err)
	assert.Equal(t, "brand new gameplay", string(data))

	fresh := t.TempDir()
	writeZip(t, filepath.Join(fresh, GamesDir, "coremod.zip"), map[string]string{"gamedata.lua": "brand new gameplay"})
	y, err := Open(Options{DataDirs: []string{fresh}})
	require.NoError(t, err)
	want, err := y.ChecksumOfBundle("coremod")
	require.NoError(t, err)
	assert.Equal(t, want, replaced, "a re-extracted bundle hashes like a first extraction")
}

func TestChecksumDiamondDependencies(t *testing.T) {
	// A depends on B and C, both of which depend on D.
	diamond := func(t *testing.T) string {
		dir := t.TempDir()
		writeFile(t, filepath.Join(dir, GamesDir, "a", MetadataFile), "name: A\ndepends: [B, C]\n")
		writeFile(t, filepath.Join(dir, GamesDir, "b", MetadataFile), "name: B\ndepends: [D]\n")
		writeFile(t, filepath.Join(dir, GamesDir, "c", MetadataFile), "name: C\ndepends: [D]\n")
		writeFile(t, filepath.Join(dir, GamesDir, "d", MetadataFile), "name: D\n")
		writeFile(t, filepath.Join(dir, GamesDir, "d", "shared.lua"), "shared")
		return dir
	}

	alone, err := Open(Options{DataDirs: []string{diamond(t)}})
	require.NoError(t, err)
	cAlone, err := alone.ChecksumOfBundle("C")
	require.NoError(t, err)

	x, err := Open(Options{DataDirs: []string{diamond(t)}})
	require.NoError(t, err)
	_, err = x.ChecksumOfBundle("A")
	require.NoError(t, err)
	cAfterA, err := x.ChecksumOfBundle("C")
	require.NoError(t, err)

	assert.Equal(t, cAlone, cAfterA, "D counts inside C no matter which path reached it first")
}

func TestChecksumDependencyCycle(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, GamesDir, "a", MetadataFile), "name: A\ndepends: [B]\n")
	writeFile(t, filepath.Join(dir, GamesDir, "b", MetadataFile), "name: B\ndepends: [A]\n")
	x, err := Open(Options{DataDirs: []string{dir}})
	require.NoError(t, err)

	sum, err := x.ChecksumOfBundle("A")
	require.NoError(t, err)
	assert.NotZero(t, sum)
}

func TestOpenRequiresDataDir(t *testing.T) {
	_, err := Open(Options{})
	assert.Error(t, err)
}
