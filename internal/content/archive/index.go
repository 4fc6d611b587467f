// Package archive indexes map and mod bundles on local disk and computes
// the checksums every participant of a session must agree on.
package archive

import (
	"context"
	"errors"
	"fmt"
	"hash/crc32"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/zap"

	"github.com/vburojevic/dedicated/internal/content/cache"
	"github.com/vburojevic/dedicated/internal/domain"
)

// ErrBundleNotFound is returned for names no data directory provides.
var ErrBundleNotFound = errors.New("bundle not found")

// Subdirectories of a data directory holding each kind of bundle.
const (
	MapsDir  = "maps"
	GamesDir = "games"
)

// Options configures an Index.
type Options struct {
	// DataDirs are scanned in order; the first directory providing an ID wins.
	DataDirs []string
	// ExtractDir receives unpacked zip bundles. Defaults to <first data dir>/cache/extracted.
	ExtractDir string
	// Cache persists per-bundle checksums. Optional.
	Cache  *cache.Store
	Logger *zap.Logger
}

// Index is a scanned view of the bundles available on this host.
// It is safe for concurrent use.
type Index struct {
	dataDirs   []string
	extractDir string
	cache      *cache.Store
	logger     *zap.Logger

	bundles map[string]*Bundle   // lowercased ID
	byName  map[string][]*Bundle // lowercased display name

	mu       sync.Mutex
	mounted  map[string]string   // ID -> root directory of materialized content
	sums     map[string]uint32   // ID -> checksum of the bundle's own files
	complete map[string]uint32   // ID -> own checksum folded with its dependencies
	stamps   map[string]zipStamp // ID -> identity of the zip last extracted
}

// Open scans the data directories.
func Open(opts Options) (*Index, error) {
	if len(opts.DataDirs) == 0 {
		return nil, fmt.Errorf("at least one data directory is required")
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	x := &Index{
		dataDirs:   lo.Uniq(opts.DataDirs),
		extractDir: opts.ExtractDir,
		cache:      opts.Cache,
		logger:     logger,
		bundles:    make(map[string]*Bundle),
		byName:     make(map[string][]*Bundle),
		mounted:    make(map[string]string),
		sums:       make(map[string]uint32),
		complete:   make(map[string]uint32),
		stamps:     make(map[string]zipStamp),
	}
	if x.extractDir == "" {
		x.extractDir = filepath.Join(x.dataDirs[0], "cache", "extracted")
	}
	if err := x.scan(); err != nil {
		return nil, err
	}
	return x, nil
}

// Close releases the checksum cache.
func (x *Index) Close() error {
	if x.cache == nil {
		return nil
	}
	return x.cache.Close()
}

func (x *Index) scan() error {
	kinds := []struct {
		dir  string
		kind domain.ContentKind
	}{
		{MapsDir, domain.ContentMap},
		{GamesDir, domain.ContentMod},
	}
	for _, dataDir := range x.dataDirs {
		for _, k := range kinds {
			entries, err := os.ReadDir(filepath.Join(dataDir, k.dir))
			if err != nil {
				if os.IsNotExist(err) {
					continue
				}
				return fmt.Errorf("scan %s: %w", dataDir, err)
			}
			for _, e := range entries {
				b, err := readBundle(filepath.Join(dataDir, k.dir, e.Name()), k.kind)
				if err != nil {
					x.logger.Warn("skipping unreadable bundle", zap.String("path", e.Name()), zap.Error(err))
					continue
				}
				if b == nil {
					continue
				}
				id := strings.ToLower(b.ID)
				if _, dup := x.bundles[id]; dup {
					continue
				}
				x.bundles[id] = b
				name := strings.ToLower(b.DisplayName())
				x.byName[name] = append(x.byName[name], b)
			}
		}
	}
	x.logger.Debug("scanned data directories",
		zap.Strings("dirs", x.dataDirs),
		zap.Int("bundles", len(x.bundles)),
	)
	return nil
}

// Bundles lists every indexed bundle sorted by ID.
func (x *Index) Bundles() []Bundle {
	out := lo.Map(lo.Values(x.bundles), func(b *Bundle, _ int) Bundle { return *b })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// ResolveBundleIdentifier maps a display name to a bundle ID. Several
// revisions may share a display name; the greatest ID wins.
func (x *Index) ResolveBundleIdentifier(displayName string) (string, error) {
	candidates := x.byName[strings.ToLower(strings.TrimSpace(displayName))]
	if len(candidates) == 0 {
		if b, ok := x.bundles[strings.ToLower(displayName)]; ok {
			return b.ID, nil
		}
		return "", fmt.Errorf("%w: %q", ErrBundleNotFound, displayName)
	}
	best := lo.MaxBy(candidates, func(a, b *Bundle) bool { return a.ID > b.ID })
	return best.ID, nil
}

// lookup finds a bundle by ID first, then by display name.
func (x *Index) lookup(name string) (*Bundle, error) {
	if b, ok := x.bundles[strings.ToLower(name)]; ok {
		return b, nil
	}
	id, err := x.ResolveBundleIdentifier(name)
	if err != nil {
		return nil, err
	}
	return x.bundles[strings.ToLower(id)], nil
}

// HasLocalBundle reports whether name is already usable from local disk:
// mounted by an earlier MaterializeBundle, or present as maps/<name>.
func (x *Index) HasLocalBundle(name string) bool {
	if b, err := x.lookup(name); err == nil {
		x.mu.Lock()
		_, ok := x.mounted[b.ID]
		x.mu.Unlock()
		if ok {
			return true
		}
	}
	for _, dir := range x.dataDirs {
		if info, err := os.Stat(filepath.Join(dir, MapsDir, name)); err == nil && info.IsDir() {
			return true
		}
	}
	return false
}

// MaterializeBundle makes name and its dependencies available on local disk.
// Repeated calls are no-ops.
func (x *Index) MaterializeBundle(name string) error {
	b, err := x.lookup(name)
	if err != nil {
		return err
	}
	x.mu.Lock()
	defer x.mu.Unlock()
	return x.mountLocked(b, map[string]bool{})
}

func (x *Index) mountLocked(b *Bundle, visiting map[string]bool) error {
	if _, ok := x.mounted[b.ID]; ok || visiting[b.ID] {
		return nil
	}
	visiting[b.ID] = true

	for _, dep := range b.Depends {
		d, err := x.lookup(dep)
		if err != nil {
			return fmt.Errorf("dependency of %s: %w", b.ID, err)
		}
		if err := x.mountLocked(d, visiting); err != nil {
			return err
		}
	}

	root := b.Path
	if b.Zipped {
		root = filepath.Join(x.extractDir, b.ID)
		stamp, err := readZipStamp(b.Path)
		if err != nil {
			return fmt.Errorf("inspect %s: %w", b.ID, err)
		}
		if !extractedFrom(root, stamp) {
			x.logger.Info("extracting bundle", zap.String("bundle", b.ID), zap.String("dest", root))
			if err := os.RemoveAll(root); err != nil {
				return fmt.Errorf("clear %s: %w", b.ID, err)
			}
			if err := extractZip(b.Path, root); err != nil {
				return fmt.Errorf("extract %s: %w", b.ID, err)
			}
			if err := os.WriteFile(root+stampSuffix, []byte(stamp.String()), 0o644); err != nil {
				return fmt.Errorf("stamp %s: %w", b.ID, err)
			}
		}
		x.stamps[b.ID] = stamp
	}
	x.mounted[b.ID] = root
	return nil
}

// ChecksumOfBundle returns the complete checksum of name: its own files
// followed by each dependency's complete checksum in declaration order.
func (x *Index) ChecksumOfBundle(name string) (uint32, error) {
	b, err := x.lookup(name)
	if err != nil {
		return 0, err
	}
	if err := x.MaterializeBundle(b.ID); err != nil {
		return 0, err
	}
	return x.completeChecksum(b, map[string]bool{})
}

// completeChecksum memoizes per bundle, so a dependency reached along several
// paths always contributes the same value. stack holds the bundles currently
// being folded; a dependency cycle is cut where it closes.
func (x *Index) completeChecksum(b *Bundle, stack map[string]bool) (uint32, error) {
	x.mu.Lock()
	sum, ok := x.complete[b.ID]
	x.mu.Unlock()
	if ok {
		return sum, nil
	}
	stack[b.ID] = true
	defer delete(stack, b.ID)

	sum, err := x.ownChecksum(b)
	if err != nil {
		return 0, err
	}
	for _, dep := range b.Depends {
		d, err := x.lookup(dep)
		if err != nil {
			return 0, fmt.Errorf("dependency of %s: %w", b.ID, err)
		}
		if stack[d.ID] {
			continue
		}
		ds, err := x.completeChecksum(d, stack)
		if err != nil {
			return 0, err
		}
		sum = crc32.Update(sum, crc32.IEEETable, []byte{byte(ds), byte(ds >> 8), byte(ds >> 16), byte(ds >> 24)})
	}
	x.mu.Lock()
	x.complete[b.ID] = sum
	x.mu.Unlock()
	return sum, nil
}

func (x *Index) ownChecksum(b *Bundle) (uint32, error) {
	x.mu.Lock()
	sum, ok := x.sums[b.ID]
	root := x.mounted[b.ID]
	stamp, zipped := x.stamps[b.ID]
	x.mu.Unlock()
	if ok {
		return sum, nil
	}

	files, key, err := listFiles(root)
	if err != nil {
		return 0, fmt.Errorf("list %s: %w", b.ID, err)
	}
	key.Path = b.Path
	if zipped {
		key = stamp.cacheKey(b.Path)
	}

	ctx := context.Background()
	if x.cache != nil {
		if cached, hit, err := x.cache.Lookup(ctx, key); err != nil {
			x.logger.Warn("checksum cache lookup failed", zap.String("bundle", b.ID), zap.Error(err))
		} else if hit {
			x.remember(b.ID, cached)
			return cached, nil
		}
	}

	sum, err = hashFiles(root, files)
	if err != nil {
		return 0, fmt.Errorf("checksum %s: %w", b.ID, err)
	}
	if x.cache != nil {
		if err := x.cache.Put(ctx, key, sum); err != nil {
			x.logger.Warn("checksum cache store failed", zap.String("bundle", b.ID), zap.Error(err))
		}
	}
	x.remember(b.ID, sum)
	return sum, nil
}

func (x *Index) remember(id string, sum uint32) {
	x.mu.Lock()
	x.sums[id] = sum
	x.mu.Unlock()
}

// listFiles returns the sorted relative paths of regular files under root
// and a cache key summarizing their sizes and newest mtime.
func listFiles(root string) ([]string, cache.Key, error) {
	var (
		files  []string
		key    cache.Key
		newest time.Time
	)
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.Type().IsRegular() {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, path)
		if err != nil {
			return err
		}
		files = append(files, filepath.ToSlash(rel))
		key.Size += info.Size()
		if info.ModTime().After(newest) {
			newest = info.ModTime()
		}
		return nil
	})
	if err != nil {
		return nil, cache.Key{}, err
	}
	sort.Slice(files, func(i, j int) bool {
		return strings.ToLower(files[i]) < strings.ToLower(files[j])
	})
	key.ModTime = newest
	return files, key, nil
}

func hashFiles(root string, files []string) (uint32, error) {
	h := crc32.NewIEEE()
	for _, rel := range files {
		io.WriteString(h, strings.ToLower(rel))
		f, err := os.Open(filepath.Join(root, filepath.FromSlash(rel)))
		if err != nil {
			return 0, err
		}
		_, err = io.Copy(h, f)
		f.Close()
		if err != nil {
			return 0, err
		}
	}
	return h.Sum32(), nil
}
