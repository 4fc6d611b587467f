package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/vburojevic/dedicated/internal/domain"
)

// MetadataFile is the optional descriptor at the root of a bundle.
const MetadataFile = "bundle.yaml"

// Bundle is one map or mod found in a data directory.
type Bundle struct {
	ID      string             // File name of the bundle, unique per index
	Kind    domain.ContentKind // Map for maps/, Mod for games/
	Name    string
	Version string
	Depends []string // Bundle names or identifiers, in declaration order
	Path    string   // Directory or .zip on disk
	Zipped  bool
}

// DisplayName is the name scripts use to refer to the bundle.
func (b Bundle) DisplayName() string {
	if b.Version == "" {
		return b.Name
	}
	return b.Name + " " + b.Version
}

type metadata struct {
	Name    string   `yaml:"name"`
	Version string   `yaml:"version"`
	Depends []string `yaml:"depends"`
}

// readBundle loads a bundle's metadata from a directory or zip file.
func readBundle(path string, kind domain.ContentKind) (*Bundle, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, err
	}
	b := &Bundle{
		ID:   filepath.Base(path),
		Kind: kind,
		Path: path,
	}

	var raw []byte
	switch {
	case info.IsDir():
		raw, err = os.ReadFile(filepath.Join(path, MetadataFile))
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("read %s metadata: %w", b.ID, err)
		}
	case strings.EqualFold(filepath.Ext(path), ".zip"):
		b.Zipped = true
		raw, err = readZipMember(path, MetadataFile)
		if err != nil {
			return nil, fmt.Errorf("read %s metadata: %w", b.ID, err)
		}
	default:
		return nil, nil
	}

	var meta metadata
	if len(raw) > 0 {
		if err := yaml.Unmarshal(raw, &meta); err != nil {
			return nil, fmt.Errorf("parse %s metadata: %w", b.ID, err)
		}
	}
	b.Name = strings.TrimSpace(meta.Name)
	if b.Name == "" {
		b.Name = strings.TrimSuffix(b.ID, filepath.Ext(b.ID))
		if info.IsDir() {
			b.Name = b.ID
		}
	}
	b.Version = strings.TrimSpace(meta.Version)
	b.Depends = meta.Depends
	return b, nil
}

// readZipMember returns the named member of a zip, or nil if absent.
func readZipMember(path, name string) ([]byte, error) {
	zr, err := zip.OpenReader(path)
	if err != nil {
		return nil, err
	}
	defer zr.Close()
	for _, f := range zr.File {
		if f.Name != name {
			continue
		}
		rc, err := f.Open()
		if err != nil {
			return nil, err
		}
		defer rc.Close()
		return io.ReadAll(rc)
	}
	return nil, nil
}

// extractZip unpacks src into dst, refusing entries that escape dst.
func extractZip(src, dst string) error {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer zr.Close()

	tmp := dst + ".partial"
	if err := os.RemoveAll(tmp); err != nil {
		return err
	}
	for _, f := range zr.File {
		target := filepath.Join(tmp, filepath.FromSlash(f.Name))
		if !strings.HasPrefix(target, filepath.Clean(tmp)+string(os.PathSeparator)) {
			return fmt.Errorf("zip entry %q escapes bundle", f.Name)
		}
		if f.FileInfo().IsDir() {
			if err := os.MkdirAll(target, 0o755); err != nil {
				return err
			}
			continue
		}
		if err := writeZipFile(f, target); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	return os.Rename(tmp, dst)
}

func writeZipFile(f *zip.File, target string) error {
	if err := os.MkdirAll(filepath.Dir(target), 0o755); err != nil {
		return err
	}
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()
	out, err := os.Create(target)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, rc); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
