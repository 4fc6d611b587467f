package archive

import (
	"archive/zip"
	"fmt"
	"hash/crc32"
	"os"
	"time"

	"github.com/vburojevic/dedicated/internal/content/cache"
)

// stampSuffix names the file next to an extracted bundle recording which zip it came from.
const stampSuffix = ".stamp"

// zipStamp identifies a zip's contents: file size, mtime and a CRC over the
// name and CRC-32 of every entry in its central directory.
type zipStamp struct {
	Size    int64
	ModTime time.Time
	Entries uint32
}

func readZipStamp(path string) (zipStamp, error) {
	info, err := os.Stat(path)
	if err != nil {
		return zipStamp{}, err
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		return zipStamp{}, err
	}
	defer zr.Close()

	h := crc32.NewIEEE()
	for _, f := range zr.File {
		fmt.Fprintf(h, "%s:%08x;", f.Name, f.CRC32)
	}
	return zipStamp{Size: info.Size(), ModTime: info.ModTime(), Entries: h.Sum32()}, nil
}

func (z zipStamp) String() string {
	return fmt.Sprintf("%d %d %08x", z.Size, z.ModTime.UnixNano(), z.Entries)
}

// cacheKey keys checksums by the zip itself, so a replaced archive misses the cache
// even when its extracted files look alike.
func (z zipStamp) cacheKey(path string) cache.Key {
	return cache.Key{
		Path:    fmt.Sprintf("%s@%08x", path, z.Entries),
		Size:    z.Size,
		ModTime: z.ModTime,
	}
}

// extractedFrom reports whether root holds an extraction of exactly this zip.
func extractedFrom(root string, z zipStamp) bool {
	info, err := os.Stat(root)
	if err != nil || !info.IsDir() {
		return false
	}
	recorded, err := os.ReadFile(root + stampSuffix)
	return err == nil && string(recorded) == z.String()
}
