// Package content resolves the map and mod checksums a session is launched with.
package content

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/vburojevic/dedicated/internal/domain"
)

// ErrContentUnavailable is matched by every resolution failure.
var ErrContentUnavailable = errors.New("content unavailable")

// ContentUnavailableError names the content that could not be resolved.
type ContentUnavailableError struct {
	Name string
	Kind domain.ContentKind
	Err  error
}

func (e *ContentUnavailableError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s %q unavailable", e.Kind, e.Name)
	}
	return fmt.Sprintf("%s %q unavailable: %v", e.Kind, e.Name, e.Err)
}

func (e *ContentUnavailableError) Unwrap() error { return e.Err }

// Is lets errors.Is match ErrContentUnavailable.
func (e *ContentUnavailableError) Is(target error) bool {
	return target == ErrContentUnavailable
}

// Index is the content store the resolver consults for untrusted references.
type Index interface {
	HasLocalBundle(name string) bool
	MaterializeBundle(name string) error
	ChecksumOfBundle(name string) (uint32, error)
	ResolveBundleIdentifier(displayName string) (string, error)
}

// Resolver turns content references into verified checksums.
type Resolver struct {
	index  Index
	logger *zap.Logger

	mu        sync.Mutex
	materials map[string]*materialization
}

// materialization latches the outcome of pulling one name onto local disk.
type materialization struct {
	once sync.Once
	err  error
}

// NewResolver creates a resolver over index.
func NewResolver(index Index, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		index:     index,
		logger:    logger,
		materials: make(map[string]*materialization),
	}
}

// Resolve returns the checksum for ref. A trusted checksum is returned as is
// without consulting the index.
func (r *Resolver) Resolve(ctx context.Context, ref domain.ContentReference, kind domain.ContentKind) (uint32, error) {
	if ref.Trusted() {
		r.logger.Debug("using script checksum",
			zap.Stringer("kind", kind),
			zap.String("name", ref.Name),
			zap.String("checksum", fmt.Sprintf("%08x", ref.TrustedChecksum)),
		)
		return ref.TrustedChecksum, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	unavailable := func(err error) error {
		return &ContentUnavailableError{Name: ref.Name, Kind: kind, Err: err}
	}
	if ref.Name == "" {
		return 0, unavailable(errors.New("no name given"))
	}

	target := ref.Name
	switch kind {
	case domain.ContentMap:
		if !r.index.HasLocalBundle(ref.Name) {
			if err := r.materialize(ref.Name); err != nil {
				return 0, unavailable(err)
			}
		}
	case domain.ContentMod:
		id, err := r.index.ResolveBundleIdentifier(ref.Name)
		if err != nil {
			return 0, unavailable(err)
		}
		target = id
	default:
		return 0, unavailable(fmt.Errorf("unknown content kind %d", int(kind)))
	}

	sum, err := r.index.ChecksumOfBundle(target)
	if err != nil {
		return 0, unavailable(err)
	}
	if sum == 0 {
		return 0, unavailable(errors.New("index returned an empty checksum"))
	}
	r.logger.Debug("computed checksum",
		zap.Stringer("kind", kind),
		zap.String("name", ref.Name),
		zap.String("bundle", target),
		zap.String("checksum", fmt.Sprintf("%08x", sum)),
	)
	return sum, nil
}

// materialize pulls name onto local disk at most once per resolver.
func (r *Resolver) materialize(name string) error {
	r.mu.Lock()
	m, ok := r.materials[name]
	if !ok {
		m = &materialization{}
		r.materials[name] = m
	}
	r.mu.Unlock()

	m.once.Do(func() {
		r.logger.Info("materializing content", zap.String("name", name))
		m.err = r.index.MaterializeBundle(name)
	})
	return m.err
}

// Checksums holds the resolved content of one session.
type Checksums struct {
	Map uint32
	Mod uint32
}

// ResolveAll resolves the script's map and mod concurrently.
func (r *Resolver) ResolveAll(ctx context.Context, script domain.SessionScript) (Checksums, error) {
	var sums Checksums
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		sum, err := r.Resolve(gctx, script.MapRef(), domain.ContentMap)
		sums.Map = sum
		return err
	})
	g.Go(func() error {
		sum, err := r.Resolve(gctx, script.ModRef(), domain.ContentMod)
		sums.Mod = sum
		return err
	})
	if err := g.Wait(); err != nil {
		return Checksums{}, err
	}
	return sums, nil
}
