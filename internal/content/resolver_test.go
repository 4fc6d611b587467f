package content

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vburojevic/dedicated/internal/domain"
)

// fakeIndex counts every call made against it.
type fakeIndex struct {
	mu             sync.Mutex
	local          map[string]bool
	checksums      map[string]uint32
	identifiers    map[string]string
	materializeErr error

	hasCalls         int
	materializeCalls map[string]int
	checksumCalls    int
	resolveCalls     int
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{
		local:            map[string]bool{},
		checksums:        map[string]uint32{},
		identifiers:      map[string]string{},
		materializeCalls: map[string]int{},
	}
}

func (f *fakeIndex) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	total := f.hasCalls + f.checksumCalls + f.resolveCalls
	for _, n := range f.materializeCalls {
		total += n
	}
	return total
}

func (f *fakeIndex) HasLocalBundle(name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hasCalls++
	return f.local[name]
}

func (f *fakeIndex) MaterializeBundle(name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.materializeCalls[name]++
	return f.materializeErr
}

func (f *fakeIndex) ChecksumOfBundle(name string) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.checksumCalls++
	sum, ok := f.checksums[name]
	if !ok {
		return 0, errors.New("no such bundle")
	}
	return sum, nil
}

func (f *fakeIndex) ResolveBundleIdentifier(displayName string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resolveCalls++
	id, ok := f.identifiers[displayName]
	if !ok {
		return "", errors.New("unknown name")
	}
	return id, nil
}

func TestResolveTrustedChecksumSkipsIndex(t *testing.T) {
	idx := newFakeIndex()
	r := NewResolver(idx, nil)

	for _, kind := range []domain.ContentKind{domain.ContentMap, domain.ContentMod} {
		for _, sum := range []uint32{1, 0xDEADBEEF, 0xFFFFFFFF} {
			got, err := r.Resolve(context.Background(), domain.ContentReference{Name: "anything", TrustedChecksum: sum}, kind)
			require.NoError(t, err)
			assert.Equal(t, sum, got)
		}
	}
	assert.Zero(t, idx.calls())
}

func TestResolveMapMaterializesOnce(t *testing.T) {
	idx := newFakeIndex()
	idx.checksums["DesertPlanet"] = 0x12345678
	r := NewResolver(idx, nil)
	ref := domain.ContentReference{Name: "DesertPlanet"}

	for i := 0; i < 2; i++ {
		sum, err := r.Resolve(context.Background(), ref, domain.ContentMap)
		require.NoError(t, err)
		assert.Equal(t, uint32(0x12345678), sum)
	}
	assert.Equal(t, 1, idx.materializeCalls["DesertPlanet"])
}

func TestResolveMapMaterializesOnceConcurrently(t *testing.T) {
	idx := newFakeIndex()
	idx.checksums["DesertPlanet"] = 0x12345678
	r := NewResolver(idx, nil)
	ref := domain.ContentReference{Name: "DesertPlanet"}

	const workers = 10
	start := make(chan struct{})
	sums := make([]uint32, workers)
	errs := make([]error, workers)
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			sums[i], errs[i] = r.Resolve(context.Background(), ref, domain.ContentMap)
		}(i)
	}
	close(start)
	wg.Wait()

	for i := 0; i < workers; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, uint32(0x12345678), sums[i])
	}
	idx.mu.Lock()
	defer idx.mu.Unlock()
	assert.Equal(t, 1, idx.materializeCalls["DesertPlanet"])
	assert.Equal(t, workers, idx.checksumCalls)
}

func TestResolveMapAlreadyLocal(t *testing.T) {
	idx := newFakeIndex()
	idx.local["DesertPlanet"] = true
	idx.checksums["DesertPlanet"] = 0x12345678
	r := NewResolver(idx, nil)

	sum, err := r.Resolve(context.Background(), domain.ContentReference{Name: "DesertPlanet"}, domain.ContentMap)
	require.NoError(t, err)
	assert.Equal(t, uint32(0x12345678), sum)
	assert.Zero(t, idx.materializeCalls["DesertPlanet"])
}

func TestResolveModUsesIdentifier(t *testing.T) {
	idx := newFakeIndex()
	idx.identifiers["CoreMod v1"] = "coremod-2.zip"
	idx.checksums["coremod-2.zip"] = 0xCAFEF00D
	r := NewResolver(idx, nil)

	sum, err := r.Resolve(context.Background(), domain.ContentReference{Name: "CoreMod v1"}, domain.ContentMod)
	require.NoError(t, err)
	assert.Equal(t, uint32(0xCAFEF00D), sum)
	assert.Equal(t, 1, idx.resolveCalls)
	assert.Zero(t, idx.hasCalls, "mods are not checked for local availability")
}

func TestResolveFailures(t *testing.T) {
	tests := []struct {
		name  string
		setup func(*fakeIndex)
		ref   domain.ContentReference
		kind  domain.ContentKind
	}{
		{"unknown mod", func(*fakeIndex) {}, domain.ContentReference{Name: "Nope"}, domain.ContentMod},
		{"map materialize fails", func(f *fakeIndex) { f.materializeErr = errors.New("disk full") }, domain.ContentReference{Name: "m"}, domain.ContentMap},
		{"map checksum fails", func(*fakeIndex) {}, domain.ContentReference{Name: "m"}, domain.ContentMap},
		{"zero checksum", func(f *fakeIndex) { f.checksums["m"] = 0 }, domain.ContentReference{Name: "m"}, domain.ContentMap},
		{"empty name", func(*fakeIndex) {}, domain.ContentReference{}, domain.ContentMap},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx := newFakeIndex()
			tt.setup(idx)
			_, err := NewResolver(idx, nil).Resolve(context.Background(), tt.ref, tt.kind)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrContentUnavailable)

			var cu *ContentUnavailableError
			require.ErrorAs(t, err, &cu)
			assert.Equal(t, tt.ref.Name, cu.Name)
			assert.Equal(t, tt.kind, cu.Kind)
		})
	}
}

func TestResolveAll(t *testing.T) {
	idx := newFakeIndex()
	idx.checksums["DesertPlanet"] = 0x12345678
	r := NewResolver(idx, nil)

	script := domain.SessionScript{MapName: "DesertPlanet", ModName: "CoreMod v1", ModHash: 0xDEADBEEF}
	sums, err := r.ResolveAll(context.Background(), script)
	require.NoError(t, err)
	assert.Equal(t, Checksums{Map: 0x12345678, Mod: 0xDEADBEEF}, sums)
	assert.Zero(t, idx.resolveCalls, "trusted mod never reaches the index")
}

func TestResolveAllPropagatesFailure(t *testing.T) {
	r := NewResolver(newFakeIndex(), nil)

	_, err := r.ResolveAll(context.Background(), domain.SessionScript{MapName: "Missing", ModName: "g", ModHash: 1})
	var cu *ContentUnavailableError
	require.ErrorAs(t, err, &cu)
	assert.Equal(t, "Missing", cu.Name)
}
