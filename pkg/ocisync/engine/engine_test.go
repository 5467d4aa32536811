package engine_test

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruasync/ocisync/pkg/errdefs"
	"github.com/ruasync/ocisync/pkg/ocispec"
	"github.com/ruasync/ocisync/pkg/ocispec/manifest"
	"github.com/ruasync/ocisync/pkg/ocisync/backend"
	"github.com/ruasync/ocisync/pkg/ocisync/engine"
)

// fakeImageManifest is a minimal manifest.ImageManifest for test fixtures.
type fakeImageManifest struct {
	mediaType string
	config    imgspecv1.Descriptor
	layers    []manifest.LayerDescriptor
	raw       []byte
}

func (m *fakeImageManifest) MediaType() string { return m.mediaType }
func (m *fakeImageManifest) References() []imgspecv1.Descriptor {
	refs := []imgspecv1.Descriptor{m.config}
	for _, l := range m.layers {
		refs = append(refs, l.Descriptor)
	}
	return refs
}
func (m *fakeImageManifest) Payload() ([]byte, error)            { return m.raw, nil }
func (m *fakeImageManifest) Config() imgspecv1.Descriptor        { return m.config }
func (m *fakeImageManifest) Layers() []manifest.LayerDescriptor { return m.layers }

// fakeIndexManifest is a minimal ocispec.IndexManifest for test fixtures.
type fakeIndexManifest struct {
	mediaType string
	children  []imgspecv1.Descriptor
	raw       []byte
}

func (m *fakeIndexManifest) MediaType() string                     { return m.mediaType }
func (m *fakeIndexManifest) References() []imgspecv1.Descriptor    { return m.children }
func (m *fakeIndexManifest) Payload() ([]byte, error)               { return m.raw, nil }
func (m *fakeIndexManifest) Manifests() []imgspecv1.Descriptor     { return m.children }

var (
	_ manifest.ImageManifest = (*fakeImageManifest)(nil)
	_ ocispec.IndexManifest  = (*fakeIndexManifest)(nil)
)

// memBackend is an in-memory backend.Backend used to exercise the engine
// without a real registry or filesystem.
type memBackend struct {
	mu        sync.Mutex
	blobs     map[string][]byte
	manifests map[string]backend.FetchedManifest
	tags      map[string][]string
}

func newMemBackend() *memBackend {
	return &memBackend{
		blobs:     make(map[string][]byte),
		manifests: make(map[string]backend.FetchedManifest),
		tags:      make(map[string][]string),
	}
}

func blobKey(repo string, dgst digest.Digest) string { return repo + "@" + dgst.String() }
func manifestKey(repo, target string) string          { return repo + "/" + target }

func (b *memBackend) Ping(context.Context) error { return nil }

func (b *memBackend) PingResource(context.Context, string) error { return nil }

func (b *memBackend) Catalog(context.Context) ([]string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	var names []string
	for repo := range b.tags {
		names = append(names, repo)
	}
	return names, nil
}

func (b *memBackend) TagList(_ context.Context, repo string) (backend.TagList, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return backend.TagList{Name: repo, Tags: append([]string(nil), b.tags[repo]...)}, nil
}

func (b *memBackend) FetchManifest(_ context.Context, repo string, target string, _ string) (backend.FetchedManifest, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	fm, ok := b.manifests[manifestKey(repo, target)]
	if !ok {
		return backend.FetchedManifest{}, errdefs.Newf(errdefs.ErrNotFound, "manifest %s/%s", repo, target)
	}
	return fm, nil
}

func (b *memBackend) PutManifest(_ context.Context, repo string, fm backend.FetchedManifest, target string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.manifests[manifestKey(repo, target)] = fm
	if _, err := digest.Parse(target); err != nil {
		b.tags[repo] = append(b.tags[repo], target)
	}
	return nil
}

func (b *memBackend) HasBlob(_ context.Context, repo string, dgst digest.Digest) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.blobs[blobKey(repo, dgst)]
	return ok, nil
}

func (b *memBackend) FetchBlob(_ context.Context, repo string, dgst digest.Digest, sink backend.BlobSink) error {
	b.mu.Lock()
	content, ok := b.blobs[blobKey(repo, dgst)]
	b.mu.Unlock()
	if !ok {
		return errdefs.Newf(errdefs.ErrNotFound, "blob %s/%s", repo, dgst)
	}
	_, err := sink(content)
	return err
}

func (b *memBackend) PutBlob(_ context.Context, repo string, dgst digest.Digest, _ int64, r io.Reader) error {
	content, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.blobs[blobKey(repo, dgst)] = content
	return nil
}

var _ backend.Backend = (*memBackend)(nil)

func putBlob(t *testing.T, b *memBackend, repo string, content []byte) imgspecv1.Descriptor {
	t.Helper()
	dgst := digest.FromBytes(content)
	b.blobs[blobKey(repo, dgst)] = content
	return imgspecv1.Descriptor{Digest: dgst, Size: int64(len(content))}
}

func TestEngine_SyncRepo_SingleImage(t *testing.T) {
	ctx := context.Background()
	source := newMemBackend()
	dest := newMemBackend()

	const repo = "library/nginx"
	configDesc := putBlob(t, source, repo, []byte(`{"config":true}`))
	layerDesc := putBlob(t, source, repo, []byte("layer-data"))

	img := &fakeImageManifest{
		mediaType: ocispec.MediaTypeImageManifest,
		config:    configDesc,
		layers:    []manifest.LayerDescriptor{{Descriptor: layerDesc}},
		raw:       []byte(`{"fake":"manifest"}`),
	}
	source.manifests[manifestKey(repo, "latest")] = backend.FetchedManifest{
		Manifest: img,
		Raw:      img.raw,
	}

	eng := engine.New(source, dest)
	require.NoError(t, eng.SyncRepo(ctx, repo, []string{"latest"}))

	hasConfig, err := dest.HasBlob(ctx, repo, configDesc.Digest)
	require.NoError(t, err)
	assert.True(t, hasConfig)

	hasLayer, err := dest.HasBlob(ctx, repo, layerDesc.Digest)
	require.NoError(t, err)
	assert.True(t, hasLayer)

	fm, err := dest.FetchManifest(ctx, repo, "latest", "")
	require.NoError(t, err)
	assert.Equal(t, img.raw, fm.Raw)

	list, err := dest.TagList(ctx, repo)
	require.NoError(t, err)
	assert.Equal(t, []string{"latest"}, list.Tags)
}

func TestEngine_SyncRepo_ManifestList(t *testing.T) {
	ctx := context.Background()
	source := newMemBackend()
	dest := newMemBackend()

	const repo = "library/nginx"
	configDesc := putBlob(t, source, repo, []byte(`{"config":"amd64"}`))
	layerDesc := putBlob(t, source, repo, []byte("amd64-layer"))

	child := &fakeImageManifest{
		mediaType: ocispec.MediaTypeImageManifest,
		config:    configDesc,
		layers:    []manifest.LayerDescriptor{{Descriptor: layerDesc}},
		raw:       []byte(`{"platform":"amd64"}`),
	}
	childDigest := digest.FromBytes(child.raw)
	childDesc := imgspecv1.Descriptor{MediaType: child.mediaType, Digest: childDigest, Size: int64(len(child.raw))}
	source.manifests[manifestKey(repo, childDigest.String())] = backend.FetchedManifest{Manifest: child, Raw: child.raw}

	index := &fakeIndexManifest{
		mediaType: ocispec.MediaTypeImageIndex,
		children:  []imgspecv1.Descriptor{childDesc},
		raw:       []byte(`{"manifests":["amd64"]}`),
	}
	source.manifests[manifestKey(repo, "v1")] = backend.FetchedManifest{Manifest: index, Raw: index.raw}

	eng := engine.New(source, dest)
	require.NoError(t, eng.SyncRepo(ctx, repo, []string{"v1"}))

	hasLayer, err := dest.HasBlob(ctx, repo, layerDesc.Digest)
	require.NoError(t, err)
	assert.True(t, hasLayer, "child image layer must be copied to the destination")

	childFM, err := dest.FetchManifest(ctx, repo, childDigest.String(), "")
	require.NoError(t, err)
	assert.Equal(t, child.raw, childFM.Raw)

	topFM, err := dest.FetchManifest(ctx, repo, "v1", "")
	require.NoError(t, err)
	assert.Equal(t, index.raw, topFM.Raw)
}

func TestEngine_SyncRepo_SkipsExistingBlob(t *testing.T) {
	ctx := context.Background()
	source := newMemBackend()
	dest := newMemBackend()

	const repo = "library/nginx"
	configDesc := putBlob(t, source, repo, []byte(`{}`))
	layerContent := []byte("shared-layer")
	layerDesc := putBlob(t, source, repo, layerContent)
	// destination already has the layer under a different digest source.
	dest.blobs[blobKey(repo, layerDesc.Digest)] = layerContent

	img := &fakeImageManifest{
		mediaType: ocispec.MediaTypeImageManifest,
		config:    configDesc,
		layers:    []manifest.LayerDescriptor{{Descriptor: layerDesc}},
		raw:       []byte(`{"fake":"manifest"}`),
	}
	source.manifests[manifestKey(repo, "latest")] = backend.FetchedManifest{Manifest: img, Raw: img.raw}

	eng := engine.New(source, dest)
	require.NoError(t, eng.SyncRepo(ctx, repo, []string{"latest"}))

	hasConfig, err := dest.HasBlob(ctx, repo, configDesc.Digest)
	require.NoError(t, err)
	assert.True(t, hasConfig)
}

func TestEngine_SyncRepo_TagFailureIsNonFatal(t *testing.T) {
	ctx := context.Background()
	source := newMemBackend()
	dest := newMemBackend()
	const repo = "library/nginx"

	eng := engine.New(source, dest)
	err := eng.SyncRepo(ctx, repo, []string{"missing-tag"})
	require.Error(t, err)

	var resourceErr *engine.ResourceFailure
	assert.True(t, errors.As(err, &resourceErr))
}

func TestEngine_Ping(t *testing.T) {
	ctx := context.Background()
	source := newMemBackend()
	dest := newMemBackend()
	eng := engine.New(source, dest)
	assert.NoError(t, eng.Ping(ctx))
}
