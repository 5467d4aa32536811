package dirstore_test

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruasync/ocisync/pkg/errdefs"
	"github.com/ruasync/ocisync/pkg/ocisync/backend"
	"github.com/ruasync/ocisync/pkg/ocisync/dirstore"
)

func newBackend(t *testing.T) *dirstore.Backend {
	t.Helper()
	return dirstore.NewBackend(afero.NewMemMapFs(), "/data", "registry.example.com")
}

func TestBackend_BlobRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	content := []byte("hello blob")
	dgst := digest.FromBytes(content)

	has, err := b.HasBlob(ctx, "library/nginx", dgst)
	require.NoError(t, err)
	assert.False(t, has)

	err = b.PutBlob(ctx, "library/nginx", dgst, int64(len(content)), bytes.NewReader(content))
	require.NoError(t, err)

	has, err = b.HasBlob(ctx, "library/nginx", dgst)
	require.NoError(t, err)
	assert.True(t, has)

	var got []byte
	err = b.FetchBlob(ctx, "library/nginx", dgst, func(chunk []byte) (bool, error) {
		got = append(got, chunk...)
		return true, nil
	})
	require.NoError(t, err)
	assert.Equal(t, content, got)
}

func TestBackend_PutBlob_DigestMismatch(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	wrongDigest := digest.FromBytes([]byte("other content"))
	err := b.PutBlob(ctx, "library/nginx", wrongDigest, 5, bytes.NewReader([]byte("hello")))
	require.Error(t, err)

	has, err := b.HasBlob(ctx, "library/nginx", wrongDigest)
	require.NoError(t, err)
	assert.False(t, has, "a failed verification must not leave a partial blob in place")
}

func TestBackend_FetchBlob_NotFound(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	err := b.FetchBlob(ctx, "library/nginx", digest.FromBytes([]byte("missing")), func([]byte) (bool, error) {
		return true, nil
	})
	assert.ErrorIs(t, err, errdefs.ErrNotFound)
}

func TestBackend_ManifestAndTagList(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	m := imgspecv1.Manifest{
		MediaType: imgspecv1.MediaTypeImageManifest,
		Config:    imgspecv1.Descriptor{MediaType: imgspecv1.MediaTypeImageConfig, Digest: digest.FromBytes([]byte("{}")), Size: 2},
	}
	m.SchemaVersion = 2
	raw, err := json.Marshal(m)
	require.NoError(t, err)

	fm := backend.FetchedManifest{Raw: raw}
	require.NoError(t, b.PutManifest(ctx, "library/nginx", fm, "latest"))
	require.NoError(t, b.PutManifest(ctx, "library/nginx", fm, "latest")) // idempotent tag append

	list, err := b.TagList(ctx, "library/nginx")
	require.NoError(t, err)
	assert.Equal(t, []string{"latest"}, list.Tags)

	fetched, err := b.FetchManifest(ctx, "library/nginx", "latest", "")
	require.NoError(t, err)
	assert.Equal(t, raw, fetched.Raw)
	assert.Equal(t, "registry.example.com", fetched.OriginDomain)
}

func TestBackend_Catalog(t *testing.T) {
	ctx := context.Background()
	b := newBackend(t)

	m := imgspecv1.Manifest{MediaType: imgspecv1.MediaTypeImageManifest}
	m.SchemaVersion = 2
	raw, err := json.Marshal(m)
	require.NoError(t, err)
	require.NoError(t, b.PutManifest(ctx, "library/nginx", backend.FetchedManifest{Raw: raw}, "latest"))

	names, err := b.Catalog(ctx)
	require.NoError(t, err)
	assert.Contains(t, names, "library/nginx")
}
