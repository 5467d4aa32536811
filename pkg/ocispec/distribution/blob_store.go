package distribution

import (
	"context"
	"errors"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ruasync/ocisync/pkg/errdefs"
	"github.com/ruasync/ocisync/pkg/ocispec/cas"
)

// BlobStore is a storage interface for blobs resource.
type BlobStore interface {
	// Stat returns the descriptor for the given reference.
	Stat(ctx context.Context, reference string) (imgspecv1.Descriptor, error)
	// Exists returns true if the described content exists.
	Exists(ctx context.Context, target imgspecv1.Descriptor) (bool, error)
	// Fetch fetches the content identified by the descriptor.
	Fetch(ctx context.Context, target imgspecv1.Descriptor) (cas.ReadCloser, error)
	// FetchDigest fetches the content identified by the digest alone, without
	// requiring a full descriptor.
	FetchDigest(ctx context.Context, dgst digest.Digest) (cas.ReadCloser, error)
	// Push pushes the content got by the given getter. The getter may be called
	// more than once if the underlying transport needs to retry the upload.
	Push(ctx context.Context, getter cas.ReadCloserGetter) error
	// Delete removes the content identified by the descriptor.
	Delete(ctx context.Context, target imgspecv1.Descriptor) error
}

// NewBlobStore returns a [BlobStore] with the given distribution Spec
// and repository path formatted as "library/alpine".
func NewBlobStore(spec Spec, repo string) BlobStore {
	return &blobStore{spec: spec, repo: repo}
}

type blobStore struct {
	spec Spec
	repo string
}

// Stat returns the descriptor for the given reference.
func (s *blobStore) Stat(ctx context.Context, reference string) (imgspecv1.Descriptor, error) {
	var zero imgspecv1.Descriptor
	dgst, err := digest.Parse(reference)
	if err != nil {
		return zero, err
	}
	return s.spec.StatBlob(ctx, s.repo, dgst)
}

// Exists returns true if the described content exists.
func (s *blobStore) Exists(ctx context.Context, target imgspecv1.Descriptor) (bool, error) {
	_, err := s.Stat(ctx, target.Digest.String())
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errdefs.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// Fetch fetches the content identified by the descriptor.
func (s *blobStore) Fetch(ctx context.Context, target imgspecv1.Descriptor) (cas.ReadCloser, error) {
	return s.spec.GetBlob(ctx, s.repo, target.Digest)
}

// FetchDigest fetches the content identified by the digest alone.
func (s *blobStore) FetchDigest(ctx context.Context, dgst digest.Digest) (cas.ReadCloser, error) {
	return s.spec.GetBlob(ctx, s.repo, dgst)
}

// Push pushes the content got by the given getter.
func (s *blobStore) Push(ctx context.Context, getter cas.ReadCloserGetter) error {
	return s.spec.PushBlob(ctx, s.repo, getter)
}

// Delete removes the content identified by the descriptor.
func (s *blobStore) Delete(ctx context.Context, target imgspecv1.Descriptor) error {
	return s.spec.DeleteBlob(ctx, s.repo, target.Digest)
}
