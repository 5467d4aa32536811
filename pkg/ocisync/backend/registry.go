package backend

import (
	"context"
	"errors"
	"io"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ruasync/ocisync/pkg/errdefs"
	"github.com/ruasync/ocisync/pkg/ocispec/cas"
	"github.com/ruasync/ocisync/pkg/ocispec/distribution"
	"github.com/ruasync/ocisync/pkg/ocispec/distribution/remote"
	"github.com/ruasync/ocisync/pkg/ocispec/iter"
	"github.com/ruasync/ocisync/pkg/ocispec/manifest"
	"github.com/ruasync/ocisync/pkg/util/xio"
)

var (
	_ Backend  = (*RegistryBackend)(nil)
	_ Mounter  = (*RegistryBackend)(nil)
	_ Referrer = (*RegistryBackend)(nil)
)

// NewRegistryBackend wraps a remote registry client, already bound to one
// host, as a Backend.
func NewRegistryBackend(registry *remote.Registry) *RegistryBackend {
	return &RegistryBackend{registry: registry}
}

// RegistryBackend adapts [remote.Registry] (the distribution-spec client for
// a single registry host) to the Backend interface the sync engine consumes.
type RegistryBackend struct {
	registry *remote.Registry
}

// Name returns the registry host this backend talks to.
func (b *RegistryBackend) Name() string {
	return b.registry.Name().Hostname()
}

// Ping verifies the registry speaks the v2 API.
func (b *RegistryBackend) Ping(ctx context.Context) error {
	_, err := b.registry.GetVersion(ctx)
	return err
}

// PingResource verifies the caller may access repo.
func (b *RegistryBackend) PingResource(ctx context.Context, repo string) error {
	_, err := b.registry.ListTags(repo).Next(ctx)
	if errors.Is(err, iter.ErrIteratorDone) {
		return nil
	}
	return err
}

// Catalog lists every repository the registry exposes. Registries that
// don't implement `/v2/_catalog` return an empty list, not an error.
func (b *RegistryBackend) Catalog(ctx context.Context) ([]string, error) {
	var names []string
	it := b.registry.ListRepositories()
	for {
		page, err := it.Next(ctx)
		if errors.Is(err, iter.ErrIteratorDone) {
			break
		}
		if err != nil {
			if errors.Is(err, errdefs.ErrUnsupported) || errors.Is(err, errdefs.ErrNotFound) {
				return nil, nil
			}
			return nil, err
		}
		names = append(names, page...)
	}
	return names, nil
}

// TagList lists the tags known for repo.
func (b *RegistryBackend) TagList(ctx context.Context, repo string) (TagList, error) {
	var tags []string
	it := b.registry.ListTags(repo)
	for {
		page, err := it.Next(ctx)
		if errors.Is(err, iter.ErrIteratorDone) {
			break
		}
		if err != nil {
			return TagList{}, err
		}
		tags = append(tags, page...)
	}
	return TagList{Name: repo, Tags: tags}, nil
}

// FetchManifest fetches the manifest identified by target. acceptType is
// advisory: the registry client already advertises every variant this repo
// understands and returns whichever one the server chose, matching
// spec.md's "the server may downgrade S2 to S1" behavior.
func (b *RegistryBackend) FetchManifest(ctx context.Context, repo string, target string, _ string) (FetchedManifest, error) {
	rc, err := b.registry.GetManifest(ctx, repo, target)
	if err != nil {
		return FetchedManifest{}, err
	}
	defer xio.CloseAndSkipError(rc)

	raw, err := io.ReadAll(rc)
	if err != nil {
		return FetchedManifest{}, err
	}
	desc := rc.Descriptor()
	parsed, _, err := manifest.Parse(desc.MediaType, raw)
	if err != nil {
		return FetchedManifest{}, err
	}
	return FetchedManifest{
		Manifest:        parsed,
		Descriptor:      desc,
		OriginDomain:    b.Name(),
		RequestedTarget: target,
		Raw:             raw,
	}, nil
}

// PutManifest uploads fm under target, sending its raw bytes verbatim when
// present so the destination's computed digest matches the source's.
func (b *RegistryBackend) PutManifest(ctx context.Context, repo string, fm FetchedManifest, target string) error {
	payload := fm.Raw
	if len(payload) == 0 {
		content, err := fm.Manifest.Payload()
		if err != nil {
			return err
		}
		payload = content
	}
	desc := fm.Descriptor
	if desc.MediaType == "" {
		desc.MediaType = fm.Manifest.MediaType()
	}
	reader := cas.NewReaderFromBytes(desc.MediaType, payload)
	return b.registry.PushManifest(ctx, repo, reader, target)
}

// HasBlob reports whether the blob already exists in repo.
func (b *RegistryBackend) HasBlob(ctx context.Context, repo string, dgst digest.Digest) (bool, error) {
	_, err := b.registry.StatBlob(ctx, repo, dgst)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, errdefs.ErrNotFound) {
		return false, nil
	}
	return false, err
}

// FetchBlob streams the blob content to sink in order.
func (b *RegistryBackend) FetchBlob(ctx context.Context, repo string, dgst digest.Digest, sink BlobSink) error {
	rc, err := b.registry.GetBlob(ctx, repo, dgst)
	if err != nil {
		return err
	}
	defer xio.CloseAndSkipError(rc)

	buf := make([]byte, 32*1024)
	for {
		n, readErr := rc.Read(buf)
		if n > 0 {
			keepGoing, sinkErr := sink(buf[:n])
			if sinkErr != nil {
				return sinkErr
			}
			if !keepGoing {
				return nil
			}
		}
		if readErr != nil {
			if readErr == io.EOF {
				return nil
			}
			return readErr
		}
	}
}

// PutBlob uploads a blob of the given size, read in full from r.
func (b *RegistryBackend) PutBlob(ctx context.Context, repo string, dgst digest.Digest, size int64, r io.Reader) error {
	desc := imgspecv1.Descriptor{
		MediaType: "application/octet-stream",
		Digest:    dgst,
		Size:      size,
	}
	return b.registry.PushBlob(ctx, repo, func(context.Context) (cas.ReadCloser, error) {
		return cas.NewReadCloser(io.NopCloser(r), desc), nil
	})
}

// MountBlob asks the registry to mount a blob already present in "from" into
// "repo". When the registry opens an upload session (202) instead, the blob
// is pulled from "from" and pushed to "repo" through that session.
func (b *RegistryBackend) MountBlob(ctx context.Context, repo string, from string, dgst digest.Digest) (bool, error) {
	return b.registry.MountBlob(ctx, repo, from, dgst)
}

// Referrers returns descriptors of manifests whose Subject is dgst.
func (b *RegistryBackend) Referrers(ctx context.Context, repo string, dgst digest.Digest, artifactType string) ([]imgspecv1.Descriptor, error) {
	return b.registry.ListReferrers(ctx, repo, dgst, artifactType)
}

var _ distribution.Spec = (*remote.Registry)(nil)
