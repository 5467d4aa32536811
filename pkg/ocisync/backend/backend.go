// Package backend defines the storage-endpoint abstraction shared by the
// registry client and directory implementations that the sync engine copies
// between.
package backend

import (
	"context"
	"io"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ruasync/ocisync/pkg/ocispec"
)

// TagList is the ordered set of tags known for a repository.
type TagList struct {
	// Name is the repository the tags belong to.
	Name string
	// Tags is the ordered sequence of tag names.
	Tags []string
}

// FetchedManifest envelopes a parsed manifest together with the metadata a
// backend observes at fetch time. Manifest implementations stay name-agnostic
// (reusable against any repository), so this envelope is what carries
// "where did this come from" to the caller instead of struct fields on the
// manifest types themselves.
type FetchedManifest struct {
	// Manifest is the parsed manifest or index.
	Manifest ocispec.Manifest
	// Descriptor describes the manifest itself (media type, size, digest).
	Descriptor imgspecv1.Descriptor
	// OriginDomain is the registry host (or directory root) that served
	// the manifest.
	OriginDomain string
	// RequestedTarget is the tag or digest string used in the request.
	RequestedTarget string
	// Raw holds the exact bytes received so a re-upload can send them
	// verbatim; digest stability depends on this.
	Raw []byte
}

// BlobSink receives blob bytes as they arrive. Returning keepGoing=false
// aborts the transfer; the backend surfaces that as a canceled fetch rather
// than an error.
type BlobSink func(chunk []byte) (keepGoing bool, err error)

// WriterSink adapts an io.Writer into a BlobSink.
func WriterSink(w io.Writer) BlobSink {
	return func(chunk []byte) (bool, error) {
		if _, err := w.Write(chunk); err != nil {
			return false, err
		}
		return true, nil
	}
}

// Backend is the capability set both a sync source and destination must
// satisfy. The sync engine depends only on this interface, never on a
// concrete backend, so registry and directory endpoints are interchangeable
// on either side of a copy.
type Backend interface {
	// Ping verifies the endpoint is reachable and speaks the expected protocol.
	Ping(ctx context.Context) error
	// Catalog returns repository names known to the backend. Optional: a
	// backend that cannot enumerate repositories returns an empty list.
	Catalog(ctx context.Context) ([]string, error)
	// TagList returns the tags known for repo.
	TagList(ctx context.Context, repo string) (TagList, error)
	// FetchManifest fetches the manifest addressed by target (a tag or
	// digest). acceptType advertises the caller's preferred media type;
	// the backend returns whichever variant it actually holds.
	FetchManifest(ctx context.Context, repo string, target string, acceptType string) (FetchedManifest, error)
	// PutManifest uploads fm under target, sending fm.Raw verbatim when set
	// so the destination computes the same digest.
	PutManifest(ctx context.Context, repo string, fm FetchedManifest, target string) error
	// HasBlob reports whether the blob is already present.
	HasBlob(ctx context.Context, repo string, dgst digest.Digest) (bool, error)
	// FetchBlob streams the blob content to sink in order.
	FetchBlob(ctx context.Context, repo string, dgst digest.Digest, sink BlobSink) error
	// PutBlob uploads a blob of the given size, read in full from r.
	PutBlob(ctx context.Context, repo string, dgst digest.Digest, size int64, r io.Reader) error
	// PingResource verifies the caller may access repo, triggering auth if needed.
	PingResource(ctx context.Context, repo string) error
}

// Mounter is an optional capability a Backend may implement when it can
// make a blob already hosted in one repository available in another
// without a pull/push round-trip (distribution-spec cross-repository
// mount). The sync engine uses this as an optimization, never as a
// correctness requirement.
type Mounter interface {
	// MountBlob makes the blob with dgst, already present in "from",
	// available in "repo". Returns false when the backend declined or
	// does not support mounting; callers fall back to pull-then-push.
	MountBlob(ctx context.Context, repo string, from string, dgst digest.Digest) (bool, error)
}

// Referrer is an optional capability exposing the OCI Referrers API. Not
// walked by the default sync path (spec.md's walk is tags → manifest list
// → image manifest only); reserved for a future opt-in flag.
type Referrer interface {
	// Referrers returns descriptors of manifests whose Subject is dgst,
	// optionally filtered by artifactType.
	Referrers(ctx context.Context, repo string, dgst digest.Digest, artifactType string) ([]imgspecv1.Descriptor, error)
}
