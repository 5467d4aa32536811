// Package engine drives backend-to-backend synchronization: it walks tag
// lists, resolves manifest lists to per-platform image manifests, enumerates
// blobs, skips transfers the destination already has, and streams the rest
// with progress reporting. The engine depends only on the backend.Backend
// interface — it never knows whether either side is a registry or a
// directory.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/ruasync/ocisync/pkg/errdefs"
	"github.com/ruasync/ocisync/pkg/ocispec"
	"github.com/ruasync/ocisync/pkg/ocispec/manifest"
	"github.com/ruasync/ocisync/pkg/ocisync/backend"
	"github.com/ruasync/ocisync/pkg/ocisync/progress"
	"github.com/ruasync/ocisync/pkg/xlog"
)

// DefaultMaxConcurrency is the concurrency limit used when none is configured.
// The limit applies separately to each group the engine starts: the tags of a
// repository, the children of an index, and the blobs of an image.
const DefaultMaxConcurrency = 5

// Option configures an Engine.
type Option func(*Engine)

// WithMaxConcurrency sets the limit passed to
// [golang.org/x/sync/errgroup.Group.SetLimit] for each group the engine starts
// (a repository's tags, an index's children, an image's blobs). It is a limit
// per group, not a global bound on the transfers in flight.
func WithMaxConcurrency(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxConcurrency = n
		}
	}
}

// WithProgress sets the sink the engine reports activity to. Defaults to
// [progress.NopSink].
func WithProgress(sink progress.Sink) Option {
	return func(e *Engine) {
		e.progress = sink
	}
}

// New returns an Engine copying from source to destination.
func New(source, destination backend.Backend, opts ...Option) *Engine {
	e := &Engine{
		source:         source,
		destination:    destination,
		maxConcurrency: DefaultMaxConcurrency,
		progress:       progress.NopSink(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine synchronizes repositories from a source backend to a destination
// backend.
type Engine struct {
	source      backend.Backend
	destination backend.Backend

	maxConcurrency int
	progress       progress.Sink

	blobGroup singleflight.Group
}

// Ping verifies both backends are reachable. Unlike per-resource failures,
// an unreachable backend at startup is the one global-fatal path.
func (e *Engine) Ping(ctx context.Context) error {
	if err := e.source.Ping(ctx); err != nil {
		return fmt.Errorf("source backend unreachable: %w", err)
	}
	if err := e.destination.Ping(ctx); err != nil {
		return fmt.Errorf("destination backend unreachable: %w", err)
	}
	return nil
}

// ResourceFailure records a non-fatal failure for one (repo, tag) or blob
// while the engine continues with the rest of the work.
type ResourceFailure struct {
	Repo string
	Ref  string
	Err  error
}

func (f *ResourceFailure) Error() string {
	return fmt.Sprintf("%s/%s: %v", f.Repo, f.Ref, f.Err)
}

func (f *ResourceFailure) Unwrap() error { return f.Err }

// SyncRepo synchronizes repo from source to destination. If tags is empty,
// every tag reported by source.TagList is synced. Per-tag failures are
// collected and returned joined; the engine keeps working through the rest
// of the tag set.
func (e *Engine) SyncRepo(ctx context.Context, repo string, tags []string) error {
	if err := e.source.PingResource(ctx, repo); err != nil {
		return fmt.Errorf("source repo %q: %w", repo, err)
	}
	if len(tags) == 0 {
		list, err := e.source.TagList(ctx, repo)
		if err != nil {
			return fmt.Errorf("list tags for %q: %w", repo, err)
		}
		tags = list.Tags
	}

	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxConcurrency)

	var (
		mu       sync.Mutex
		failures []error
	)
	for _, tag := range tags {
		tag := tag
		group.Go(func() error {
			if err := e.syncTag(gctx, repo, tag); err != nil {
				xlog.WarnContext(gctx, "sync tag failed", "repo", repo, "tag", tag, "error", err)
				mu.Lock()
				failures = append(failures, &ResourceFailure{Repo: repo, Ref: tag, Err: err})
				mu.Unlock()
				return nil // per-resource failure, not fatal to the group
			}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}
	return errors.Join(failures...)
}

// syncTag fetches the manifest addressed by tag and routes it to the
// manifest-list or single-image path, then uploads the tag last so the
// destination never holds a manifest referencing missing content
// (write-after-ready).
func (e *Engine) syncTag(ctx context.Context, repo string, tag string) error {
	handle := e.progress.Register(fmt.Sprintf("%s:%s", repo, tag), 0)

	fm, err := e.source.FetchManifest(ctx, repo, tag, ocispec.MediaTypeImageIndex)
	if err != nil {
		e.progress.Fail(handle, err)
		return err
	}

	switch mf := fm.Manifest.(type) {
	case ocispec.IndexManifest:
		if err := e.syncIndex(ctx, repo, fm, mf); err != nil {
			e.progress.Fail(handle, err)
			return err
		}
	case manifest.ImageManifest:
		if err := e.syncImage(ctx, repo, fm, mf); err != nil {
			e.progress.Fail(handle, err)
			return err
		}
	default:
		err := errdefs.Newf(errdefs.ErrSystem, "unsupported manifest type %T for %s/%s", fm.Manifest, repo, tag)
		e.progress.Fail(handle, err)
		return err
	}

	if err := e.destination.PutManifest(ctx, repo, fm, tag); err != nil {
		e.progress.Fail(handle, err)
		return err
	}
	e.progress.Complete(handle)
	return nil
}

// syncIndex fetches and syncs every child image manifest, then uploads each
// child manifest under its own digest before the caller uploads the index.
func (e *Engine) syncIndex(ctx context.Context, repo string, indexFM backend.FetchedManifest, index ocispec.IndexManifest) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxConcurrency)

	for _, child := range index.Manifests() {
		child := child
		group.Go(func() error {
			return e.syncChildManifest(gctx, repo, child)
		})
	}
	return group.Wait()
}

func (e *Engine) syncChildManifest(ctx context.Context, repo string, desc imgspecv1.Descriptor) error {
	childFM, err := e.source.FetchManifest(ctx, repo, desc.Digest.String(), desc.MediaType)
	if err != nil {
		return fmt.Errorf("fetch child manifest %s: %w", desc.Digest, err)
	}
	imf, ok := childFM.Manifest.(manifest.ImageManifest)
	if !ok {
		return errdefs.Newf(errdefs.ErrSystem, "manifest list child %s is not an image manifest (%T)", desc.Digest, childFM.Manifest)
	}
	if err := e.syncImage(ctx, repo, childFM, imf); err != nil {
		return err
	}
	return e.destination.PutManifest(ctx, repo, childFM, desc.Digest.String())
}

// syncImage enumerates the blob set referenced by m (config plus layers)
// and copies every blob the destination doesn't already have.
func (e *Engine) syncImage(ctx context.Context, repo string, fm backend.FetchedManifest, m manifest.ImageManifest) error {
	group, gctx := errgroup.WithContext(ctx)
	group.SetLimit(e.maxConcurrency)

	blobs := []imgspecv1.Descriptor{m.Config()}
	for _, layer := range manifest.NonEmptyLayers(m.Layers()...) {
		blobs = append(blobs, layer.Descriptor)
	}

	for _, desc := range blobs {
		desc := desc
		group.Go(func() error {
			return e.syncBlob(gctx, repo, desc)
		})
	}
	return group.Wait()
}

// syncBlob copies a single blob if the destination doesn't already have it.
// Concurrent requests for the same (repo, digest) are coalesced so only one
// transfer occurs.
func (e *Engine) syncBlob(ctx context.Context, repo string, desc imgspecv1.Descriptor) error {
	key := repo + "@" + desc.Digest.String()
	_, err, _ := e.blobGroup.Do(key, func() (any, error) {
		return nil, e.copyBlob(ctx, repo, desc)
	})
	return err
}

func (e *Engine) copyBlob(ctx context.Context, repo string, desc imgspecv1.Descriptor) error {
	has, err := e.destination.HasBlob(ctx, repo, desc.Digest)
	if err != nil {
		return fmt.Errorf("check destination blob %s: %w", desc.Digest, err)
	}
	if has {
		return nil
	}

	if mounted, err := e.tryMount(ctx, repo, desc.Digest); err != nil {
		xlog.WarnContext(ctx, "blob mount failed, falling back to pull/push", "digest", desc.Digest, "error", err)
	} else if mounted {
		return nil
	}

	handle := e.progress.Register(fmt.Sprintf("%s@%s", repo, desc.Digest), desc.Size)

	pr, pw := io.Pipe()
	group, gctx := errgroup.WithContext(ctx)
	group.Go(func() error {
		sink := func(chunk []byte) (bool, error) {
			n, err := pw.Write(chunk)
			if err != nil {
				return false, err
			}
			e.progress.Tick(handle, int64(n))
			return true, nil
		}
		err := e.source.FetchBlob(gctx, repo, desc.Digest, sink)
		closeErr := pw.CloseWithError(err)
		if err != nil {
			return err
		}
		return closeErr
	})
	group.Go(func() error {
		return e.destination.PutBlob(gctx, repo, desc.Digest, desc.Size, pr)
	})

	if err := group.Wait(); err != nil {
		e.progress.Fail(handle, err)
		return errdefs.Newf(errdefs.ErrDataLoss, "copy blob %s: %w", desc.Digest, err)
	}
	e.progress.Complete(handle)
	return nil
}

// tryMount asks the destination, when it implements [backend.Mounter], to
// mount dgst into repo from the repository of the same name on the
// destination. The source backend is not consulted. It is never required for
// correctness: a false/err result simply falls back to pull-then-push.
func (e *Engine) tryMount(ctx context.Context, repo string, dgst digest.Digest) (bool, error) {
	mounter, ok := e.destination.(backend.Mounter)
	if !ok {
		return false, nil
	}
	return mounter.MountBlob(ctx, repo, repo, dgst)
}
