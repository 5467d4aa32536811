// Package dirstore implements the directory backend: a writable,
// content-addressed on-disk layout that mirrors the registry backend's
// interface so the sync engine can copy to or from a local filesystem tree.
//
// It is built on the same digest-verifying primitives the registry client
// uses (pkg/ocispec/cas), laid out as a writable, per-repository directory
// tree:
//
//	<root>/<host>/<repo>/blobs/<algo>/<hex-prefix-2>/<hex>
//	<root>/<host>/<repo>/manifests/<tag-or-digest>.json
//	<root>/<host>/<repo>/tags/list.json
package dirstore

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"os"
	"path"
	"sort"

	"github.com/opencontainers/go-digest"
	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/samber/lo"
	"github.com/spf13/afero"

	"github.com/ruasync/ocisync/pkg/errdefs"
	"github.com/ruasync/ocisync/pkg/ocispec/cas"
	"github.com/ruasync/ocisync/pkg/ocispec/manifest"
	"github.com/ruasync/ocisync/pkg/ocisync/backend"
)

var _ backend.Backend = (*Backend)(nil)

// NewBackend returns a directory-backed Backend rooted at root/host, using
// fsys for all filesystem operations. Pass afero.NewOsFs() for a real
// directory tree or afero.NewMemMapFs() for an in-memory one in tests.
func NewBackend(fsys afero.Fs, root string, host string) *Backend {
	return &Backend{
		fsys: afero.Afero{Fs: fsys},
		root: path.Join(root, host),
		host: host,
	}
}

// Backend is a filesystem-backed implementation of [backend.Backend].
type Backend struct {
	fsys afero.Afero
	root string
	host string
}

// Ping verifies the root directory exists and is writable.
func (b *Backend) Ping(ctx context.Context) error {
	if err := b.fsys.MkdirAll(b.root, 0o755); err != nil {
		return errdefs.Newf(errdefs.ErrUnavailable, "dirstore root %q: %w", b.root, err)
	}
	return nil
}

// PingResource verifies the repository directory is reachable.
func (b *Backend) PingResource(ctx context.Context, repo string) error {
	return b.fsys.MkdirAll(b.repoDir(repo), 0o755)
}

// Catalog lists every repository directory under the root.
func (b *Backend) Catalog(ctx context.Context) ([]string, error) {
	var names []string
	err := afero.Walk(b.fsys, b.root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return err
		}
		if info.IsDir() && p != b.root {
			if _, statErr := b.fsys.Stat(path.Join(p, "tags")); statErr == nil {
				rel, relErr := relPath(b.root, p)
				if relErr == nil {
					names = append(names, rel)
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// TagList reads the tag list recorded for repo.
func (b *Backend) TagList(ctx context.Context, repo string) (backend.TagList, error) {
	data, err := b.fsys.ReadFile(b.tagsFile(repo))
	if errors.Is(err, os.ErrNotExist) {
		return backend.TagList{Name: repo}, nil
	}
	if err != nil {
		return backend.TagList{}, err
	}
	var tags []string
	if err := json.Unmarshal(data, &tags); err != nil {
		return backend.TagList{}, err
	}
	return backend.TagList{Name: repo, Tags: tags}, nil
}

// FetchManifest reads the manifest recorded under target (a tag or digest).
func (b *Backend) FetchManifest(ctx context.Context, repo string, target string, _ string) (backend.FetchedManifest, error) {
	raw, err := b.fsys.ReadFile(b.manifestFile(repo, target))
	if errors.Is(err, os.ErrNotExist) {
		return backend.FetchedManifest{}, errdefs.Newf(errdefs.ErrNotFound, "manifest %s/%s", repo, target)
	}
	if err != nil {
		return backend.FetchedManifest{}, err
	}
	parsed, desc, err := manifest.ParseBytes(raw)
	if err != nil {
		return backend.FetchedManifest{}, err
	}
	return backend.FetchedManifest{
		Manifest:        parsed,
		Descriptor:      desc,
		OriginDomain:    b.host,
		RequestedTarget: target,
		Raw:             raw,
	}, nil
}

// PutManifest writes fm's raw bytes verbatim under target, and records
// target in the tag list when it is not itself a digest.
func (b *Backend) PutManifest(ctx context.Context, repo string, fm backend.FetchedManifest, target string) error {
	payload := fm.Raw
	if len(payload) == 0 {
		content, err := fm.Manifest.Payload()
		if err != nil {
			return err
		}
		payload = content
	}
	if err := b.fsys.MkdirAll(path.Dir(b.manifestFile(repo, target)), 0o755); err != nil {
		return err
	}
	if err := b.fsys.WriteFile(b.manifestFile(repo, target), payload, 0o644); err != nil {
		return err
	}
	if _, err := digest.Parse(target); err == nil {
		return nil // digest-addressed put, not a tag
	}
	return b.appendTag(repo, target)
}

func (b *Backend) appendTag(repo string, tag string) error {
	list, err := b.TagList(context.Background(), repo)
	if err != nil {
		return err
	}
	if lo.Contains(list.Tags, tag) {
		return nil
	}
	list.Tags = append(list.Tags, tag)
	data, err := json.Marshal(list.Tags)
	if err != nil {
		return err
	}
	if err := b.fsys.MkdirAll(path.Dir(b.tagsFile(repo)), 0o755); err != nil {
		return err
	}
	return b.fsys.WriteFile(b.tagsFile(repo), data, 0o644)
}

// HasBlob stats the blob file for dgst.
func (b *Backend) HasBlob(ctx context.Context, repo string, dgst digest.Digest) (bool, error) {
	_, err := b.fsys.Stat(b.blobFile(repo, dgst))
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// FetchBlob streams the blob file to sink.
func (b *Backend) FetchBlob(ctx context.Context, repo string, dgst digest.Digest, sink backend.BlobSink) error {
	f, err := b.fsys.Open(b.blobFile(repo, dgst))
	if errors.Is(err, os.ErrNotExist) {
		return errdefs.Newf(errdefs.ErrNotFound, "blob %s/%s", repo, dgst)
	}
	if err != nil {
		return err
	}
	defer f.Close() //nolint:errcheck // best effort close on read path

	buf := make([]byte, 32*1024)
	for {
		n, readErr := f.Read(buf)
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

// PutBlob writes the blob to a temp file and atomically renames it into
// place once the digest verifies.
func (b *Backend) PutBlob(ctx context.Context, repo string, dgst digest.Digest, size int64, r io.Reader) error {
	dest := b.blobFile(repo, dgst)
	if err := b.fsys.MkdirAll(path.Dir(dest), 0o755); err != nil {
		return err
	}
	tmp := dest + ".tmp"
	f, err := b.fsys.Create(tmp)
	if err != nil {
		return err
	}

	desc := imgspecv1.Descriptor{Digest: dgst, Size: size}
	verifying := cas.NewReader(r, desc)
	if _, err := io.Copy(f, verifying); err != nil {
		f.Close() //nolint:errcheck // best effort close on failure path
		_ = b.fsys.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		_ = b.fsys.Remove(tmp)
		return err
	}
	return b.fsys.Rename(tmp, dest)
}

func (b *Backend) repoDir(repo string) string {
	return path.Join(b.root, repo)
}

func (b *Backend) manifestFile(repo string, target string) string {
	return path.Join(b.repoDir(repo), "manifests", target+".json")
}

func (b *Backend) tagsFile(repo string) string {
	return path.Join(b.repoDir(repo), "tags", "list.json")
}

func (b *Backend) blobFile(repo string, dgst digest.Digest) string {
	hex := dgst.Encoded()
	prefix := hex
	if len(hex) >= 2 {
		prefix = hex[:2]
	}
	return path.Join(b.repoDir(repo), "blobs", dgst.Algorithm().String(), prefix, hex)
}

func relPath(root, target string) (string, error) {
	if len(target) <= len(root) {
		return "", errdefs.ErrInvalidParameter
	}
	return target[len(root)+1:], nil
}
