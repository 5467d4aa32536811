package remote

import (
	"context"

	"github.com/ruasync/ocisync/pkg/ocispec/distribution"
	ocispecname "github.com/ruasync/ocisync/pkg/ocispec/name"
)

// NewRepository creates a client for the remote repository. The name should
// contain the registry address if the target repository is not deployed at
// DockerHub.
func NewRepository(ctx context.Context, name ocispecname.Repository, opts ...Option) (*Repository, error) {
	options := MakeOptions(opts...)
	return options.Client.NewRepository(ctx, name)
}

// Repository provides access to a single repository on a remote registry.
type Repository struct {
	*Registry
	name ocispecname.Repository
}

// Named returns the name of the repository.
func (repo *Repository) Named() ocispecname.Repository {
	return repo.name
}

// Manifests returns a reference to this repository's manifest storage.
func (repo *Repository) Manifests() distribution.ManifestStore {
	return distribution.NewManifestStore(repo.Registry, repo.name.Path())
}

// Tags returns a reference to this repository's tag storage.
func (repo *Repository) Tags() distribution.TagStore {
	return distribution.NewTagStore(repo.Registry, repo.name.Path())
}

// Blobs returns a reference to this repository's blob storage.
func (repo *Repository) Blobs() distribution.BlobStore {
	return distribution.NewBlobStore(repo.Registry, repo.name.Path())
}
