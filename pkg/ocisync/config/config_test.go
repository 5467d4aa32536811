package config_test

import (
	"context"
	"strings"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruasync/ocisync/pkg/errdefs"
	"github.com/ruasync/ocisync/pkg/ocisync/config"
	"github.com/ruasync/ocisync/pkg/ocisync/dirstore"
)

const validJob = `
source:
  registry: src.example.com
destination:
  directory: /mirror
repositories:
  - name: library/nginx
    tags: [latest, "1.27"]
  - name: library/redis
`

func TestDecode(t *testing.T) {
	cfg, err := config.Decode(strings.NewReader(validJob))
	require.NoError(t, err)
	assert.Equal(t, "src.example.com", cfg.Source.Registry)
	assert.Equal(t, "/mirror", cfg.Destination.Directory)
	require.Len(t, cfg.Repositories, 2)
	assert.Equal(t, []string{"latest", "1.27"}, cfg.Repositories[0].Tags)
}

func TestDecode_RejectsAmbiguousEndpoint(t *testing.T) {
	const bad = `
source:
  registry: src.example.com
  directory: /also-set
destination:
  directory: /mirror
repositories:
  - name: library/nginx
`
	_, err := config.Decode(strings.NewReader(bad))
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)
}

func TestDecode_RequiresAtLeastOneRepository(t *testing.T) {
	const bad = `
source:
  registry: src.example.com
destination:
  directory: /mirror
repositories: []
`
	_, err := config.Decode(strings.NewReader(bad))
	assert.ErrorIs(t, err, errdefs.ErrInvalidParameter)
}

func TestResolver_NewBackend_Directory(t *testing.T) {
	resolver := &config.Resolver{Fsys: afero.NewMemMapFs()}
	b, err := resolver.NewBackend(context.Background(), config.Endpoint{Directory: "/mirror"})
	require.NoError(t, err)
	_, ok := b.(*dirstore.Backend)
	assert.True(t, ok)
}
