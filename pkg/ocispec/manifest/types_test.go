package manifest_test

import (
	"testing"

	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"

	"github.com/ruasync/ocisync/pkg/ocispec/manifest"
)

// fakeImageManifest is a minimal manifest.ImageManifest fixture for
// exercising functions that only read Config/Layers.
type fakeImageManifest struct {
	layers []manifest.LayerDescriptor
}

func (m *fakeImageManifest) MediaType() string                  { return imgspecv1.MediaTypeImageManifest }
func (m *fakeImageManifest) References() []imgspecv1.Descriptor { return nil }
func (m *fakeImageManifest) Payload() ([]byte, error)            { return nil, nil }
func (m *fakeImageManifest) Config() imgspecv1.Descriptor        { return imgspecv1.Descriptor{} }
func (m *fakeImageManifest) Layers() []manifest.LayerDescriptor  { return m.layers }

func TestNonEmptyLayers(t *testing.T) {
	descriptors := []manifest.LayerDescriptor{
		{Empty: false},
		{Empty: true},
		{Empty: false},
	}
	want := []manifest.LayerDescriptor{
		{Empty: false},
		{Empty: false},
	}
	got := manifest.NonEmptyLayers(descriptors...)
	assert.ElementsMatch(t, want, got)
}

func TestImageSize(t *testing.T) {
	mockManifest := &fakeImageManifest{layers: []manifest.LayerDescriptor{
		{Descriptor: imgspecv1.Descriptor{Size: 100}},
		{Descriptor: imgspecv1.Descriptor{Size: 200}},
		{Descriptor: imgspecv1.Descriptor{}, Empty: true},
		{Descriptor: imgspecv1.Descriptor{Size: -1}},
	}}

	got := manifest.ImageSize(mockManifest)
	want := int64(300)
	assert.Equal(t, want, got)
}
