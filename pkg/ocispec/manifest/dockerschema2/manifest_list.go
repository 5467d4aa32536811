package dockerschema2

import (
	"encoding/json"

	imgspecv1 "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/ruasync/ocisync/pkg/ocispec"
	"github.com/ruasync/ocisync/pkg/ocispec/manifest"
)

var (
	_ ocispec.IndexManifest = (*DeserializedManifestList)(nil)
)

// ManifestList references manifests for various platforms.
type ManifestList struct {
	manifest.Versioned

	// Manifests references a list of manifests
	Manifests []ManifestDescriptor `json:"manifests"`
}

// MediaType returns the media type of current manifest object.
func (m ManifestList) MediaType() string {
	return m.Versioned.MediaType
}

// References returns the distribution descriptors for the referenced image
// manifests.
func (m ManifestList) References() []imgspecv1.Descriptor {
	dependencies := make([]imgspecv1.Descriptor, len(m.Manifests))
	for i := range m.Manifests {
		dependencies[i] = m.Manifests[i].Descriptor
		dependencies[i].Platform = &imgspecv1.Platform{
			Architecture: m.Manifests[i].Platform.Architecture,
			OS:           m.Manifests[i].Platform.OS,
			OSVersion:    m.Manifests[i].Platform.OSVersion,
			OSFeatures:   m.Manifests[i].Platform.OSFeatures,
			Variant:      m.Manifests[i].Platform.Variant,
		}
	}
	return dependencies
}

// DeserializedManifestList wraps ManifestList with a copy of the original JSON.
type DeserializedManifestList struct {
	ManifestList

	// canonical is the canonical byte representation of the Manifest.
	canonical []byte
}

// Manifests returns a list of all child manifest descriptors.
func (m DeserializedManifestList) Manifests() []imgspecv1.Descriptor {
	return m.References()
}

// UnmarshalJSON populates a new ManifestList struct from JSON data.
func (m *DeserializedManifestList) UnmarshalJSON(b []byte) error {
	m.canonical = make([]byte, len(b))
	copy(m.canonical, b)

	var shallow ManifestList
	if err := json.Unmarshal(m.canonical, &shallow); err != nil {
		return err
	}
	m.ManifestList = shallow
	return nil
}

// MarshalJSON returns the contents of canonical. If canonical is empty,
// marshals the inner contents.
func (m *DeserializedManifestList) MarshalJSON() ([]byte, error) {
	if len(m.canonical) > 0 {
		return m.canonical, nil
	}
	return nil, manifest.NewErrNotInitialized("canonical payload is empty")
}

// Payload returns the raw content of the manifest list. The contents can be
// used to calculate the content identifier.
func (m DeserializedManifestList) Payload() ([]byte, error) {
	return m.canonical, nil
}

// ManifestDescriptor references a platform-specific manifest.
type ManifestDescriptor struct {
	imgspecv1.Descriptor

	// Platform specifies which platform the manifest pointed to by the
	// descriptor runs on.
	Platform PlatformSpec `json:"platform"`
}

// PlatformSpec specifies a platform where a particular image manifest is
// applicable. Adds a Features field compared to imgspecv1.Platform.
type PlatformSpec struct {
	Architecture string   `json:"architecture"`
	OS           string   `json:"os"`
	OSVersion    string   `json:"os.version,omitempty"`
	OSFeatures   []string `json:"os.features,omitempty"`
	Variant      string   `json:"variant,omitempty"`
	Features     []string `json:"features,omitempty"`
}
