package manifest

import (
	"encoding/json"
	"fmt"
)

// AllowedManifestFields is a bit mask of "essential" manifest fields that
// ValidateUnambiguousManifestFormat can expect to be present.
type AllowedManifestFields int

const (
	// AllowedFieldConfig represents "config" field
	AllowedFieldConfig AllowedManifestFields = 1 << iota
	// AllowedFieldFSLayers represents "fsLayers" field
	AllowedFieldFSLayers
	// AllowedFieldHistory represents "history" field
	AllowedFieldHistory
	// AllowedFieldLayers represents "layers" field
	AllowedFieldLayers
	// AllowedFieldManifests represents "manifests" field
	AllowedFieldManifests

	allowedFieldFirstUnusedBit // Keep this at the end!
)

// ValidateUnambiguousManifestFormat rejects manifests (incl. multi-arch) that look
// like more than one kind we currently recognize, i.e. if they contain any of the
// known "essential" format fields other than the ones the caller specifically
// allows. expectMediaType is used only for diagnostics.
func ValidateUnambiguousManifestFormat(raw []byte, expectMediaType string, allowed AllowedManifestFields) error {
	if allowed >= allowedFieldFirstUnusedBit {
		return fmt.Errorf("internal error: invalid allowed manifest fields value %#v", allowed)
	}
	detectedFields := struct {
		Config    any `json:"config"`
		FSLayers  any `json:"fsLayers"`
		History   any `json:"history"`
		Layers    any `json:"layers"`
		Manifests any `json:"manifests"`
	}{}
	if err := json.Unmarshal(raw, &detectedFields); err != nil {
		return err
	}
	var unexpected []string
	if detectedFields.Config != nil && (allowed&AllowedFieldConfig) == 0 {
		unexpected = append(unexpected, "config")
	}
	if detectedFields.FSLayers != nil && (allowed&AllowedFieldFSLayers) == 0 {
		unexpected = append(unexpected, "fsLayers")
	}
	if detectedFields.History != nil && (allowed&AllowedFieldHistory) == 0 {
		unexpected = append(unexpected, "history")
	}
	if detectedFields.Layers != nil && (allowed&AllowedFieldLayers) == 0 {
		unexpected = append(unexpected, "layers")
	}
	if detectedFields.Manifests != nil && (allowed&AllowedFieldManifests) == 0 {
		unexpected = append(unexpected, "manifests")
	}
	if len(unexpected) != 0 {
		return fmt.Errorf("rejecting ambiguous manifest, unexpected fields %v in supposedly %s", unexpected, expectMediaType)
	}
	return nil
}
