package assembly

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

const (
	// ManifestFileName is the index file at the root of a cloud assembly.
	ManifestFileName = "manifest.json"

	// StackArtifactType marks artifacts that carry a CloudFormation template.
	StackArtifactType = "aws:cloudformation:stack"
)

// Manifest is the cloud assembly index. It names the artifacts the
// assembly contains and where their files live.
type Manifest struct {
	Version   string              `json:"version"`
	Artifacts map[string]Artifact `json:"artifacts"`

	// dir is the assembly directory the manifest was loaded from.
	dir string
}

// Artifact is a single entry in the manifest.
type Artifact struct {
	Type        string             `json:"type"`
	Environment string             `json:"environment,omitempty"`
	Properties  ArtifactProperties `json:"properties"`
}

// ArtifactProperties holds the artifact settings the renderer needs.
type ArtifactProperties struct {
	TemplateFile string `json:"templateFile"`
}

// StackArtifact is a resolved CloudFormation stack artifact.
type StackArtifact struct {
	// Name is the artifact ID from the manifest.
	Name string

	// TemplateFile is the absolute or assembly-relative path to the
	// template.
	TemplateFile string
}

// LoadManifest reads manifest.json from an assembly directory.
func LoadManifest(dir string) (*Manifest, error) {
	path := filepath.Join(dir, ManifestFileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading manifest: %w", err)
	}

	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	m.dir = dir
	return &m, nil
}

// StackArtifacts returns the CloudFormation stack artifacts in name order,
// with template paths resolved against the assembly directory. Artifacts
// of other types (assets, metadata trees) are ignored. A stack descriptor
// without a templateFile is returned with an empty TemplateFile so that
// callers can skip it without abandoning its siblings.
func (m *Manifest) StackArtifacts() []StackArtifact {
	var stacks []StackArtifact
	for name, artifact := range m.Artifacts {
		if artifact.Type != StackArtifactType {
			continue
		}
		stack := StackArtifact{Name: name}
		if artifact.Properties.TemplateFile != "" {
			stack.TemplateFile = filepath.Join(m.dir, artifact.Properties.TemplateFile)
		}
		stacks = append(stacks, stack)
	}

	sort.Slice(stacks, func(i, j int) bool { return stacks[i].Name < stacks[j].Name })
	return stacks
}
