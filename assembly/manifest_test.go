package assembly

import (
	"os"
	"path/filepath"
	"testing"
)

func writeManifest(t *testing.T, dir, contents string) {
	t.Helper()
	if err := os.WriteFile(filepath.Join(dir, ManifestFileName), []byte(contents), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
		"version": "36.0.0",
		"artifacts": {
			"media-platform": {
				"type": "aws:cloudformation:stack",
				"environment": "aws://123456789012/us-east-1",
				"properties": {"templateFile": "media-platform.template.json"}
			}
		}
	}`)

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if m.Version != "36.0.0" {
		t.Errorf("Version = %q", m.Version)
	}
	if len(m.Artifacts) != 1 {
		t.Fatalf("got %d artifacts, want 1", len(m.Artifacts))
	}
}

func TestLoadManifestMissing(t *testing.T) {
	if _, err := LoadManifest(t.TempDir()); err == nil {
		t.Fatal("expected error for directory without manifest.json")
	}
}

func TestLoadManifestInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, "{broken")
	if _, err := LoadManifest(dir); err == nil {
		t.Fatal("expected error for invalid manifest")
	}
}

func TestStackArtifactsFiltersAndSorts(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
		"version": "36.0.0",
		"artifacts": {
			"zeta-stack": {
				"type": "aws:cloudformation:stack",
				"properties": {"templateFile": "zeta.template.json"}
			},
			"Tree": {
				"type": "cdk:tree",
				"properties": {"file": "tree.json"}
			},
			"alpha-stack": {
				"type": "aws:cloudformation:stack",
				"properties": {"templateFile": "alpha.template.json"}
			},
			"alpha-stack.assets": {
				"type": "cdk:asset-manifest",
				"properties": {"file": "alpha-stack.assets.json"}
			}
		}
	}`)

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	stacks := m.StackArtifacts()
	if len(stacks) != 2 {
		t.Fatalf("got %d stacks, want 2", len(stacks))
	}
	if stacks[0].Name != "alpha-stack" || stacks[1].Name != "zeta-stack" {
		t.Errorf("stacks not sorted by name: %q, %q", stacks[0].Name, stacks[1].Name)
	}
	want := filepath.Join(dir, "alpha.template.json")
	if stacks[0].TemplateFile != want {
		t.Errorf("TemplateFile = %q, want %q", stacks[0].TemplateFile, want)
	}
}

func TestStackArtifactsMissingTemplateFile(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{
		"version": "36.0.0",
		"artifacts": {
			"broken-stack": {
				"type": "aws:cloudformation:stack",
				"properties": {}
			},
			"good-stack": {
				"type": "aws:cloudformation:stack",
				"properties": {"templateFile": "good.template.json"}
			}
		}
	}`)

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}

	stacks := m.StackArtifacts()
	if len(stacks) != 2 {
		t.Fatalf("got %d stacks, want 2 (bad descriptor must not hide siblings)", len(stacks))
	}
	if stacks[0].Name != "broken-stack" || stacks[0].TemplateFile != "" {
		t.Errorf("broken descriptor = %+v, want empty TemplateFile", stacks[0])
	}
	if stacks[1].TemplateFile != filepath.Join(dir, "good.template.json") {
		t.Errorf("good descriptor = %+v", stacks[1])
	}
}

func TestStackArtifactsEmptyManifest(t *testing.T) {
	dir := t.TempDir()
	writeManifest(t, dir, `{"version": "36.0.0", "artifacts": {}}`)

	m, err := LoadManifest(dir)
	if err != nil {
		t.Fatal(err)
	}
	if stacks := m.StackArtifacts(); len(stacks) != 0 {
		t.Errorf("got %d stacks, want 0", len(stacks))
	}
}
