package fabric

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadStackConfigFromJSON(t *testing.T) {
	raw := `{
		"stackName": "media-platform",
		"buckets": [{"name": "assets"}],
		"queues": [{"name": "transcode"}],
		"cdn": {"originBucket": "assets"}
	}`

	c, err := LoadStackConfigFromJSON([]byte(raw))
	if err != nil {
		t.Fatalf("LoadStackConfigFromJSON: %v", err)
	}
	if c.StackName != "media-platform" {
		t.Errorf("StackName = %q", c.StackName)
	}
	if c.RemovalPolicy != "destroy" {
		t.Errorf("defaults not applied, RemovalPolicy = %q", c.RemovalPolicy)
	}
	if c.CDN.PriceClass != "100" {
		t.Errorf("defaults not applied, PriceClass = %q", c.CDN.PriceClass)
	}
}

func TestLoadStackConfigFromJSONInvalid(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"bad json", `{stackName: nope}`},
		{"fails validation", `{"stackName": "s", "cdn": {"originBucket": "missing"}}`},
		{"missing stack name", `{"buckets": [{"name": "assets"}]}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadStackConfigFromJSON([]byte(tt.raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestLoadStackConfigFromYAML(t *testing.T) {
	raw := `
stackName: media-platform
buckets:
  - name: assets
    versioned: true
queues:
  - name: transcode
    visibilityTimeoutSeconds: 300
topics:
  - name: ingest
    subscriptions: [transcode]
`

	c, err := LoadStackConfigFromYAML([]byte(raw))
	if err != nil {
		t.Fatalf("LoadStackConfigFromYAML: %v", err)
	}
	if len(c.Buckets) != 1 || !c.Buckets[0].Versioned {
		t.Errorf("Buckets = %+v", c.Buckets)
	}
	if c.Queues[0].VisibilityTimeoutSeconds != 300 {
		t.Errorf("VisibilityTimeoutSeconds = %d", c.Queues[0].VisibilityTimeoutSeconds)
	}
	if c.Queues[0].RetentionDays != 4 {
		t.Errorf("defaults not applied, RetentionDays = %d", c.Queues[0].RetentionDays)
	}
}

func TestLoadStackConfigFromFile(t *testing.T) {
	dir := t.TempDir()

	jsonPath := filepath.Join(dir, "stack.json")
	if err := os.WriteFile(jsonPath, []byte(`{"stackName": "from-json"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	yamlPath := filepath.Join(dir, "stack.yaml")
	if err := os.WriteFile(yamlPath, []byte("stackName: from-yaml\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	c, err := LoadStackConfigFromFile(jsonPath)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	if c.StackName != "from-json" {
		t.Errorf("StackName = %q", c.StackName)
	}

	c, err = LoadStackConfigFromFile(yamlPath)
	if err != nil {
		t.Fatalf("yaml: %v", err)
	}
	if c.StackName != "from-yaml" {
		t.Errorf("StackName = %q", c.StackName)
	}
}

func TestLoadStackConfigFromFileUnsupportedExtension(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.toml")
	if err := os.WriteFile(path, []byte(`stackName = "s"`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := LoadStackConfigFromFile(path)
	if err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Fatalf("err = %v", err)
	}
}

func TestLoadStackConfigFromFileMissing(t *testing.T) {
	if _, err := LoadStackConfigFromFile(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestConfigExamplesAreValid(t *testing.T) {
	if _, err := LoadStackConfigFromJSON([]byte(JSONConfigExample())); err != nil {
		t.Errorf("JSON example does not load: %v", err)
	}
	if _, err := LoadStackConfigFromYAML([]byte(YAMLConfigExample())); err != nil {
		t.Errorf("YAML example does not load: %v", err)
	}
}

func TestWriteExampleConfig(t *testing.T) {
	dir := t.TempDir()

	for _, name := range []string{"example.json", "example.yaml"} {
		path := filepath.Join(dir, name)
		if err := WriteExampleConfig(path); err != nil {
			t.Fatalf("WriteExampleConfig(%s): %v", name, err)
		}
		c, err := LoadStackConfigFromFile(path)
		if err != nil {
			t.Fatalf("reloading %s: %v", name, err)
		}
		if c.StackName != "media-platform" {
			t.Errorf("%s: StackName = %q", name, c.StackName)
		}
	}

	if err := WriteExampleConfig(filepath.Join(dir, "example.ini")); err == nil {
		t.Error("expected error for unsupported extension")
	}
}
