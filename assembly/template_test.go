package assembly

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestTemplateUnmarshalPreservesResourceOrder(t *testing.T) {
	raw := `{
		"Resources": {
			"Zebra": {"Type": "AWS::SNS::Topic"},
			"Apple": {"Type": "AWS::SQS::Queue"},
			"Mango": {"Type": "AWS::S3::Bucket"}
		}
	}`

	var tmpl Template
	if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []string{"Zebra", "Apple", "Mango"}
	if len(tmpl.Resources) != len(want) {
		t.Fatalf("got %d resources, want %d", len(tmpl.Resources), len(want))
	}
	for i, name := range want {
		if tmpl.Resources[i].Name != name {
			t.Errorf("resource[%d] = %q, want %q", i, tmpl.Resources[i].Name, name)
		}
	}
}

func TestTemplateUnmarshalPreservesPropertyOrder(t *testing.T) {
	raw := `{
		"Resources": {
			"Bucket": {
				"Type": "AWS::S3::Bucket",
				"Properties": {
					"VersioningConfiguration": {"Status": "Enabled"},
					"BucketName": "assets",
					"AccessControl": "Private"
				}
			}
		}
	}`

	var tmpl Template
	if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}

	want := []string{"VersioningConfiguration", "BucketName", "AccessControl"}
	props := tmpl.Resources[0].Properties
	if len(props) != len(want) {
		t.Fatalf("got %d properties, want %d", len(props), len(want))
	}
	for i, key := range want {
		if props[i].Key != key {
			t.Errorf("property[%d] = %q, want %q", i, props[i].Key, key)
		}
	}
}

func TestTemplateUnmarshalDependsOnForms(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []string
	}{
		{
			name: "single string",
			raw:  `{"Resources": {"A": {"Type": "T", "DependsOn": "B"}}}`,
			want: []string{"B"},
		},
		{
			name: "array",
			raw:  `{"Resources": {"A": {"Type": "T", "DependsOn": ["B", "C"]}}}`,
			want: []string{"B", "C"},
		},
		{
			name: "absent",
			raw:  `{"Resources": {"A": {"Type": "T"}}}`,
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var tmpl Template
			if err := json.Unmarshal([]byte(tt.raw), &tmpl); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			got := tmpl.Resources[0].DependsOn
			if len(got) != len(tt.want) {
				t.Fatalf("got %v, want %v", got, tt.want)
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("DependsOn[%d] = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestTemplateUnmarshalMissingType(t *testing.T) {
	raw := `{"Resources": {"Broken": {"Properties": {"Name": "x"}}}}`

	var tmpl Template
	err := json.Unmarshal([]byte(raw), &tmpl)
	if err == nil {
		t.Fatal("expected error for resource without Type")
	}
	if !strings.Contains(err.Error(), "Broken") {
		t.Errorf("error does not name the resource: %v", err)
	}
}

func TestTemplateUnmarshalSkipsOtherSections(t *testing.T) {
	raw := `{
		"AWSTemplateFormatVersion": "2010-09-09",
		"Description": "media platform",
		"Parameters": {"Env": {"Type": "String"}},
		"Resources": {"Bucket": {"Type": "AWS::S3::Bucket"}},
		"Outputs": {"BucketName": {"Value": {"Ref": "Bucket"}}}
	}`

	var tmpl Template
	if err := json.Unmarshal([]byte(raw), &tmpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if tmpl.Description != "media platform" {
		t.Errorf("Description = %q", tmpl.Description)
	}
	if len(tmpl.Resources) != 1 || tmpl.Resources[0].Name != "Bucket" {
		t.Errorf("Resources = %+v", tmpl.Resources)
	}
}

func TestTemplateUnmarshalEmptyResources(t *testing.T) {
	var tmpl Template
	if err := json.Unmarshal([]byte(`{"Resources": {}}`), &tmpl); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(tmpl.Resources) != 0 {
		t.Errorf("got %d resources, want 0", len(tmpl.Resources))
	}
}

func TestLoadTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "stack.template.json")
	raw := `{"Resources": {"Queue": {"Type": "AWS::SQS::Queue", "DependsOn": "Key"}, "Key": {"Type": "AWS::KMS::Key"}}}`
	if err := os.WriteFile(path, []byte(raw), 0o644); err != nil {
		t.Fatal(err)
	}

	tmpl, err := LoadTemplate(path)
	if err != nil {
		t.Fatalf("LoadTemplate: %v", err)
	}
	if len(tmpl.Resources) != 2 {
		t.Fatalf("got %d resources, want 2", len(tmpl.Resources))
	}
	if tmpl.Resources[0].Name != "Queue" || tmpl.Resources[1].Name != "Key" {
		t.Errorf("order not preserved: %q, %q", tmpl.Resources[0].Name, tmpl.Resources[1].Name)
	}
}

func TestLoadTemplateMissingFile(t *testing.T) {
	if _, err := LoadTemplate(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestLoadTemplateInvalidJSON(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadTemplate(path); err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}
