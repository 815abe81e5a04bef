package dotgraph

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/fabrichq/fabric-aws-cdk/assembly"
)

const (
	wantHeader = "digraph Resources {\n  node [shape=box, fontname=\"Helvetica\"];\n"
	wantFooter = "}\n"
)

func TestRenderEmptyTemplate(t *testing.T) {
	got := Render(&assembly.Template{})
	if got != wantHeader+wantFooter {
		t.Fatalf("empty template: got %q, want header+footer only", got)
	}
}

func TestRenderHeaderAndFooter(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "A", Type: "AWS::S3::Bucket"},
	}}
	got := Render(tmpl)
	if !strings.HasPrefix(got, wantHeader) {
		t.Errorf("output does not start with header:\n%s", got)
	}
	if !strings.HasSuffix(got, wantFooter) {
		t.Errorf("output does not end with closing brace:\n%s", got)
	}
}

func TestRenderNodesAndEdges(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "A", Type: "X", DependsOn: []string{"B"}},
		{Name: "B", Type: "Y"},
	}}
	got := Render(tmpl)

	for _, want := range []string{
		`  "A" [label="X"];`,
		`  "B" [label="Y"];`,
		`  "A" -> "B";`,
	} {
		if !strings.Contains(got, want+"\n") {
			t.Errorf("output missing %q:\n%s", want, got)
		}
	}

	if n := strings.Count(got, "->"); n != 1 {
		t.Errorf("edge count = %d, want 1", n)
	}
}

func TestRenderSkipsMetadataResource(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "CDKMetadata", Type: assembly.MetadataResourceType},
		{Name: "Assets", Type: "AWS::S3::Bucket"},
	}}
	got := Render(tmpl)

	if strings.Contains(got, "CDKMetadata") {
		t.Errorf("metadata resource rendered:\n%s", got)
	}
	if n := strings.Count(got, "[label="); n != 1 {
		t.Errorf("node count = %d, want 1", n)
	}
}

func TestRenderCounts(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Key", Type: "AWS::KMS::Key"},
		{Name: "Bucket", Type: "AWS::S3::Bucket", DependsOn: []string{"Key"}},
		{Name: "Queue", Type: "AWS::SQS::Queue", DependsOn: []string{"Key", "DLQ"}},
		{Name: "Meta", Type: assembly.MetadataResourceType},
	}}
	got := Render(tmpl)

	if n := strings.Count(got, "[label="); n != 3 {
		t.Errorf("node count = %d, want 3 (4 resources minus 1 metadata)", n)
	}
	if n := strings.Count(got, "->"); n != 3 {
		t.Errorf("edge count = %d, want 3 (sum of DependsOn lengths)", n)
	}
}

func TestRenderPreservesTemplateOrder(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Zebra", Type: "T"},
		{Name: "Apple", Type: "T"},
		{Name: "Mango", Type: "T"},
	}}
	got := Render(tmpl)

	z := strings.Index(got, `"Zebra"`)
	a := strings.Index(got, `"Apple"`)
	m := strings.Index(got, `"Mango"`)
	if !(z < a && a < m) {
		t.Errorf("nodes not in template order (Zebra=%d Apple=%d Mango=%d):\n%s", z, a, m, got)
	}
}

func TestRenderDeterministic(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "A", Type: "X", Properties: []assembly.Property{{Key: "Name"}, {Key: "Tags"}}, DependsOn: []string{"B", "C"}},
		{Name: "B", Type: "Y"},
	}}
	first := Render(tmpl)
	for i := 0; i < 5; i++ {
		if got := Render(tmpl); got != first {
			t.Fatalf("render %d differs from first render", i)
		}
	}
}

func TestRenderLabelListsPropertyKeysOnly(t *testing.T) {
	secret := json.RawMessage(`"hunter2"`)
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{
			Name: "Bucket",
			Type: "AWS::S3::Bucket",
			Properties: []assembly.Property{
				{Key: "BucketName", Value: json.RawMessage(`"assets"`)},
				{Key: "AccessToken", Value: secret},
			},
		},
	}}
	got := Render(tmpl)

	want := `  "Bucket" [label="AWS::S3::Bucket\nBucketName\nAccessToken"];`
	if !strings.Contains(got, want+"\n") {
		t.Errorf("label missing or wrong, want %q in:\n%s", want, got)
	}
	if strings.Contains(got, "hunter2") || strings.Contains(got, "assets") {
		t.Errorf("property values leaked into output:\n%s", got)
	}
}

func TestRenderNoPropertiesLabelIsTypeOnly(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Topic", Type: "AWS::SNS::Topic"},
	}}
	got := Render(tmpl)
	if !strings.Contains(got, `"Topic" [label="AWS::SNS::Topic"];`) {
		t.Errorf("label should be type tag only:\n%s", got)
	}
}

func TestRenderDanglingEdgePreserved(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "A", Type: "X", DependsOn: []string{"Missing"}},
	}}
	got := Render(tmpl)
	if !strings.Contains(got, `  "A" -> "Missing";`) {
		t.Errorf("dangling edge not emitted verbatim:\n%s", got)
	}
}

func TestRenderAlwaysQuotesNames(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Plain", Type: "T", DependsOn: []string{"Other"}},
	}}
	got := Render(tmpl)
	if strings.Contains(got, "  Plain ") {
		t.Errorf("node name not quoted:\n%s", got)
	}
	if !strings.Contains(got, `"Plain" -> "Other";`) {
		t.Errorf("edge endpoints not quoted:\n%s", got)
	}
}

func TestRenderEdgesFollowNodes(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "A", Type: "X", DependsOn: []string{"B"}},
		{Name: "B", Type: "Y", DependsOn: []string{"A"}},
	}}
	got := Render(tmpl)

	lastNode := strings.LastIndex(got, "[label=")
	firstEdge := strings.Index(got, "->")
	if firstEdge < lastNode {
		t.Errorf("edge declared before last node declaration:\n%s", got)
	}
}
