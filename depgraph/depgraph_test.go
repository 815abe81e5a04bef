package depgraph

import (
	"testing"

	"github.com/fabrichq/fabric-aws-cdk/assembly"
)

func TestAnalyzeOrderRespectsDependencies(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Bucket", Type: "AWS::S3::Bucket", DependsOn: []string{"Key"}},
		{Name: "Distribution", Type: "AWS::CloudFront::Distribution", DependsOn: []string{"Bucket"}},
		{Name: "Key", Type: "AWS::KMS::Key"},
	}}

	a, err := Analyze(tmpl)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	pos := make(map[string]int, len(a.Order))
	for i, name := range a.Order {
		pos[name] = i
	}
	if pos["Key"] > pos["Bucket"] {
		t.Errorf("Key at %d after Bucket at %d", pos["Key"], pos["Bucket"])
	}
	if pos["Bucket"] > pos["Distribution"] {
		t.Errorf("Bucket at %d after Distribution at %d", pos["Bucket"], pos["Distribution"])
	}
	if len(a.Order) != 3 {
		t.Errorf("order has %d entries, want 3", len(a.Order))
	}
}

func TestAnalyzeOrderStable(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Charlie", Type: "T"},
		{Name: "Alpha", Type: "T"},
		{Name: "Bravo", Type: "T"},
	}}

	a, err := Analyze(tmpl)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	want := []string{"Alpha", "Bravo", "Charlie"}
	for i, name := range want {
		if a.Order[i] != name {
			t.Fatalf("Order = %v, want %v", a.Order, want)
		}
	}

	for i := 0; i < 5; i++ {
		again, err := Analyze(tmpl)
		if err != nil {
			t.Fatal(err)
		}
		for j := range a.Order {
			if again.Order[j] != a.Order[j] {
				t.Fatalf("run %d: order changed: %v vs %v", i, again.Order, a.Order)
			}
		}
	}
}

func TestAnalyzeDangling(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Queue", Type: "AWS::SQS::Queue", DependsOn: []string{"DeletedKey", "Topic"}},
		{Name: "Topic", Type: "AWS::SNS::Topic"},
	}}

	a, err := Analyze(tmpl)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if len(a.Dangling) != 1 {
		t.Fatalf("got %d dangling references, want 1: %+v", len(a.Dangling), a.Dangling)
	}
	ref := a.Dangling[0]
	if ref.Resource != "Queue" || ref.Target != "DeletedKey" {
		t.Errorf("dangling = %+v, want Queue -> DeletedKey", ref)
	}

	if len(a.Order) != 2 {
		t.Errorf("order has %d entries, want 2", len(a.Order))
	}
}

func TestAnalyzeCycle(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "A", Type: "T", DependsOn: []string{"B"}},
		{Name: "B", Type: "T", DependsOn: []string{"A"}},
	}}

	if _, err := Analyze(tmpl); err == nil {
		t.Fatal("expected error for dependency cycle")
	}
}

func TestAnalyzeDuplicateEdges(t *testing.T) {
	tmpl := &assembly.Template{Resources: []assembly.Resource{
		{Name: "Bucket", Type: "T", DependsOn: []string{"Key", "Key"}},
		{Name: "Key", Type: "T"},
	}}

	a, err := Analyze(tmpl)
	if err != nil {
		t.Fatalf("duplicate DependsOn entries should not fail: %v", err)
	}
	if len(a.Order) != 2 {
		t.Errorf("order has %d entries, want 2", len(a.Order))
	}
}

func TestAnalyzeEmptyTemplate(t *testing.T) {
	a, err := Analyze(&assembly.Template{})
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if len(a.Order) != 0 || len(a.Dangling) != 0 {
		t.Errorf("expected empty analysis, got %+v", a)
	}
}
