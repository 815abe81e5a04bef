package fabric

import (
	"testing"
)

func TestCfnIncludeBuilderConfig(t *testing.T) {
	b := NewCfnIncludeBuilder("media-platform", "template.yaml").
		WithParameter("Environment", "production").
		WithParameters(map[string]string{"Region": "us-east-1"}).
		WithTag("Project", "media-platform").
		WithTags(map[string]string{"ManagedBy": "fabric-cdk"})

	c := b.config
	if c.StackName != "media-platform" || c.TemplateFile != "template.yaml" {
		t.Errorf("stack identity wrong: %q / %q", c.StackName, c.TemplateFile)
	}
	if !c.PreserveLogicalIds {
		t.Error("PreserveLogicalIds should default to true")
	}
	if c.Parameters["Environment"] != "production" || c.Parameters["Region"] != "us-east-1" {
		t.Errorf("Parameters = %v", c.Parameters)
	}
	if c.Tags["Project"] != "media-platform" || c.Tags["ManagedBy"] != "fabric-cdk" {
		t.Errorf("Tags = %v", c.Tags)
	}
}

func TestCfnIncludeBuilderDisablePreserve(t *testing.T) {
	b := NewCfnIncludeBuilder("s", "t.yaml").WithPreserveLogicalIds(false)
	if b.config.PreserveLogicalIds {
		t.Error("WithPreserveLogicalIds(false) not applied")
	}
}
