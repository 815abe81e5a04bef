package fabric

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/cloudformationinclude"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// CfnIncludeStack deploys a hand-written CloudFormation template through
// the CDK toolchain. Every resource in the template becomes a first-class
// construct on the stack, so platform pieces built with FabricStack can
// sit alongside it and reference its resources.
type CfnIncludeStack struct {
	awscdk.Stack

	// Template gives access to the included template's resources.
	Template cloudformationinclude.CfnInclude
}

// CfnIncludeConfig describes the template to include.
type CfnIncludeConfig struct {
	// StackName is the CloudFormation stack name.
	StackName string

	// TemplateFile is the template to include, JSON or YAML.
	TemplateFile string

	// Parameters override template parameters by name.
	Parameters map[string]string

	// PreserveLogicalIds keeps the template's logical IDs instead of
	// letting CDK rewrite them. Keep this on when the stack already
	// exists, or the deploy replaces every resource.
	PreserveLogicalIds bool

	// Tags are applied to all resources.
	Tags map[string]string
}

// NewCfnIncludeStack includes an existing CloudFormation template as a CDK
// stack. It is the migration path for platforms that predate this library:
// the template keeps working as-is while new resources are added in Go.
//
// Example:
//
//	app := fabric.NewApp()
//	stack := fabric.NewCfnIncludeStack(app, fabric.CfnIncludeConfig{
//	    StackName:    "media-platform",
//	    TemplateFile: "platform-stack.yaml",
//	    Parameters: map[string]string{
//	        "Environment": "production",
//	    },
//	})
//	fabric.Synth(app)
func NewCfnIncludeStack(scope constructs.Construct, config CfnIncludeConfig) *CfnIncludeStack {
	stack := awscdk.NewStack(scope, jsii.String(config.StackName), &awscdk.StackProps{
		StackName: jsii.String(config.StackName),
		Tags:      convertTags(config.Tags),
	})

	var parameters *map[string]interface{}
	if len(config.Parameters) > 0 {
		params := make(map[string]interface{}, len(config.Parameters))
		for k, v := range config.Parameters {
			params[k] = v
		}
		parameters = &params
	}

	template := cloudformationinclude.NewCfnInclude(stack, jsii.String("Template"), &cloudformationinclude.CfnIncludeProps{
		TemplateFile:       jsii.String(config.TemplateFile),
		Parameters:         parameters,
		PreserveLogicalIds: jsii.Bool(config.PreserveLogicalIds),
	})

	return &CfnIncludeStack{
		Stack:    stack,
		Template: template,
	}
}

// GetResource looks up an included resource by logical ID. The returned
// CfnResource is live; property changes show up in the synthesized output.
func (s *CfnIncludeStack) GetResource(logicalId string) awscdk.CfnResource {
	return s.Template.GetResource(jsii.String(logicalId))
}

// GetNestedStack looks up a nested stack included from the template.
func (s *CfnIncludeStack) GetNestedStack(logicalId string) *cloudformationinclude.IncludedNestedStack {
	return s.Template.GetNestedStack(jsii.String(logicalId))
}

// CfnIncludeBuilder provides a fluent interface for building CfnInclude stacks.
type CfnIncludeBuilder struct {
	config CfnIncludeConfig
}

// NewCfnIncludeBuilder creates a new CfnInclude builder.
func NewCfnIncludeBuilder(stackName, templateFile string) *CfnIncludeBuilder {
	return &CfnIncludeBuilder{
		config: CfnIncludeConfig{
			StackName:          stackName,
			TemplateFile:       templateFile,
			Parameters:         make(map[string]string),
			PreserveLogicalIds: true,
			Tags:               make(map[string]string),
		},
	}
}

// WithParameter adds a parameter override.
func (b *CfnIncludeBuilder) WithParameter(name, value string) *CfnIncludeBuilder {
	b.config.Parameters[name] = value
	return b
}

// WithParameters adds multiple parameter overrides.
func (b *CfnIncludeBuilder) WithParameters(params map[string]string) *CfnIncludeBuilder {
	for k, v := range params {
		b.config.Parameters[k] = v
	}
	return b
}

// WithTag adds a tag.
func (b *CfnIncludeBuilder) WithTag(key, value string) *CfnIncludeBuilder {
	b.config.Tags[key] = value
	return b
}

// WithTags adds multiple tags.
func (b *CfnIncludeBuilder) WithTags(tags map[string]string) *CfnIncludeBuilder {
	for k, v := range tags {
		b.config.Tags[k] = v
	}
	return b
}

// WithPreserveLogicalIds sets whether to preserve logical IDs.
func (b *CfnIncludeBuilder) WithPreserveLogicalIds(preserve bool) *CfnIncludeBuilder {
	b.config.PreserveLogicalIds = preserve
	return b
}

// Build creates the CfnInclude stack.
func (b *CfnIncludeBuilder) Build(scope constructs.Construct) *CfnIncludeStack {
	return NewCfnIncludeStack(scope, b.config)
}
