// Package fabric provides AWS CDK constructs for content-delivery platforms:
// storage buckets, CDN distributions, queues, topics, REST APIs and KMS keys.
package fabric

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/aws/constructs-go/constructs/v10"
	"gopkg.in/yaml.v3"
)

// LoadStackConfigFromFile loads a StackConfig from a JSON or YAML file.
// The format is chosen by file extension.
func LoadStackConfigFromFile(path string) (*StackConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return LoadStackConfigFromJSON(data)
	case ".yaml", ".yml":
		return LoadStackConfigFromYAML(data)
	default:
		return nil, fmt.Errorf("unsupported config format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
}

// LoadStackConfigFromJSON parses a StackConfig from JSON data.
func LoadStackConfigFromJSON(data []byte) (*StackConfig, error) {
	var config StackConfig
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing JSON config: %w", err)
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// LoadStackConfigFromYAML parses a StackConfig from YAML data.
func LoadStackConfigFromYAML(data []byte) (*StackConfig, error) {
	var config StackConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing YAML config: %w", err)
	}
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &config, nil
}

// NewStackFromFile creates a FabricStack from a JSON or YAML config file.
// This is the simplest way to deploy - just provide a config file.
func NewStackFromFile(scope constructs.Construct, configPath string) (*FabricStack, error) {
	config, err := LoadStackConfigFromFile(configPath)
	if err != nil {
		return nil, err
	}

	return NewFabricStack(scope, config.StackName, *config), nil
}

// MustNewStackFromFile is like NewStackFromFile but panics on error.
func MustNewStackFromFile(scope constructs.Construct, configPath string) *FabricStack {
	stack, err := NewStackFromFile(scope, configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to create stack from %s: %v", configPath, err))
	}
	return stack
}

// JSONConfigExample returns an example JSON configuration.
func JSONConfigExample() string {
	data, _ := json.MarshalIndent(exampleConfig(), "", "  ")
	return string(data) + "\n"
}

// YAMLConfigExample returns an example YAML configuration.
func YAMLConfigExample() string {
	data, _ := yaml.Marshal(exampleConfig())
	return string(data)
}

// WriteExampleConfig writes an example configuration file. The format is
// chosen by file extension.
func WriteExampleConfig(path string) error {
	var content string
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		content = JSONConfigExample()
	case ".yaml", ".yml":
		content = YAMLConfigExample()
	default:
		return fmt.Errorf("unsupported config format %q (want .json, .yaml or .yml)", filepath.Ext(path))
	}
	return os.WriteFile(path, []byte(content), 0o644)
}

func exampleConfig() StackConfig {
	api := DefaultAPIConfig("media-api")
	api.Description = "Upload and catalog API"
	api.RequireAPIKey = true

	return StackConfig{
		StackName:   "media-platform",
		Description: "Content delivery platform",
		Buckets: []BucketConfig{
			{Name: "assets", Versioned: true, Encrypted: true},
			{Name: "uploads", Encrypted: true, ExpireAfterDays: 30, EventTopic: "ingest"},
		},
		CDN: &CDNConfig{
			OriginBucket:      "assets",
			PriceClass:        "100",
			DefaultRootObject: "index.html",
		},
		Queues: []QueueConfig{
			{Name: "transcode", VisibilityTimeoutSeconds: 300, RetentionDays: 4, MaxReceiveCount: 3, Encrypted: true},
			{Name: "thumbnail", VisibilityTimeoutSeconds: 60, RetentionDays: 4, MaxReceiveCount: 3},
		},
		Topics: []TopicConfig{
			{Name: "ingest", Subscriptions: []string{"transcode", "thumbnail"}},
		},
		API:        &api,
		Encryption: DefaultEncryptionConfig(),
		Monitoring: &MonitoringConfig{Dashboard: true},
		Tags: map[string]string{
			"Project": "media-platform",
		},
	}
}
