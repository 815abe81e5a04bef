package fabric

import (
	"fmt"
	"strings"
)

// StackConfig is the top-level configuration for a Fabric stack.
// All settings are explicit; nothing is read from the process environment.
type StackConfig struct {
	// StackName is the CloudFormation stack name.
	StackName string `json:"stackName" yaml:"stackName"`

	// Description is the stack description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// Env pins the target account and region. When nil the stack is
	// environment-agnostic and resolved at deploy time.
	Env *EnvConfig `json:"env,omitempty" yaml:"env,omitempty"`

	// Buckets are the S3 buckets to create.
	Buckets []BucketConfig `json:"buckets,omitempty" yaml:"buckets,omitempty"`

	// CDN configures a CloudFront distribution in front of one of the buckets.
	CDN *CDNConfig `json:"cdn,omitempty" yaml:"cdn,omitempty"`

	// Queues are the SQS queues to create.
	Queues []QueueConfig `json:"queues,omitempty" yaml:"queues,omitempty"`

	// Topics are the SNS topics to create.
	Topics []TopicConfig `json:"topics,omitempty" yaml:"topics,omitempty"`

	// API configures an API Gateway REST API.
	API *APIConfig `json:"api,omitempty" yaml:"api,omitempty"`

	// Encryption configures the KMS key shared by the stack's resources.
	Encryption *EncryptionConfig `json:"encryption,omitempty" yaml:"encryption,omitempty"`

	// Monitoring configures the CloudWatch dashboard.
	Monitoring *MonitoringConfig `json:"monitoring,omitempty" yaml:"monitoring,omitempty"`

	// Tags are applied to all resources.
	Tags map[string]string `json:"tags,omitempty" yaml:"tags,omitempty"`

	// RemovalPolicy is "destroy" or "retain".
	RemovalPolicy string `json:"removalPolicy,omitempty" yaml:"removalPolicy,omitempty"`
}

// EnvConfig pins a stack to an account and region.
type EnvConfig struct {
	Account string `json:"account" yaml:"account"`
	Region  string `json:"region" yaml:"region"`
}

// BucketConfig configures an S3 bucket.
type BucketConfig struct {
	// Name is the logical bucket name, unique within the stack.
	Name string `json:"name" yaml:"name"`

	// Versioned enables object versioning.
	Versioned bool `json:"versioned,omitempty" yaml:"versioned,omitempty"`

	// Encrypted encrypts objects with the stack's KMS key.
	Encrypted bool `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`

	// ExpireAfterDays deletes objects after the given number of days.
	// Zero keeps objects forever.
	ExpireAfterDays int `json:"expireAfterDays,omitempty" yaml:"expireAfterDays,omitempty"`

	// ArchiveAfterDays transitions objects to Glacier after the given
	// number of days. Zero disables the transition.
	ArchiveAfterDays int `json:"archiveAfterDays,omitempty" yaml:"archiveAfterDays,omitempty"`

	// EventTopic is the name of a configured topic that receives
	// object-created notifications. Empty disables notifications.
	EventTopic string `json:"eventTopic,omitempty" yaml:"eventTopic,omitempty"`
}

// CDNConfig configures a CloudFront distribution.
type CDNConfig struct {
	// OriginBucket is the name of the configured bucket to serve.
	OriginBucket string `json:"originBucket" yaml:"originBucket"`

	// Aliases are alternate domain names for the distribution.
	Aliases []string `json:"aliases,omitempty" yaml:"aliases,omitempty"`

	// CertificateARN is the ACM certificate for the aliases.
	// Required when Aliases is non-empty.
	CertificateARN string `json:"certificateArn,omitempty" yaml:"certificateArn,omitempty"`

	// PriceClass is "100", "200" or "all".
	PriceClass string `json:"priceClass,omitempty" yaml:"priceClass,omitempty"`

	// DefaultRootObject is served for requests to the distribution root.
	DefaultRootObject string `json:"defaultRootObject,omitempty" yaml:"defaultRootObject,omitempty"`

	// EnableLogging turns on standard access logging.
	EnableLogging bool `json:"enableLogging,omitempty" yaml:"enableLogging,omitempty"`
}

// QueueConfig configures an SQS queue.
type QueueConfig struct {
	// Name is the logical queue name, unique within the stack.
	Name string `json:"name" yaml:"name"`

	// VisibilityTimeoutSeconds is the message visibility timeout.
	VisibilityTimeoutSeconds int `json:"visibilityTimeoutSeconds,omitempty" yaml:"visibilityTimeoutSeconds,omitempty"`

	// RetentionDays is how long messages are retained.
	RetentionDays int `json:"retentionDays,omitempty" yaml:"retentionDays,omitempty"`

	// MaxReceiveCount moves messages to a dead-letter queue after the
	// given number of receives. Zero disables the dead-letter queue.
	MaxReceiveCount int `json:"maxReceiveCount,omitempty" yaml:"maxReceiveCount,omitempty"`

	// FIFO creates a FIFO queue.
	FIFO bool `json:"fifo,omitempty" yaml:"fifo,omitempty"`

	// Encrypted encrypts messages with the stack's KMS key.
	Encrypted bool `json:"encrypted,omitempty" yaml:"encrypted,omitempty"`
}

// TopicConfig configures an SNS topic.
type TopicConfig struct {
	// Name is the logical topic name, unique within the stack.
	Name string `json:"name" yaml:"name"`

	// DisplayName is shown in SMS and email subscriptions.
	DisplayName string `json:"displayName,omitempty" yaml:"displayName,omitempty"`

	// FIFO creates a FIFO topic.
	FIFO bool `json:"fifo,omitempty" yaml:"fifo,omitempty"`

	// Subscriptions are names of configured queues subscribed to the topic.
	Subscriptions []string `json:"subscriptions,omitempty" yaml:"subscriptions,omitempty"`
}

// APIConfig configures an API Gateway REST API.
type APIConfig struct {
	// Name is the API name.
	Name string `json:"name" yaml:"name"`

	// Description is the API description.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`

	// StageName is the deployment stage, e.g. "prod".
	StageName string `json:"stageName,omitempty" yaml:"stageName,omitempty"`

	// ThrottleRateLimit is the steady-state request rate per second.
	ThrottleRateLimit float64 `json:"throttleRateLimit,omitempty" yaml:"throttleRateLimit,omitempty"`

	// ThrottleBurstLimit is the burst request limit.
	ThrottleBurstLimit int `json:"throttleBurstLimit,omitempty" yaml:"throttleBurstLimit,omitempty"`

	// RequireAPIKey creates a usage plan and API key and requires the
	// key on all methods.
	RequireAPIKey bool `json:"requireApiKey,omitempty" yaml:"requireApiKey,omitempty"`

	// EnableAccessLogs writes stage access logs to CloudWatch.
	EnableAccessLogs bool `json:"enableAccessLogs,omitempty" yaml:"enableAccessLogs,omitempty"`
}

// EncryptionConfig configures the stack's KMS key.
type EncryptionConfig struct {
	// CreateKey creates a new customer-managed key.
	CreateKey bool `json:"createKey,omitempty" yaml:"createKey,omitempty"`

	// KeyARN imports an existing key instead of creating one.
	KeyARN string `json:"keyArn,omitempty" yaml:"keyArn,omitempty"`

	// KeyAlias is the alias for a created key. Defaults to
	// "alias/{stackName}".
	KeyAlias string `json:"keyAlias,omitempty" yaml:"keyAlias,omitempty"`

	// EnableRotation enables yearly key rotation.
	EnableRotation bool `json:"enableRotation,omitempty" yaml:"enableRotation,omitempty"`
}

// MonitoringConfig configures the CloudWatch dashboard.
type MonitoringConfig struct {
	// Dashboard creates a dashboard with widgets for the stack's
	// queues, CDN and API.
	Dashboard bool `json:"dashboard,omitempty" yaml:"dashboard,omitempty"`

	// DashboardName defaults to "{stackName}-dashboard".
	DashboardName string `json:"dashboardName,omitempty" yaml:"dashboardName,omitempty"`
}

// ValidPriceClasses are the accepted CDN price class values.
var ValidPriceClasses = []string{"100", "200", "all"}

// ValidRemovalPolicies are the accepted removal policy values.
var ValidRemovalPolicies = []string{"destroy", "retain"}

// DefaultBucketConfig returns a bucket configuration with defaults applied.
func DefaultBucketConfig(name string) BucketConfig {
	return BucketConfig{
		Name:      name,
		Versioned: true,
		Encrypted: true,
	}
}

// DefaultQueueConfig returns a queue configuration with defaults applied.
func DefaultQueueConfig(name string) QueueConfig {
	return QueueConfig{
		Name:                     name,
		VisibilityTimeoutSeconds: 30,
		RetentionDays:            4,
		MaxReceiveCount:          3,
	}
}

// DefaultTopicConfig returns a topic configuration with defaults applied.
func DefaultTopicConfig(name string) TopicConfig {
	return TopicConfig{Name: name}
}

// DefaultAPIConfig returns an API configuration with defaults applied.
func DefaultAPIConfig(name string) APIConfig {
	return APIConfig{
		Name:               name,
		StageName:          "prod",
		ThrottleRateLimit:  100,
		ThrottleBurstLimit: 200,
	}
}

// DefaultEncryptionConfig returns an encryption configuration that
// creates a rotating customer-managed key.
func DefaultEncryptionConfig() *EncryptionConfig {
	return &EncryptionConfig{
		CreateKey:      true,
		EnableRotation: true,
	}
}

// ApplyDefaults fills unset fields with their default values.
func (c *StackConfig) ApplyDefaults() {
	if c.RemovalPolicy == "" {
		c.RemovalPolicy = "destroy"
	}
	if c.Tags == nil {
		c.Tags = make(map[string]string)
	}
	for i := range c.Queues {
		q := &c.Queues[i]
		if q.VisibilityTimeoutSeconds == 0 {
			q.VisibilityTimeoutSeconds = 30
		}
		if q.RetentionDays == 0 {
			q.RetentionDays = 4
		}
	}
	if c.CDN != nil && c.CDN.PriceClass == "" {
		c.CDN.PriceClass = "100"
	}
	if c.API != nil {
		if c.API.StageName == "" {
			c.API.StageName = "prod"
		}
		if c.API.ThrottleRateLimit == 0 {
			c.API.ThrottleRateLimit = 100
		}
		if c.API.ThrottleBurstLimit == 0 {
			c.API.ThrottleBurstLimit = 200
		}
	}
	if c.Encryption != nil && c.Encryption.CreateKey && c.Encryption.KeyAlias == "" {
		c.Encryption.KeyAlias = "alias/" + c.StackName
	}
	if c.Monitoring != nil && c.Monitoring.Dashboard && c.Monitoring.DashboardName == "" {
		c.Monitoring.DashboardName = c.StackName + "-dashboard"
	}
}

// Validate checks the configuration for errors. It should be called after
// ApplyDefaults.
func (c *StackConfig) Validate() error {
	if c.StackName == "" {
		return fmt.Errorf("stackName is required")
	}

	buckets := make(map[string]bool, len(c.Buckets))
	for _, b := range c.Buckets {
		if b.Name == "" {
			return fmt.Errorf("bucket name is required")
		}
		if buckets[b.Name] {
			return fmt.Errorf("duplicate bucket name %q", b.Name)
		}
		buckets[b.Name] = true
		if b.ExpireAfterDays < 0 || b.ArchiveAfterDays < 0 {
			return fmt.Errorf("bucket %q: lifecycle days must not be negative", b.Name)
		}
		if b.ExpireAfterDays > 0 && b.ArchiveAfterDays >= b.ExpireAfterDays {
			return fmt.Errorf("bucket %q: archiveAfterDays must be before expireAfterDays", b.Name)
		}
	}

	queues := make(map[string]bool, len(c.Queues))
	for _, q := range c.Queues {
		if q.Name == "" {
			return fmt.Errorf("queue name is required")
		}
		if queues[q.Name] {
			return fmt.Errorf("duplicate queue name %q", q.Name)
		}
		queues[q.Name] = true
		if q.MaxReceiveCount < 0 {
			return fmt.Errorf("queue %q: maxReceiveCount must not be negative", q.Name)
		}
	}

	topics := make(map[string]bool, len(c.Topics))
	for _, t := range c.Topics {
		if t.Name == "" {
			return fmt.Errorf("topic name is required")
		}
		if topics[t.Name] {
			return fmt.Errorf("duplicate topic name %q", t.Name)
		}
		topics[t.Name] = true
		for _, sub := range t.Subscriptions {
			if !queues[sub] {
				return fmt.Errorf("topic %q: subscription references unknown queue %q", t.Name, sub)
			}
		}
	}

	for _, b := range c.Buckets {
		if b.EventTopic != "" && !topics[b.EventTopic] {
			return fmt.Errorf("bucket %q: eventTopic references unknown topic %q", b.Name, b.EventTopic)
		}
	}

	if c.CDN != nil {
		if c.CDN.OriginBucket == "" {
			return fmt.Errorf("cdn: originBucket is required")
		}
		if !buckets[c.CDN.OriginBucket] {
			return fmt.Errorf("cdn: originBucket references unknown bucket %q", c.CDN.OriginBucket)
		}
		if !contains(ValidPriceClasses, c.CDN.PriceClass) {
			return fmt.Errorf("cdn: invalid priceClass %q (valid: %s)",
				c.CDN.PriceClass, strings.Join(ValidPriceClasses, ", "))
		}
		if len(c.CDN.Aliases) > 0 && c.CDN.CertificateARN == "" {
			return fmt.Errorf("cdn: certificateArn is required when aliases are set")
		}
	}

	if c.API != nil && c.API.Name == "" {
		return fmt.Errorf("api: name is required")
	}

	if c.Encryption != nil && c.Encryption.CreateKey && c.Encryption.KeyARN != "" {
		return fmt.Errorf("encryption: createKey and keyArn are mutually exclusive")
	}

	needsKey := false
	for _, b := range c.Buckets {
		needsKey = needsKey || b.Encrypted
	}
	for _, q := range c.Queues {
		needsKey = needsKey || q.Encrypted
	}
	if needsKey && (c.Encryption == nil || (!c.Encryption.CreateKey && c.Encryption.KeyARN == "")) {
		return fmt.Errorf("encryption is required when any bucket or queue is encrypted")
	}

	if !contains(ValidRemovalPolicies, c.RemovalPolicy) {
		return fmt.Errorf("invalid removalPolicy %q (valid: %s)",
			c.RemovalPolicy, strings.Join(ValidRemovalPolicies, ", "))
	}

	return nil
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}
