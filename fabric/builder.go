package fabric

import (
	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/constructs-go/constructs/v10"
)

// StackBuilder provides a fluent interface for building Fabric stacks.
type StackBuilder struct {
	config StackConfig
}

// NewStackBuilder creates a new stack builder.
func NewStackBuilder(stackName string) *StackBuilder {
	return &StackBuilder{
		config: StackConfig{
			StackName: stackName,
			Tags:      make(map[string]string),
		},
	}
}

// WithDescription sets the stack description.
func (b *StackBuilder) WithDescription(description string) *StackBuilder {
	b.config.Description = description
	return b
}

// WithEnv pins the stack to an account and region.
func (b *StackBuilder) WithEnv(account, region string) *StackBuilder {
	b.config.Env = &EnvConfig{Account: account, Region: region}
	return b
}

// WithBucket adds a bucket to the stack.
func (b *StackBuilder) WithBucket(config BucketConfig) *StackBuilder {
	b.config.Buckets = append(b.config.Buckets, config)
	return b
}

// WithSimpleBucket adds a bucket with default configuration.
func (b *StackBuilder) WithSimpleBucket(name string) *StackBuilder {
	return b.WithBucket(DefaultBucketConfig(name))
}

// WithCDN configures the CloudFront distribution.
func (b *StackBuilder) WithCDN(config *CDNConfig) *StackBuilder {
	b.config.CDN = config
	return b
}

// WithCDNFor puts a distribution in front of the named bucket.
func (b *StackBuilder) WithCDNFor(originBucket string) *StackBuilder {
	b.config.CDN = &CDNConfig{OriginBucket: originBucket}
	return b
}

// WithQueue adds a queue to the stack.
func (b *StackBuilder) WithQueue(config QueueConfig) *StackBuilder {
	b.config.Queues = append(b.config.Queues, config)
	return b
}

// WithSimpleQueue adds a queue with default configuration.
func (b *StackBuilder) WithSimpleQueue(name string) *StackBuilder {
	return b.WithQueue(DefaultQueueConfig(name))
}

// WithTopic adds a topic to the stack.
func (b *StackBuilder) WithTopic(config TopicConfig) *StackBuilder {
	b.config.Topics = append(b.config.Topics, config)
	return b
}

// WithFanout adds a topic subscribed to by the named queues.
func (b *StackBuilder) WithFanout(topicName string, queueNames ...string) *StackBuilder {
	return b.WithTopic(TopicConfig{
		Name:          topicName,
		Subscriptions: queueNames,
	})
}

// WithRestAPI configures the REST API.
func (b *StackBuilder) WithRestAPI(config *APIConfig) *StackBuilder {
	b.config.API = config
	return b
}

// WithSimpleRestAPI adds a REST API with default configuration.
func (b *StackBuilder) WithSimpleRestAPI(name string) *StackBuilder {
	api := DefaultAPIConfig(name)
	b.config.API = &api
	return b
}

// WithEncryption configures the stack's KMS key.
func (b *StackBuilder) WithEncryption(config *EncryptionConfig) *StackBuilder {
	b.config.Encryption = config
	return b
}

// WithEncryptionKey creates a rotating customer-managed key.
func (b *StackBuilder) WithEncryptionKey() *StackBuilder {
	b.config.Encryption = DefaultEncryptionConfig()
	return b
}

// WithExistingKey imports an existing KMS key.
func (b *StackBuilder) WithExistingKey(keyARN string) *StackBuilder {
	b.config.Encryption = &EncryptionConfig{KeyARN: keyARN}
	return b
}

// WithDashboard creates a CloudWatch dashboard for the stack's resources.
func (b *StackBuilder) WithDashboard() *StackBuilder {
	b.config.Monitoring = &MonitoringConfig{Dashboard: true}
	return b
}

// WithTags adds tags to all resources.
func (b *StackBuilder) WithTags(tags map[string]string) *StackBuilder {
	for k, v := range tags {
		b.config.Tags[k] = v
	}
	return b
}

// WithTag adds a single tag.
func (b *StackBuilder) WithTag(key, value string) *StackBuilder {
	b.config.Tags[key] = value
	return b
}

// WithRemovalPolicy sets the removal policy.
func (b *StackBuilder) WithRemovalPolicy(policy string) *StackBuilder {
	b.config.RemovalPolicy = policy
	return b
}

// RetainOnDelete sets the removal policy to retain.
func (b *StackBuilder) RetainOnDelete() *StackBuilder {
	return b.WithRemovalPolicy("retain")
}

// DestroyOnDelete sets the removal policy to destroy.
func (b *StackBuilder) DestroyOnDelete() *StackBuilder {
	return b.WithRemovalPolicy("destroy")
}

// Config returns the current configuration.
func (b *StackBuilder) Config() StackConfig {
	return b.config
}

// Validate validates the current configuration.
func (b *StackBuilder) Validate() error {
	b.config.ApplyDefaults()
	return b.config.Validate()
}

// Build creates the Fabric stack.
func (b *StackBuilder) Build(scope constructs.Construct) *FabricStack {
	return NewFabricStack(scope, b.config.StackName, b.config)
}

// BucketBuilder provides a fluent interface for building bucket configurations.
type BucketBuilder struct {
	config BucketConfig
}

// NewBucketBuilder creates a new bucket builder.
func NewBucketBuilder(name string) *BucketBuilder {
	return &BucketBuilder{config: DefaultBucketConfig(name)}
}

// Unversioned disables object versioning.
func (b *BucketBuilder) Unversioned() *BucketBuilder {
	b.config.Versioned = false
	return b
}

// Unencrypted disables KMS encryption.
func (b *BucketBuilder) Unencrypted() *BucketBuilder {
	b.config.Encrypted = false
	return b
}

// ExpireAfter deletes objects after the given number of days.
func (b *BucketBuilder) ExpireAfter(days int) *BucketBuilder {
	b.config.ExpireAfterDays = days
	return b
}

// ArchiveAfter transitions objects to Glacier after the given number of days.
func (b *BucketBuilder) ArchiveAfter(days int) *BucketBuilder {
	b.config.ArchiveAfterDays = days
	return b
}

// NotifyTopic sends object-created notifications to the named topic.
func (b *BucketBuilder) NotifyTopic(topicName string) *BucketBuilder {
	b.config.EventTopic = topicName
	return b
}

// Build returns the bucket configuration.
func (b *BucketBuilder) Build() BucketConfig {
	return b.config
}

// QueueBuilder provides a fluent interface for building queue configurations.
type QueueBuilder struct {
	config QueueConfig
}

// NewQueueBuilder creates a new queue builder.
func NewQueueBuilder(name string) *QueueBuilder {
	return &QueueBuilder{config: DefaultQueueConfig(name)}
}

// WithVisibilityTimeout sets the visibility timeout in seconds.
func (b *QueueBuilder) WithVisibilityTimeout(seconds int) *QueueBuilder {
	b.config.VisibilityTimeoutSeconds = seconds
	return b
}

// WithRetention sets the retention period in days.
func (b *QueueBuilder) WithRetention(days int) *QueueBuilder {
	b.config.RetentionDays = days
	return b
}

// WithDeadLetter moves messages to a dead-letter queue after the given
// number of receives.
func (b *QueueBuilder) WithDeadLetter(maxReceiveCount int) *QueueBuilder {
	b.config.MaxReceiveCount = maxReceiveCount
	return b
}

// WithoutDeadLetter disables the dead-letter queue.
func (b *QueueBuilder) WithoutDeadLetter() *QueueBuilder {
	b.config.MaxReceiveCount = 0
	return b
}

// AsFIFO creates a FIFO queue.
func (b *QueueBuilder) AsFIFO() *QueueBuilder {
	b.config.FIFO = true
	return b
}

// Encrypted encrypts messages with the stack's KMS key.
func (b *QueueBuilder) Encrypted() *QueueBuilder {
	b.config.Encrypted = true
	return b
}

// Build returns the queue configuration.
func (b *QueueBuilder) Build() QueueConfig {
	return b.config
}

// NewApp creates a new CDK app with common settings.
func NewApp() awscdk.App {
	return awscdk.NewApp(&awscdk.AppProps{
		Context: &map[string]interface{}{
			"@aws-cdk/core:newStyleStackSynthesis": true,
		},
	})
}

// Synth synthesizes the CDK app to CloudFormation templates.
func Synth(app awscdk.App) {
	app.Synth(nil)
}
