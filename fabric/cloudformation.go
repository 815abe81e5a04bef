package fabric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/fabrichq/fabric-aws-cdk/assembly"
)

// object is a JSON object that marshals its fields in insertion order.
// CloudFormation tooling downstream (diffing, graph rendering) relies on
// stable resource and property ordering.
type object []field

type field struct {
	key   string
	value any
}

func (o object) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, f := range o {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(f.key)
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		value, err := json.Marshal(f.value)
		if err != nil {
			return nil, fmt.Errorf("marshaling %s: %w", f.key, err)
		}
		b.Write(value)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

func (o *object) set(key string, value any) {
	*o = append(*o, field{key: key, value: value})
}

func ref(logicalID string) object {
	return object{{key: "Ref", value: logicalID}}
}

func getAtt(logicalID, attribute string) object {
	return object{{key: "Fn::GetAtt", value: []string{logicalID, attribute}}}
}

// resource builds one CloudFormation resource declaration.
func resource(typeTag string, properties object, dependsOn ...string) object {
	var o object
	o.set("Type", typeTag)
	if len(properties) > 0 {
		o.set("Properties", properties)
	}
	if len(dependsOn) > 0 {
		o.set("DependsOn", dependsOn)
	}
	return o
}

// GenerateCloudFormation generates a CloudFormation template from a stack
// configuration without the CDK runtime. The output deploys with the AWS
// CLI alone.
func GenerateCloudFormation(config *StackConfig) ([]byte, error) {
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	var resources object

	keyID := ""
	if enc := config.Encryption; enc != nil && enc.CreateKey {
		keyID = "EncryptionKey"
		resources.set(keyID, resource("AWS::KMS::Key", object{
			{key: "Description", value: fmt.Sprintf("Encryption key for %s", config.StackName)},
			{key: "EnableKeyRotation", value: enc.EnableRotation},
		}))
		resources.set("EncryptionKeyAlias", resource("AWS::KMS::Alias", object{
			{key: "AliasName", value: enc.KeyAlias},
			{key: "TargetKeyId", value: ref(keyID)},
		}, keyID))
	}

	for _, q := range config.Queues {
		id := logicalID("Queue", q.Name)
		props := object{
			{key: "VisibilityTimeout", value: q.VisibilityTimeoutSeconds},
			{key: "MessageRetentionPeriod", value: q.RetentionDays * 86400},
		}
		if q.FIFO {
			props.set("FifoQueue", true)
			props.set("ContentBasedDeduplication", true)
		}
		if q.Encrypted && keyID != "" {
			props.set("KmsMasterKeyId", ref(keyID))
		}

		var deps []string
		if q.MaxReceiveCount > 0 {
			dlqID := logicalID("DLQ", q.Name)
			resources.set(dlqID, resource("AWS::SQS::Queue", object{
				{key: "MessageRetentionPeriod", value: 14 * 86400},
			}))
			props.set("RedrivePolicy", object{
				{key: "deadLetterTargetArn", value: getAtt(dlqID, "Arn")},
				{key: "maxReceiveCount", value: q.MaxReceiveCount},
			})
			deps = append(deps, dlqID)
		}
		if q.Encrypted && keyID != "" {
			deps = append(deps, keyID)
		}
		resources.set(id, resource("AWS::SQS::Queue", props, deps...))
	}

	for _, t := range config.Topics {
		id := logicalID("Topic", t.Name)
		props := object{}
		if t.DisplayName != "" {
			props.set("DisplayName", t.DisplayName)
		}
		if t.FIFO {
			props.set("FifoTopic", true)
			props.set("TopicName", fmt.Sprintf("%s-%s.fifo", config.StackName, t.Name))
		}
		resources.set(id, resource("AWS::SNS::Topic", props))

		for _, sub := range t.Subscriptions {
			queueID := logicalID("Queue", sub)
			resources.set(logicalID("Sub", t.Name+"-"+sub), resource("AWS::SNS::Subscription", object{
				{key: "Protocol", value: "sqs"},
				{key: "TopicArn", value: ref(id)},
				{key: "Endpoint", value: getAtt(queueID, "Arn")},
				{key: "RawMessageDelivery", value: true},
			}, id, queueID))
		}
	}

	for _, b := range config.Buckets {
		id := logicalID("Bucket", b.Name)
		props := object{}
		if b.Versioned {
			props.set("VersioningConfiguration", object{{key: "Status", value: "Enabled"}})
		}
		var deps []string
		if b.Encrypted && keyID != "" {
			props.set("BucketEncryption", object{
				{key: "ServerSideEncryptionConfiguration", value: []any{object{
					{key: "ServerSideEncryptionByDefault", value: object{
						{key: "SSEAlgorithm", value: "aws:kms"},
						{key: "KMSMasterKeyID", value: ref(keyID)},
					}},
				}}},
			})
			deps = append(deps, keyID)
		}
		if b.ExpireAfterDays > 0 || b.ArchiveAfterDays > 0 {
			rule := object{{key: "Status", value: "Enabled"}}
			if b.ExpireAfterDays > 0 {
				rule.set("ExpirationInDays", b.ExpireAfterDays)
			}
			if b.ArchiveAfterDays > 0 {
				rule.set("Transitions", []any{object{
					{key: "StorageClass", value: "GLACIER"},
					{key: "TransitionInDays", value: b.ArchiveAfterDays},
				}})
			}
			props.set("LifecycleConfiguration", object{{key: "Rules", value: []any{rule}}})
		}
		if b.EventTopic != "" {
			topicID := logicalID("Topic", b.EventTopic)
			props.set("NotificationConfiguration", object{
				{key: "TopicConfigurations", value: []any{object{
					{key: "Event", value: "s3:ObjectCreated:*"},
					{key: "Topic", value: ref(topicID)},
				}}},
			})
			deps = append(deps, topicID)
		}
		resources.set(id, resource("AWS::S3::Bucket", props, deps...))
	}

	if cdn := config.CDN; cdn != nil {
		originID := logicalID("Bucket", cdn.OriginBucket)
		cfg := object{
			{key: "Enabled", value: true},
			{key: "PriceClass", value: priceClassValue(cdn.PriceClass)},
			{key: "Origins", value: []any{object{
				{key: "Id", value: "origin"},
				{key: "DomainName", value: getAtt(originID, "RegionalDomainName")},
				{key: "S3OriginConfig", value: object{}},
			}}},
			{key: "DefaultCacheBehavior", value: object{
				{key: "TargetOriginId", value: "origin"},
				{key: "ViewerProtocolPolicy", value: "redirect-to-https"},
				{key: "CachePolicyId", value: "658327ea-f89d-4fab-a63d-7e88639e58f6"}, // managed CachingOptimized
			}},
		}
		if cdn.DefaultRootObject != "" {
			cfg.set("DefaultRootObject", cdn.DefaultRootObject)
		}
		if len(cdn.Aliases) > 0 {
			cfg.set("Aliases", cdn.Aliases)
			cfg.set("ViewerCertificate", object{
				{key: "AcmCertificateArn", value: cdn.CertificateARN},
				{key: "SslSupportMethod", value: "sni-only"},
			})
		}
		resources.set("Distribution", resource("AWS::CloudFront::Distribution", object{
			{key: "DistributionConfig", value: cfg},
		}, originID))
	}

	if api := config.API; api != nil {
		resources.set("RestApi", resource("AWS::ApiGateway::RestApi", object{
			{key: "Name", value: api.Name},
			{key: "Description", value: api.Description},
		}))
		resources.set("Deployment", resource("AWS::ApiGateway::Deployment", object{
			{key: "RestApiId", value: ref("RestApi")},
		}, "RestApi"))
		resources.set("Stage", resource("AWS::ApiGateway::Stage", object{
			{key: "RestApiId", value: ref("RestApi")},
			{key: "DeploymentId", value: ref("Deployment")},
			{key: "StageName", value: api.StageName},
			{key: "MethodSettings", value: []any{object{
				{key: "ResourcePath", value: "/*"},
				{key: "HttpMethod", value: "*"},
				{key: "ThrottlingRateLimit", value: api.ThrottleRateLimit},
				{key: "ThrottlingBurstLimit", value: api.ThrottleBurstLimit},
			}}},
		}, "Deployment"))
		if api.RequireAPIKey {
			resources.set("APIKey", resource("AWS::ApiGateway::ApiKey", object{
				{key: "Enabled", value: true},
			}, "Stage"))
			resources.set("UsagePlan", resource("AWS::ApiGateway::UsagePlan", object{
				{key: "UsagePlanName", value: fmt.Sprintf("%s-plan", api.Name)},
				{key: "ApiStages", value: []any{object{
					{key: "ApiId", value: ref("RestApi")},
					{key: "Stage", value: api.StageName},
				}}},
				{key: "Throttle", value: object{
					{key: "RateLimit", value: api.ThrottleRateLimit},
					{key: "BurstLimit", value: api.ThrottleBurstLimit},
				}},
			}, "Stage"))
			resources.set("UsagePlanKey", resource("AWS::ApiGateway::UsagePlanKey", object{
				{key: "KeyId", value: ref("APIKey")},
				{key: "KeyType", value: "API_KEY"},
				{key: "UsagePlanId", value: ref("UsagePlan")},
			}, "APIKey", "UsagePlan"))
		}
	}

	if mon := config.Monitoring; mon != nil && mon.Dashboard {
		resources.set("Dashboard", resource("AWS::CloudWatch::Dashboard", object{
			{key: "DashboardName", value: mon.DashboardName},
			{key: "DashboardBody", value: `{"widgets":[]}`},
		}))
	}

	// Same bookkeeping resource the CDK emits; graph rendering skips it.
	resources.set("CDKMetadata", resource(assembly.MetadataResourceType, object{
		{key: "Analytics", value: "v2:fabric"},
	}))

	var template object
	template.set("AWSTemplateFormatVersion", "2010-09-09")
	if config.Description != "" {
		template.set("Description", config.Description)
	}
	template.set("Resources", resources)

	data, err := json.MarshalIndent(template, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling template: %w", err)
	}
	return append(data, '\n'), nil
}

// GenerateCloudFormationFile generates a CloudFormation template and
// writes it to a file.
func GenerateCloudFormationFile(config *StackConfig, path string) error {
	data, err := GenerateCloudFormation(config)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// GenerateCloudFormationFromFile loads a config file and generates a
// CloudFormation template.
func GenerateCloudFormationFromFile(configPath, outputPath string) error {
	config, err := LoadStackConfigFromFile(configPath)
	if err != nil {
		return err
	}
	return GenerateCloudFormationFile(config, outputPath)
}

func priceClassValue(pc string) string {
	switch pc {
	case "200":
		return "PriceClass_200"
	case "all":
		return "PriceClass_All"
	default:
		return "PriceClass_100"
	}
}

// logicalID builds a CloudFormation logical ID from a configured name,
// e.g. ("Queue", "transcode-jobs") -> "QueueTranscodeJobs".
func logicalID(prefix, name string) string {
	var b strings.Builder
	b.WriteString(prefix)
	upper := true
	for _, r := range name {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			upper = true
			continue
		}
		if upper {
			b.WriteRune(unicode.ToUpper(r))
			upper = false
		} else {
			b.WriteRune(r)
		}
	}
	return b.String()
}
