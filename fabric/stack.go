package fabric

import (
	"fmt"

	"github.com/aws/aws-cdk-go/awscdk/v2"
	"github.com/aws/aws-cdk-go/awscdk/v2/awsapigateway"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscertificatemanager"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfront"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudfrontorigins"
	"github.com/aws/aws-cdk-go/awscdk/v2/awscloudwatch"
	"github.com/aws/aws-cdk-go/awscdk/v2/awskms"
	"github.com/aws/aws-cdk-go/awscdk/v2/awslogs"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3"
	"github.com/aws/aws-cdk-go/awscdk/v2/awss3notifications"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssns"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssnssubscriptions"
	"github.com/aws/aws-cdk-go/awscdk/v2/awssqs"
	"github.com/aws/constructs-go/constructs/v10"
	"github.com/aws/jsii-runtime-go"
)

// FabricStack is a CDK stack that deploys a content-delivery platform:
// storage buckets, a CDN, queues, topics, a REST API and a shared KMS key.
type FabricStack struct {
	awscdk.Stack

	// Config is the stack configuration.
	Config StackConfig

	// Key is the KMS key shared by encrypted resources.
	Key awskms.IKey

	// Buckets contains the created S3 buckets by configured name.
	Buckets map[string]awss3.Bucket

	// Distribution is the CloudFront distribution (if configured).
	Distribution awscloudfront.Distribution

	// Queues contains the created SQS queues by configured name.
	Queues map[string]awssqs.Queue

	// DeadLetterQueues contains the dead-letter queues by owning queue name.
	DeadLetterQueues map[string]awssqs.Queue

	// Topics contains the created SNS topics by configured name.
	Topics map[string]awssns.Topic

	// API is the API Gateway REST API (if configured).
	API awsapigateway.RestApi

	// Dashboard is the CloudWatch dashboard (if configured).
	Dashboard awscloudwatch.Dashboard
}

// NewFabricStack creates a new Fabric CDK stack.
func NewFabricStack(scope constructs.Construct, id string, config StackConfig) *FabricStack {
	// Validate and apply defaults
	config.ApplyDefaults()
	if err := config.Validate(); err != nil {
		panic(fmt.Sprintf("invalid stack configuration: %v", err))
	}

	props := &awscdk.StackProps{
		StackName:   jsii.String(config.StackName),
		Description: jsii.String(config.Description),
		Tags:        convertTags(config.Tags),
	}
	if config.Env != nil {
		props.Env = &awscdk.Environment{
			Account: jsii.String(config.Env.Account),
			Region:  jsii.String(config.Env.Region),
		}
	}

	stack := awscdk.NewStack(scope, jsii.String(id), props)

	s := &FabricStack{
		Stack:            stack,
		Config:           config,
		Buckets:          make(map[string]awss3.Bucket),
		Queues:           make(map[string]awssqs.Queue),
		DeadLetterQueues: make(map[string]awssqs.Queue),
		Topics:           make(map[string]awssns.Topic),
	}

	// Creation order matters: queues before topics (subscriptions),
	// topics before buckets (event notifications), buckets before the CDN.
	s.createKey()
	s.createQueues()
	s.createTopics()
	s.createBuckets()
	s.createCDN()
	s.createAPI()
	s.createDashboard()

	s.addOutputs()

	return s
}

// removalPolicy maps the configured policy to the CDK value.
func (s *FabricStack) removalPolicy() awscdk.RemovalPolicy {
	if s.Config.RemovalPolicy == "retain" {
		return awscdk.RemovalPolicy_RETAIN
	}
	return awscdk.RemovalPolicy_DESTROY
}

// createKey creates or imports the shared KMS key.
func (s *FabricStack) createKey() {
	if s.Config.Encryption == nil {
		return
	}

	enc := s.Config.Encryption

	if enc.KeyARN != "" {
		// Import existing key
		s.Key = awskms.Key_FromKeyArn(s.Stack, jsii.String("Key"), jsii.String(enc.KeyARN))
		return
	}

	if enc.CreateKey {
		s.Key = awskms.NewKey(s.Stack, jsii.String("Key"), &awskms.KeyProps{
			Alias:             jsii.String(enc.KeyAlias),
			Description:       jsii.String(fmt.Sprintf("Encryption key for %s", s.Config.StackName)),
			EnableKeyRotation: jsii.Bool(enc.EnableRotation),
			RemovalPolicy:     s.removalPolicy(),
		})
	}
}

// createBuckets creates the S3 buckets.
func (s *FabricStack) createBuckets() {
	for _, cfg := range s.Config.Buckets {
		props := &awss3.BucketProps{
			Versioned:         jsii.Bool(cfg.Versioned),
			BlockPublicAccess: awss3.BlockPublicAccess_BLOCK_ALL(),
			RemovalPolicy:     s.removalPolicy(),
		}
		if s.Config.RemovalPolicy == "destroy" {
			props.AutoDeleteObjects = jsii.Bool(true)
		}

		if cfg.Encrypted {
			props.Encryption = awss3.BucketEncryption_KMS
			props.EncryptionKey = s.Key
		} else {
			props.Encryption = awss3.BucketEncryption_S3_MANAGED
		}

		if cfg.ExpireAfterDays > 0 || cfg.ArchiveAfterDays > 0 {
			rule := &awss3.LifecycleRule{Enabled: jsii.Bool(true)}
			if cfg.ExpireAfterDays > 0 {
				rule.Expiration = awscdk.Duration_Days(jsii.Number(float64(cfg.ExpireAfterDays)))
			}
			if cfg.ArchiveAfterDays > 0 {
				rule.Transitions = &[]*awss3.Transition{{
					StorageClass:    awss3.StorageClass_GLACIER(),
					TransitionAfter: awscdk.Duration_Days(jsii.Number(float64(cfg.ArchiveAfterDays))),
				}}
			}
			props.LifecycleRules = &[]*awss3.LifecycleRule{rule}
		}

		bucket := awss3.NewBucket(s.Stack, jsii.String(fmt.Sprintf("Bucket-%s", cfg.Name)), props)

		if cfg.EventTopic != "" {
			bucket.AddEventNotification(
				awss3.EventType_OBJECT_CREATED,
				awss3notifications.NewSnsDestination(s.Topics[cfg.EventTopic]),
			)
		}

		s.Buckets[cfg.Name] = bucket
	}
}

// createCDN creates the CloudFront distribution in front of the origin bucket.
func (s *FabricStack) createCDN() {
	if s.Config.CDN == nil {
		return
	}

	cfg := s.Config.CDN
	origin := s.Buckets[cfg.OriginBucket]

	props := &awscloudfront.DistributionProps{
		Comment: jsii.String(fmt.Sprintf("CDN for %s", s.Config.StackName)),
		DefaultBehavior: &awscloudfront.BehaviorOptions{
			Origin:               awscloudfrontorigins.S3BucketOrigin_WithOriginAccessControl(origin, nil),
			ViewerProtocolPolicy: awscloudfront.ViewerProtocolPolicy_REDIRECT_TO_HTTPS,
			CachePolicy:          awscloudfront.CachePolicy_CACHING_OPTIMIZED(),
		},
		PriceClass:    s.getPriceClass(),
		EnableLogging: jsii.Bool(cfg.EnableLogging),
	}

	if cfg.DefaultRootObject != "" {
		props.DefaultRootObject = jsii.String(cfg.DefaultRootObject)
	}

	if len(cfg.Aliases) > 0 {
		props.DomainNames = jsii.Strings(cfg.Aliases...)
		props.Certificate = awscertificatemanager.Certificate_FromCertificateArn(
			s.Stack,
			jsii.String("CDNCertificate"),
			jsii.String(cfg.CertificateARN),
		)
	}

	s.Distribution = awscloudfront.NewDistribution(s.Stack, jsii.String("CDN"), props)
}

// getPriceClass maps the configured price class to the CDK value.
func (s *FabricStack) getPriceClass() awscloudfront.PriceClass {
	switch s.Config.CDN.PriceClass {
	case "200":
		return awscloudfront.PriceClass_PRICE_CLASS_200
	case "all":
		return awscloudfront.PriceClass_PRICE_CLASS_ALL
	default:
		return awscloudfront.PriceClass_PRICE_CLASS_100
	}
}

// createQueues creates the SQS queues and their dead-letter queues.
func (s *FabricStack) createQueues() {
	for _, cfg := range s.Config.Queues {
		props := &awssqs.QueueProps{
			VisibilityTimeout: awscdk.Duration_Seconds(jsii.Number(float64(cfg.VisibilityTimeoutSeconds))),
			RetentionPeriod:   awscdk.Duration_Days(jsii.Number(float64(cfg.RetentionDays))),
			RemovalPolicy:     s.removalPolicy(),
		}

		if cfg.FIFO {
			props.Fifo = jsii.Bool(true)
			props.ContentBasedDeduplication = jsii.Bool(true)
		}

		if cfg.Encrypted {
			props.Encryption = awssqs.QueueEncryption_KMS
			props.EncryptionMasterKey = s.Key
		}

		if cfg.MaxReceiveCount > 0 {
			dlq := awssqs.NewQueue(s.Stack, jsii.String(fmt.Sprintf("DLQ-%s", cfg.Name)), &awssqs.QueueProps{
				RetentionPeriod: awscdk.Duration_Days(jsii.Number(14)),
				Fifo:            props.Fifo,
				RemovalPolicy:   s.removalPolicy(),
			})
			props.DeadLetterQueue = &awssqs.DeadLetterQueue{
				Queue:           dlq,
				MaxReceiveCount: jsii.Number(float64(cfg.MaxReceiveCount)),
			}
			s.DeadLetterQueues[cfg.Name] = dlq
		}

		queue := awssqs.NewQueue(s.Stack, jsii.String(fmt.Sprintf("Queue-%s", cfg.Name)), props)
		s.Queues[cfg.Name] = queue
	}
}

// createTopics creates the SNS topics and subscribes the configured queues.
func (s *FabricStack) createTopics() {
	for _, cfg := range s.Config.Topics {
		props := &awssns.TopicProps{}
		if cfg.DisplayName != "" {
			props.DisplayName = jsii.String(cfg.DisplayName)
		}
		if cfg.FIFO {
			props.Fifo = jsii.Bool(true)
			props.TopicName = jsii.String(fmt.Sprintf("%s-%s.fifo", s.Config.StackName, cfg.Name))
		}
		if s.Key != nil {
			props.MasterKey = s.Key
		}

		topic := awssns.NewTopic(s.Stack, jsii.String(fmt.Sprintf("Topic-%s", cfg.Name)), props)

		for _, sub := range cfg.Subscriptions {
			topic.AddSubscription(awssnssubscriptions.NewSqsSubscription(
				s.Queues[sub],
				&awssnssubscriptions.SqsSubscriptionProps{
					RawMessageDelivery: jsii.Bool(true),
				},
			))
		}

		s.Topics[cfg.Name] = topic
	}
}

// createAPI creates the API Gateway REST API.
func (s *FabricStack) createAPI() {
	if s.Config.API == nil {
		return
	}

	cfg := s.Config.API

	stageOptions := &awsapigateway.StageOptions{
		StageName:            jsii.String(cfg.StageName),
		ThrottlingRateLimit:  jsii.Number(cfg.ThrottleRateLimit),
		ThrottlingBurstLimit: jsii.Number(float64(cfg.ThrottleBurstLimit)),
	}

	if cfg.EnableAccessLogs {
		logGroup := awslogs.NewLogGroup(s.Stack, jsii.String("APIAccessLogs"), &awslogs.LogGroupProps{
			LogGroupName:  jsii.String(fmt.Sprintf("/aws/apigateway/%s", s.Config.StackName)),
			Retention:     awslogs.RetentionDays_ONE_MONTH,
			RemovalPolicy: s.removalPolicy(),
		})
		stageOptions.AccessLogDestination = awsapigateway.NewLogGroupLogDestination(logGroup)
		stageOptions.LoggingLevel = awsapigateway.MethodLoggingLevel_INFO
	}

	api := awsapigateway.NewRestApi(s.Stack, jsii.String("API"), &awsapigateway.RestApiProps{
		RestApiName:   jsii.String(cfg.Name),
		Description:   jsii.String(cfg.Description),
		DeployOptions: stageOptions,
	})

	// A REST API must carry at least one method to deploy.
	api.Root().AddMethod(jsii.String("GET"), awsapigateway.NewMockIntegration(&awsapigateway.IntegrationOptions{
		RequestTemplates: &map[string]*string{
			"application/json": jsii.String(`{"statusCode": 200}`),
		},
		IntegrationResponses: &[]*awsapigateway.IntegrationResponse{{
			StatusCode: jsii.String("200"),
		}},
	}), &awsapigateway.MethodOptions{
		ApiKeyRequired: jsii.Bool(cfg.RequireAPIKey),
		MethodResponses: &[]*awsapigateway.MethodResponse{{
			StatusCode: jsii.String("200"),
		}},
	})

	if cfg.RequireAPIKey {
		plan := api.AddUsagePlan(jsii.String("UsagePlan"), &awsapigateway.UsagePlanProps{
			Name: jsii.String(fmt.Sprintf("%s-plan", cfg.Name)),
			Throttle: &awsapigateway.ThrottleSettings{
				RateLimit:  jsii.Number(cfg.ThrottleRateLimit),
				BurstLimit: jsii.Number(float64(cfg.ThrottleBurstLimit)),
			},
		})
		key := api.AddApiKey(jsii.String("APIKey"), &awsapigateway.ApiKeyOptions{})
		plan.AddApiKey(key, nil)
		plan.AddApiStage(&awsapigateway.UsagePlanPerApiStage{
			Stage: api.DeploymentStage(),
		})
	}

	s.API = api
}

// createDashboard creates the CloudWatch dashboard with one widget per
// resource family.
func (s *FabricStack) createDashboard() {
	if s.Config.Monitoring == nil || !s.Config.Monitoring.Dashboard {
		return
	}

	dashboard := awscloudwatch.NewDashboard(s.Stack, jsii.String("Dashboard"), &awscloudwatch.DashboardProps{
		DashboardName: jsii.String(s.Config.Monitoring.DashboardName),
	})

	var widgets []awscloudwatch.IWidget

	if len(s.Queues) > 0 {
		var metrics []awscloudwatch.IMetric
		for _, cfg := range s.Config.Queues {
			metrics = append(metrics, s.Queues[cfg.Name].MetricApproximateNumberOfMessagesVisible(nil))
		}
		widgets = append(widgets, awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("Queue depth"),
			Left:  &metrics,
			Width: jsii.Number(12),
		}))
	}

	if s.Distribution != nil {
		widgets = append(widgets, awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("CDN requests"),
			Left:  &[]awscloudwatch.IMetric{s.Distribution.MetricRequests(nil)},
			Width: jsii.Number(12),
		}))
	}

	if s.API != nil {
		widgets = append(widgets, awscloudwatch.NewGraphWidget(&awscloudwatch.GraphWidgetProps{
			Title: jsii.String("API latency"),
			Left:  &[]awscloudwatch.IMetric{s.API.MetricLatency(nil)},
			Width: jsii.Number(12),
		}))
	}

	if len(widgets) > 0 {
		dashboard.AddWidgets(widgets...)
	}

	s.Dashboard = dashboard
}

// addOutputs adds CloudFormation outputs.
func (s *FabricStack) addOutputs() {
	for _, cfg := range s.Config.Buckets {
		awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("Bucket-%s-Name", cfg.Name)), &awscdk.CfnOutputProps{
			Value:       s.Buckets[cfg.Name].BucketName(),
			Description: jsii.String(fmt.Sprintf("Bucket name for %s", cfg.Name)),
		})
	}

	for _, cfg := range s.Config.Queues {
		awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("Queue-%s-URL", cfg.Name)), &awscdk.CfnOutputProps{
			Value:       s.Queues[cfg.Name].QueueUrl(),
			Description: jsii.String(fmt.Sprintf("Queue URL for %s", cfg.Name)),
		})
	}

	for _, cfg := range s.Config.Topics {
		awscdk.NewCfnOutput(s.Stack, jsii.String(fmt.Sprintf("Topic-%s-ARN", cfg.Name)), &awscdk.CfnOutputProps{
			Value:       s.Topics[cfg.Name].TopicArn(),
			Description: jsii.String(fmt.Sprintf("Topic ARN for %s", cfg.Name)),
		})
	}

	if s.Distribution != nil {
		awscdk.NewCfnOutput(s.Stack, jsii.String("CDNDomainName"), &awscdk.CfnOutputProps{
			Value:       s.Distribution.DistributionDomainName(),
			Description: jsii.String("CloudFront distribution domain name"),
		})
	}

	if s.API != nil {
		awscdk.NewCfnOutput(s.Stack, jsii.String("APIEndpoint"), &awscdk.CfnOutputProps{
			Value:       s.API.Url(),
			Description: jsii.String("API Gateway endpoint URL"),
		})
	}

	if s.Key != nil {
		awscdk.NewCfnOutput(s.Stack, jsii.String("KeyARN"), &awscdk.CfnOutputProps{
			Value:       s.Key.KeyArn(),
			Description: jsii.String("KMS key ARN"),
		})
	}
}

// convertTags converts a map to CDK tags.
func convertTags(tags map[string]string) *map[string]*string {
	if tags == nil {
		return nil
	}
	result := make(map[string]*string)
	for k, v := range tags {
		result[k] = jsii.String(v)
	}
	return &result
}
