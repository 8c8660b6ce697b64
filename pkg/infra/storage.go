package infra

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/dynamodb"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/s3"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/sqs"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/tapstack/tapstack/pkg/envspec"
)

type (
	StorageArgs struct {
		Spec envspec.Storage
		Tags map[string]string
	}

	// Storage owns the data plane: S3 buckets, DynamoDB tables, and the
	// work queue with its dead-letter companion. Name maps are keyed by the
	// logical name from the environment file so downstream checks can find
	// the physical resource.
	Storage struct {
		pulumi.ResourceState

		BucketNames pulumi.StringMapOutput `pulumi:"bucketNames"`
		BucketArns  pulumi.StringMapOutput `pulumi:"bucketArns"`
		TableNames  pulumi.StringMapOutput `pulumi:"tableNames"`
		TableArns   pulumi.StringMapOutput `pulumi:"tableArns"`
		QueueUrl    pulumi.StringOutput    `pulumi:"queueUrl"`
		QueueArn    pulumi.StringOutput    `pulumi:"queueArn"`
	}
)

func NewStorage(ctx *pulumi.Context, name string, args *StorageArgs, opts ...pulumi.ResourceOption) (*Storage, error) {
	comp := &Storage{}
	if err := ctx.RegisterComponentResource("tapstack:index:Storage", name, comp, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(comp)

	bucketNames := pulumi.StringMap{}
	bucketArns := pulumi.StringMap{}
	for _, spec := range args.Spec.Buckets {
		bucket, err := newBucket(ctx, fmt.Sprintf("%s-%s", name, spec.Name), spec, args.Tags, parent)
		if err != nil {
			return nil, err
		}
		bucketNames[spec.Name] = bucket.Bucket
		bucketArns[spec.Name] = bucket.Arn
	}

	tableNames := pulumi.StringMap{}
	tableArns := pulumi.StringMap{}
	for _, spec := range args.Spec.Tables {
		table, err := newTable(ctx, fmt.Sprintf("%s-%s", name, spec.Name), spec, args.Tags, parent)
		if err != nil {
			return nil, err
		}
		tableNames[spec.Name] = table.Name
		tableArns[spec.Name] = table.Arn
	}

	comp.BucketNames = bucketNames.ToStringMapOutput()
	comp.BucketArns = bucketArns.ToStringMapOutput()
	comp.TableNames = tableNames.ToStringMapOutput()
	comp.TableArns = tableArns.ToStringMapOutput()

	if args.Spec.Queue != nil {
		queue, err := newQueue(ctx, name, *args.Spec.Queue, args.Tags, parent)
		if err != nil {
			return nil, err
		}
		comp.QueueUrl = queue.Url
		comp.QueueArn = queue.Arn
	} else {
		comp.QueueUrl = pulumi.String("").ToStringOutput()
		comp.QueueArn = pulumi.String("").ToStringOutput()
	}

	if err := ctx.RegisterResourceOutputs(comp, pulumi.Map{
		"bucketNames": comp.BucketNames,
		"bucketArns":  comp.BucketArns,
		"tableNames":  comp.TableNames,
		"tableArns":   comp.TableArns,
		"queueUrl":    comp.QueueUrl,
		"queueArn":    comp.QueueArn,
	}); err != nil {
		return nil, err
	}
	return comp, nil
}

func newBucket(ctx *pulumi.Context, name string, spec envspec.Bucket, tags map[string]string, parent pulumi.ResourceOption) (*s3.Bucket, error) {
	bucketArgs := &s3.BucketArgs{
		Tags: resourceTags(tags, name),
	}
	if spec.Versioned {
		bucketArgs.Versioning = &s3.BucketVersioningArgs{
			Enabled: pulumi.Bool(true),
		}
	}
	if spec.ExpirationDays > 0 {
		bucketArgs.LifecycleRules = s3.BucketLifecycleRuleArray{
			s3.BucketLifecycleRuleArgs{
				Id:      pulumi.String("expire-objects"),
				Enabled: pulumi.Bool(true),
				Expiration: &s3.BucketLifecycleRuleExpirationArgs{
					Days: pulumi.Int(spec.ExpirationDays),
				},
			},
		}
	}
	bucket, err := s3.NewBucket(ctx, name, bucketArgs, parent)
	if err != nil {
		return nil, err
	}
	// No bucket is reachable from the internet, versioned or not.
	if _, err := s3.NewBucketPublicAccessBlock(ctx, name+"-pab", &s3.BucketPublicAccessBlockArgs{
		Bucket:                bucket.ID(),
		BlockPublicAcls:       pulumi.Bool(true),
		BlockPublicPolicy:     pulumi.Bool(true),
		IgnorePublicAcls:      pulumi.Bool(true),
		RestrictPublicBuckets: pulumi.Bool(true),
	}, parent); err != nil {
		return nil, err
	}
	return bucket, nil
}

func newTable(ctx *pulumi.Context, name string, spec envspec.Table, tags map[string]string, parent pulumi.ResourceOption) (*dynamodb.Table, error) {
	attrs := dynamodb.TableAttributeArray{}
	seen := map[string]bool{}
	addAttr := func(key string) {
		if key == "" || seen[key] {
			return
		}
		seen[key] = true
		attrs = append(attrs, dynamodb.TableAttributeArgs{
			Name: pulumi.String(key),
			Type: pulumi.String("S"),
		})
	}
	addAttr(spec.HashKey)
	addAttr(spec.RangeKey)
	for _, gsi := range spec.GlobalIndexes {
		addAttr(gsi.HashKey)
		addAttr(gsi.RangeKey)
	}

	tableArgs := &dynamodb.TableArgs{
		Attributes:  attrs,
		HashKey:     pulumi.String(spec.HashKey),
		BillingMode: pulumi.String(spec.BillingMode),
		Tags:        resourceTags(tags, name),
	}
	if spec.RangeKey != "" {
		tableArgs.RangeKey = pulumi.String(spec.RangeKey)
	}
	if spec.BillingMode == envspec.BillingProvisioned {
		tableArgs.ReadCapacity = pulumi.IntPtr(spec.ReadCapacity)
		tableArgs.WriteCapacity = pulumi.IntPtr(spec.WriteCapacity)
	}
	if spec.TtlAttribute != "" {
		tableArgs.Ttl = &dynamodb.TableTtlArgs{
			AttributeName: pulumi.String(spec.TtlAttribute),
			Enabled:       pulumi.Bool(true),
		}
	}
	if len(spec.GlobalIndexes) > 0 {
		gsis := dynamodb.TableGlobalSecondaryIndexArray{}
		for _, gsi := range spec.GlobalIndexes {
			projection := gsi.Projection
			if projection == "" {
				projection = "ALL"
			}
			gsiArgs := dynamodb.TableGlobalSecondaryIndexArgs{
				Name:           pulumi.String(gsi.Name),
				HashKey:        pulumi.String(gsi.HashKey),
				ProjectionType: pulumi.String(projection),
			}
			if gsi.RangeKey != "" {
				gsiArgs.RangeKey = pulumi.String(gsi.RangeKey)
			}
			if spec.BillingMode == envspec.BillingProvisioned {
				gsiArgs.ReadCapacity = pulumi.IntPtr(spec.ReadCapacity)
				gsiArgs.WriteCapacity = pulumi.IntPtr(spec.WriteCapacity)
			}
			gsis = append(gsis, gsiArgs)
		}
		tableArgs.GlobalSecondaryIndexes = gsis
	}

	return dynamodb.NewTable(ctx, name, tableArgs, parent)
}

func newQueue(ctx *pulumi.Context, name string, spec envspec.Queue, tags map[string]string, parent pulumi.ResourceOption) (*sqs.Queue, error) {
	dlq, err := sqs.NewQueue(ctx, fmt.Sprintf("%s-%s-dlq", name, spec.Name), &sqs.QueueArgs{
		MessageRetentionSeconds: pulumi.Int(14 * 24 * 3600),
		Tags:                    resourceTags(tags, fmt.Sprintf("%s-%s-dlq", name, spec.Name)),
	}, parent)
	if err != nil {
		return nil, err
	}
	return sqs.NewQueue(ctx, fmt.Sprintf("%s-%s", name, spec.Name), &sqs.QueueArgs{
		VisibilityTimeoutSeconds: pulumi.Int(spec.VisibilityTimeoutSec),
		RedrivePolicy: pulumi.Sprintf(
			`{"deadLetterTargetArn":%q,"maxReceiveCount":%d}`,
			dlq.Arn, spec.MaxReceiveCount,
		),
		Tags: resourceTags(tags, fmt.Sprintf("%s-%s", name, spec.Name)),
	}, parent)
}
