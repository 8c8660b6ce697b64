package infra

import (
	"fmt"

	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/cloudwatch"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/sns"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/tapstack/tapstack/pkg/envspec"
)

type (
	MonitoringArgs struct {
		Spec envspec.Monitoring
		Tags map[string]string

		// Wired from the compute component.
		FunctionKeys  []string
		FunctionNames pulumi.StringMapInput
	}

	// Monitoring owns the observability side: a log group with the
	// configured retention per function, an error alarm per function, and
	// the SNS topic the alarms notify.
	Monitoring struct {
		pulumi.ResourceState

		TopicArn      pulumi.StringOutput    `pulumi:"topicArn"`
		AlarmNames    pulumi.StringMapOutput `pulumi:"alarmNames"`
		LogGroupNames pulumi.StringMapOutput `pulumi:"logGroupNames"`
	}
)

func NewMonitoring(ctx *pulumi.Context, name string, args *MonitoringArgs, opts ...pulumi.ResourceOption) (*Monitoring, error) {
	comp := &Monitoring{}
	if err := ctx.RegisterComponentResource("tapstack:index:Monitoring", name, comp, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(comp)

	topic, err := sns.NewTopic(ctx, name+"-alarms", &sns.TopicArgs{
		Tags: resourceTags(args.Tags, name+"-alarms"),
	}, parent)
	if err != nil {
		return nil, err
	}
	if args.Spec.AlarmEmail != "" {
		if _, err := sns.NewTopicSubscription(ctx, name+"-alarm-email", &sns.TopicSubscriptionArgs{
			Topic:    topic.Arn,
			Protocol: pulumi.String("email"),
			Endpoint: pulumi.String(args.Spec.AlarmEmail),
		}, parent); err != nil {
			return nil, err
		}
	}

	functionNames := pulumi.StringMap{}.ToStringMapOutput()
	if args.FunctionNames != nil {
		functionNames = args.FunctionNames.ToStringMapOutput()
	}

	alarmNames := pulumi.StringMap{}
	logGroupNames := pulumi.StringMap{}
	for _, key := range args.FunctionKeys {
		fnName := functionNames.MapIndex(pulumi.String(key))

		logGroup, err := cloudwatch.NewLogGroup(ctx, fmt.Sprintf("%s-%s-logs", name, key), &cloudwatch.LogGroupArgs{
			Name:            pulumi.Sprintf("/aws/lambda/%s", fnName),
			RetentionInDays: pulumi.Int(args.Spec.LogRetentionDays),
			Tags:            resourceTags(args.Tags, fmt.Sprintf("%s-%s-logs", name, key)),
		}, parent)
		if err != nil {
			return nil, err
		}
		logGroupNames[key] = logGroup.Name

		alarm, err := cloudwatch.NewMetricAlarm(ctx, fmt.Sprintf("%s-%s-errors", name, key), &cloudwatch.MetricAlarmArgs{
			ComparisonOperator: pulumi.String("GreaterThanOrEqualToThreshold"),
			EvaluationPeriods:  pulumi.Int(1),
			MetricName:         pulumi.String("Errors"),
			Namespace:          pulumi.String("AWS/Lambda"),
			Period:             pulumi.Int(300),
			Statistic:          pulumi.String("Sum"),
			Threshold:          pulumi.Float64(args.Spec.ErrorThreshold),
			TreatMissingData:   pulumi.String("notBreaching"),
			AlarmDescription:   pulumi.Sprintf("errors reported by %s", fnName),
			Dimensions: pulumi.StringMap{
				"FunctionName": fnName,
			},
			AlarmActions: pulumi.Array{topic.Arn},
			Tags:         resourceTags(args.Tags, fmt.Sprintf("%s-%s-errors", name, key)),
		}, parent)
		if err != nil {
			return nil, err
		}
		alarmNames[key] = alarm.Name
	}

	comp.TopicArn = topic.Arn
	comp.AlarmNames = alarmNames.ToStringMapOutput()
	comp.LogGroupNames = logGroupNames.ToStringMapOutput()

	if err := ctx.RegisterResourceOutputs(comp, pulumi.Map{
		"topicArn":      comp.TopicArn,
		"alarmNames":    comp.AlarmNames,
		"logGroupNames": comp.LogGroupNames,
	}); err != nil {
		return nil, err
	}
	return comp, nil
}
