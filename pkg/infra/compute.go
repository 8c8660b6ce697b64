package infra

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/iancoleman/strcase"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/iam"
	"github.com/pulumi/pulumi-aws/sdk/v6/go/aws/lambda"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/tapstack/tapstack/pkg/envspec"
)

const lambdaAssumeRolePolicy = `{
  "Version": "2012-10-17",
  "Statement": [
    {
      "Effect": "Allow",
      "Principal": {"Service": "lambda.amazonaws.com"},
      "Action": "sts:AssumeRole"
    }
  ]
}`

type (
	ComputeArgs struct {
		Spec envspec.Compute
		Tags map[string]string

		// Wired from the network component.
		SubnetIds       pulumi.StringArrayInput
		SecurityGroupId pulumi.StringInput

		// Wired from the storage component. TableKeys lists the logical
		// table names so env vars and the policy can be built per table.
		TableKeys  []string
		TableNames pulumi.StringMapInput
		TableArns  pulumi.StringMapInput
		QueueUrl   pulumi.StringInput
		QueueArn   pulumi.StringInput
	}

	// Compute owns the Lambda functions and their execution role. Every
	// function runs in the private subnets and receives the physical
	// table names and queue URL through its environment.
	Compute struct {
		pulumi.ResourceState

		FunctionNames pulumi.StringMapOutput `pulumi:"functionNames"`
		FunctionArns  pulumi.StringMapOutput `pulumi:"functionArns"`
		InvokeArns    pulumi.StringMapOutput `pulumi:"invokeArns"`
		RoleArn       pulumi.StringOutput    `pulumi:"roleArn"`
	}
)

func NewCompute(ctx *pulumi.Context, name string, args *ComputeArgs, opts ...pulumi.ResourceOption) (*Compute, error) {
	comp := &Compute{}
	if err := ctx.RegisterComponentResource("tapstack:index:Compute", name, comp, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(comp)

	role, err := iam.NewRole(ctx, name+"-role", &iam.RoleArgs{
		AssumeRolePolicy: pulumi.String(lambdaAssumeRolePolicy),
		Tags:             resourceTags(args.Tags, name+"-role"),
	}, parent)
	if err != nil {
		return nil, err
	}

	basicExec, err := iam.NewRolePolicyAttachment(ctx, name+"-basic-exec", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/service-role/AWSLambdaBasicExecutionRole"),
	}, parent)
	if err != nil {
		return nil, err
	}
	vpcExec, err := iam.NewRolePolicyAttachment(ctx, name+"-vpc-exec", &iam.RolePolicyAttachmentArgs{
		Role:      role.Name,
		PolicyArn: pulumi.String("arn:aws:iam::aws:policy/service-role/AWSLambdaVPCAccessExecutionRole"),
	}, parent)
	if err != nil {
		return nil, err
	}

	accessPolicy, err := iam.NewRolePolicy(ctx, name+"-access", &iam.RolePolicyArgs{
		Role:   role.ID(),
		Policy: accessPolicyDocument(args.TableArns, args.QueueArn),
	}, parent)
	if err != nil {
		return nil, err
	}

	functionNames := pulumi.StringMap{}
	functionArns := pulumi.StringMap{}
	invokeArns := pulumi.StringMap{}
	for _, spec := range args.Spec.Functions {
		fn, err := newFunction(ctx, fmt.Sprintf("%s-%s", name, spec.Name), spec, args, role.Arn, parent,
			pulumi.DependsOn([]pulumi.Resource{basicExec, vpcExec, accessPolicy}))
		if err != nil {
			return nil, err
		}
		functionNames[spec.Name] = fn.Name
		functionArns[spec.Name] = fn.Arn
		invokeArns[spec.Name] = fn.InvokeArn
	}

	comp.FunctionNames = functionNames.ToStringMapOutput()
	comp.FunctionArns = functionArns.ToStringMapOutput()
	comp.InvokeArns = invokeArns.ToStringMapOutput()
	comp.RoleArn = role.Arn

	if err := ctx.RegisterResourceOutputs(comp, pulumi.Map{
		"functionNames": comp.FunctionNames,
		"functionArns":  comp.FunctionArns,
		"invokeArns":    comp.InvokeArns,
		"roleArn":       comp.RoleArn,
	}); err != nil {
		return nil, err
	}
	return comp, nil
}

func newFunction(ctx *pulumi.Context, name string, spec envspec.Function, args *ComputeArgs, roleArn pulumi.StringOutput, opts ...pulumi.ResourceOption) (*lambda.Function, error) {
	vars := pulumi.StringMap{}
	envKeys := make([]string, 0, len(spec.Environment))
	for k := range spec.Environment {
		envKeys = append(envKeys, k)
	}
	sort.Strings(envKeys)
	for _, k := range envKeys {
		vars[k] = pulumi.String(spec.Environment[k])
	}
	for _, key := range args.TableKeys {
		vars["TABLE_"+strcase.ToScreamingSnake(key)] = args.TableNames.ToStringMapOutput().MapIndex(pulumi.String(key))
	}
	// With one table the handlers read the plain TABLE_NAME var.
	if len(args.TableKeys) == 1 {
		vars["TABLE_NAME"] = args.TableNames.ToStringMapOutput().MapIndex(pulumi.String(args.TableKeys[0]))
	}
	if args.QueueUrl != nil {
		vars["QUEUE_URL"] = args.QueueUrl
	}

	fnArgs := &lambda.FunctionArgs{
		Code:       pulumi.NewFileArchive(spec.CodePath),
		Role:       roleArn,
		Handler:    pulumi.String(spec.Handler),
		Runtime:    pulumi.String(spec.Runtime),
		MemorySize: pulumi.Int(spec.MemoryMB),
		Timeout:    pulumi.Int(spec.TimeoutSec),
		Environment: &lambda.FunctionEnvironmentArgs{
			Variables: vars,
		},
		Tags: resourceTags(args.Tags, name),
	}
	if args.SubnetIds != nil && args.SecurityGroupId != nil {
		fnArgs.VpcConfig = &lambda.FunctionVpcConfigArgs{
			SubnetIds:        args.SubnetIds,
			SecurityGroupIds: pulumi.StringArray{args.SecurityGroupId},
		}
	}
	return lambda.NewFunction(ctx, name, fnArgs, opts...)
}

// accessPolicyDocument renders the least-privilege policy for the handlers:
// item reads and writes on the environment's tables, sends on its queue,
// nothing else.
func accessPolicyDocument(tableArns pulumi.StringMapInput, queueArn pulumi.StringInput) pulumi.StringOutput {
	if tableArns == nil {
		tableArns = pulumi.StringMap{}
	}
	if queueArn == nil {
		queueArn = pulumi.String("")
	}
	return pulumi.All(tableArns, queueArn).ApplyT(func(vs []any) (string, error) {
		arnsByKey := vs[0].(map[string]string)
		queue := vs[1].(string)

		type statement struct {
			Effect   string   `json:"Effect"`
			Action   []string `json:"Action"`
			Resource []string `json:"Resource"`
		}
		var statements []statement

		keys := make([]string, 0, len(arnsByKey))
		for k := range arnsByKey {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		tables := make([]string, 0, len(keys))
		for _, k := range keys {
			tables = append(tables, arnsByKey[k])
		}
		if len(tables) > 0 {
			statements = append(statements, statement{
				Effect:   "Allow",
				Action:   []string{"dynamodb:PutItem", "dynamodb:GetItem"},
				Resource: tables,
			})
		}
		if queue != "" {
			statements = append(statements, statement{
				Effect:   "Allow",
				Action:   []string{"sqs:SendMessage"},
				Resource: []string{queue},
			})
		}
		if len(statements) == 0 {
			statements = append(statements, statement{
				Effect:   "Allow",
				Action:   []string{"logs:CreateLogStream", "logs:PutLogEvents"},
				Resource: []string{"*"},
			})
		}

		doc := map[string]any{
			"Version":   "2012-10-17",
			"Statement": statements,
		}
		raw, err := json.Marshal(doc)
		if err != nil {
			return "", err
		}
		return string(raw), nil
	}).(pulumi.StringOutput)
}
