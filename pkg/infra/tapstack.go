package infra

import (
	"fmt"

	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"

	"github.com/tapstack/tapstack/pkg/envspec"
	"github.com/tapstack/tapstack/pkg/stackgraph"
)

// Child stack names as they appear in the deploy plan and in export keys.
const (
	StackNetwork    = "network"
	StackStorage    = "storage"
	StackCompute    = "compute"
	StackMonitoring = "monitoring"
	StackApi        = "api"
)

type (
	TapStackArgs struct {
		Env *envspec.Environment

		// AzNames are the availability zones subnets spread across, looked
		// up by the program so components stay deterministic under test.
		AzNames []string
	}

	// TapStack is the top-level component: it derives the deploy plan from
	// the environment, instantiates each child stack in plan order, and
	// wires producer outputs into consumer inputs.
	TapStack struct {
		pulumi.ResourceState

		Network    *Network
		Storage    *Storage
		Compute    *Compute
		Monitoring *Monitoring
		Api        *Api

		Plan *stackgraph.Plan
	}
)

// BuildPlan derives the stack graph for an environment: which child stacks
// exist and which outputs feed which inputs. The same plan backs both the
// deployment and the `tapstack plan` command.
func BuildPlan(env *envspec.Environment) (*stackgraph.Plan, error) {
	plan := stackgraph.NewPlan()

	if err := plan.AddStack(StackNetwork); err != nil {
		return nil, err
	}
	hasStorage := len(env.Storage.Buckets) > 0 || len(env.Storage.Tables) > 0 || env.Storage.Queue != nil
	hasCompute := len(env.Compute.Functions) > 0
	hasApi := hasCompute && len(env.Api.Routes) > 0

	if hasStorage {
		if err := plan.AddStack(StackStorage); err != nil {
			return nil, err
		}
	}
	if hasCompute {
		if err := plan.AddStack(StackCompute); err != nil {
			return nil, err
		}
		if err := plan.AddStack(StackMonitoring); err != nil {
			return nil, err
		}
	}
	if hasApi {
		if err := plan.AddStack(StackApi); err != nil {
			return nil, err
		}
	}

	if hasCompute {
		type binding struct {
			consumer, input string
			source          stackgraph.OutputKey
		}
		bindings := []binding{
			{StackCompute, "subnetIds", stackgraph.OutputKey{Stack: StackNetwork, Name: "privateSubnetIds"}},
			{StackCompute, "securityGroupId", stackgraph.OutputKey{Stack: StackNetwork, Name: "securityGroupId"}},
			{StackMonitoring, "functionNames", stackgraph.OutputKey{Stack: StackCompute, Name: "functionNames"}},
		}
		if hasStorage {
			bindings = append(bindings,
				binding{StackCompute, "tableNames", stackgraph.OutputKey{Stack: StackStorage, Name: "tableNames"}},
				binding{StackCompute, "tableArns", stackgraph.OutputKey{Stack: StackStorage, Name: "tableArns"}},
			)
			if env.Storage.Queue != nil {
				bindings = append(bindings,
					binding{StackCompute, "queueUrl", stackgraph.OutputKey{Stack: StackStorage, Name: "queueUrl"}},
					binding{StackCompute, "queueArn", stackgraph.OutputKey{Stack: StackStorage, Name: "queueArn"}},
				)
			}
		}
		if hasApi {
			bindings = append(bindings,
				binding{StackApi, "functionNames", stackgraph.OutputKey{Stack: StackCompute, Name: "functionNames"}},
				binding{StackApi, "invokeArns", stackgraph.OutputKey{Stack: StackCompute, Name: "invokeArns"}},
			)
		}
		for _, b := range bindings {
			if err := plan.Bind(b.consumer, b.input, b.source); err != nil {
				return nil, err
			}
		}
	}

	return plan, nil
}

func NewTapStack(ctx *pulumi.Context, name string, args *TapStackArgs, opts ...pulumi.ResourceOption) (*TapStack, error) {
	env := args.Env

	plan, err := BuildPlan(env)
	if err != nil {
		return nil, err
	}
	order, err := plan.DeployOrder()
	if err != nil {
		return nil, err
	}

	comp := &TapStack{Plan: plan}
	if err := ctx.RegisterComponentResource("tapstack:index:TapStack", name, comp, opts...); err != nil {
		return nil, err
	}
	parent := pulumi.Parent(comp)

	tags := baseTags(env)

	for _, stack := range order {
		switch stack {
		case StackNetwork:
			comp.Network, err = NewNetwork(ctx, name+"-network", &NetworkArgs{
				Spec:    env.Network,
				AzNames: args.AzNames,
				Tags:    tags,
			}, parent)
		case StackStorage:
			comp.Storage, err = NewStorage(ctx, name+"-storage", &StorageArgs{
				Spec: env.Storage,
				Tags: tags,
			}, parent)
		case StackCompute:
			computeArgs := &ComputeArgs{
				Spec:            env.Compute,
				Tags:            tags,
				SubnetIds:       comp.Network.PrivateSubnetIds,
				SecurityGroupId: comp.Network.SecurityGroupId,
			}
			if comp.Storage != nil {
				computeArgs.TableKeys = tableKeys(env)
				computeArgs.TableNames = comp.Storage.TableNames
				computeArgs.TableArns = comp.Storage.TableArns
				if env.Storage.Queue != nil {
					computeArgs.QueueUrl = comp.Storage.QueueUrl
					computeArgs.QueueArn = comp.Storage.QueueArn
				}
			}
			comp.Compute, err = NewCompute(ctx, name+"-compute", computeArgs, parent)
		case StackMonitoring:
			comp.Monitoring, err = NewMonitoring(ctx, name+"-monitoring", &MonitoringArgs{
				Spec:          env.Monitoring,
				Tags:          tags,
				FunctionKeys:  env.FunctionNames(),
				FunctionNames: comp.Compute.FunctionNames,
			}, parent)
		case StackApi:
			comp.Api, err = NewApi(ctx, name+"-api", &ApiArgs{
				Spec:          env.Api,
				Tags:          tags,
				FunctionNames: comp.Compute.FunctionNames,
				InvokeArns:    comp.Compute.InvokeArns,
			}, parent)
		default:
			err = fmt.Errorf("plan names unknown stack %q", stack)
		}
		if err != nil {
			return nil, err
		}
	}

	comp.export(ctx)

	if err := ctx.RegisterResourceOutputs(comp, pulumi.Map{}); err != nil {
		return nil, err
	}
	return comp, nil
}

// export publishes every child output under the names the post-deploy checks
// read back from `pulumi stack output --json`.
func (t *TapStack) export(ctx *pulumi.Context) {
	ctx.Export("VpcId", t.Network.VpcId)
	ctx.Export("PublicSubnetIds", t.Network.PublicSubnetIds)
	ctx.Export("PrivateSubnetIds", t.Network.PrivateSubnetIds)
	ctx.Export("SecurityGroupId", t.Network.SecurityGroupId)

	if t.Storage != nil {
		ctx.Export("BucketNames", t.Storage.BucketNames)
		ctx.Export("BucketArns", t.Storage.BucketArns)
		ctx.Export("TableNames", t.Storage.TableNames)
		ctx.Export("TableArns", t.Storage.TableArns)
		ctx.Export("QueueUrl", t.Storage.QueueUrl)
		ctx.Export("QueueArn", t.Storage.QueueArn)
	}
	if t.Compute != nil {
		ctx.Export("FunctionNames", t.Compute.FunctionNames)
		ctx.Export("FunctionArns", t.Compute.FunctionArns)
		ctx.Export("RoleArn", t.Compute.RoleArn)
	}
	if t.Monitoring != nil {
		ctx.Export("TopicArn", t.Monitoring.TopicArn)
		ctx.Export("AlarmNames", t.Monitoring.AlarmNames)
		ctx.Export("LogGroupNames", t.Monitoring.LogGroupNames)
	}
	if t.Api != nil {
		ctx.Export("ApiId", t.Api.ApiId)
		ctx.Export("ApiEndpoint", t.Api.ApiEndpoint)
	}
}

// baseTags are stamped on every taggable resource in every child stack.
func baseTags(env *envspec.Environment) map[string]string {
	tags := map[string]string{
		"Application": env.AppName,
		"Stage":       env.Stage,
	}
	for k, v := range env.Tags {
		tags[k] = v
	}
	return tags
}

func tableKeys(env *envspec.Environment) []string {
	keys := make([]string, 0, len(env.Storage.Tables))
	for _, t := range env.Storage.Tables {
		keys = append(keys, t.Name)
	}
	return keys
}
