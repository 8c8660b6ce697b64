package infra

import (
	"sync"
	"testing"

	"github.com/pulumi/pulumi/sdk/v3/go/common/resource"
	"github.com/pulumi/pulumi/sdk/v3/go/pulumi"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tapstack/tapstack/pkg/envspec"
)

type mocks struct{}

func (mocks) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	out := args.Inputs.Mappable()
	out["arn"] = "arn:aws:mock:us-east-1:000000000000:" + args.Name
	if _, ok := out["name"]; !ok {
		out["name"] = args.Name
	}
	switch args.TypeToken {
	case "aws:s3/bucket:Bucket":
		out["bucket"] = args.Name
	case "aws:sqs/queue:Queue":
		out["url"] = "https://sqs.mock/" + args.Name
	case "aws:lambda/function:Function":
		out["invokeArn"] = "arn:aws:apigateway:us-east-1:lambda:path/" + args.Name
	case "aws:apigatewayv2/api:Api":
		out["executionArn"] = "arn:aws:execute-api:us-east-1:000000000000:" + args.Name
		out["apiEndpoint"] = "https://" + args.Name + ".execute-api.mock"
	case "aws:apigatewayv2/stage:Stage":
		out["invokeUrl"] = "https://" + args.Name + ".execute-api.mock/test"
	}
	return args.Name + "_id", resource.NewPropertyMapFromMap(out), nil
}

func (mocks) Call(args pulumi.MockCallArgs) (resource.PropertyMap, error) {
	return args.Args, nil
}

// integrationRecorder captures the payload format of every gateway
// integration so tests can hold the API to the event shape the handlers
// parse.
type integrationRecorder struct {
	mocks

	mu      sync.Mutex
	formats []string
}

func (r *integrationRecorder) NewResource(args pulumi.MockResourceArgs) (string, resource.PropertyMap, error) {
	if args.TypeToken == "aws:apigatewayv2/integration:Integration" {
		if v, ok := args.Inputs["payloadFormatVersion"]; ok {
			r.mu.Lock()
			r.formats = append(r.formats, v.StringValue())
			r.mu.Unlock()
		}
	}
	return r.mocks.NewResource(args)
}

func testEnv() *envspec.Environment {
	env := &envspec.Environment{
		AppName: "orders",
		Stage:   "test",
		Region:  "us-east-1",
		Tags:    map[string]string{"Team": "platform"},
		Network: envspec.Network{
			CidrBlock:          "10.0.0.0/16",
			PublicIngressPorts: []int{443},
		},
		Storage: envspec.Storage{
			Buckets: []envspec.Bucket{{Name: "artifacts", Versioned: true}},
			Tables:  []envspec.Table{{Name: "items", HashKey: "id"}},
			Queue:   &envspec.Queue{Name: "events"},
		},
		Compute: envspec.Compute{
			Functions: []envspec.Function{
				{Name: "items", CodePath: "testdata/handler.zip"},
				{Name: "enqueue", CodePath: "testdata/handler.zip"},
			},
		},
		Api: envspec.Api{
			Routes: []envspec.Route{
				{Method: "POST", Path: "/items", Function: "items"},
				{Method: "GET", Path: "/items/{id}", Function: "items"},
				{Method: "POST", Path: "/events", Function: "enqueue"},
			},
		},
	}
	env.ApplyDefaults()
	return env
}

// awaitT resolves an output inside a RunErr callback and hands the value to
// the assertion before the program finishes.
func awaitT(wg *sync.WaitGroup, out pulumi.Output, fn func(v any)) {
	wg.Add(1)
	out.ApplyT(func(v any) any {
		defer wg.Done()
		fn(v)
		return v
	})
}

func TestBuildPlan(t *testing.T) {
	t.Run("full environment", func(t *testing.T) {
		assert := assert.New(t)
		plan, err := BuildPlan(testEnv())
		require.NoError(t, err)

		order, err := plan.DeployOrder()
		require.NoError(t, err)
		assert.Equal([]string{StackNetwork, StackStorage, StackCompute, StackApi, StackMonitoring}, order)

		deps, err := plan.Dependencies(StackCompute)
		require.NoError(t, err)
		assert.Equal([]string{StackNetwork, StackStorage}, deps)
	})

	t.Run("network only", func(t *testing.T) {
		assert := assert.New(t)
		env := &envspec.Environment{
			AppName: "bare",
			Stage:   "test",
			Network: envspec.Network{CidrBlock: "10.0.0.0/16"},
		}
		env.ApplyDefaults()

		plan, err := BuildPlan(env)
		require.NoError(t, err)
		order, err := plan.DeployOrder()
		require.NoError(t, err)
		assert.Equal([]string{StackNetwork}, order)
		assert.Empty(plan.Bindings())
	})

	t.Run("routes without functions get no api stack", func(t *testing.T) {
		assert := assert.New(t)
		env := &envspec.Environment{
			AppName: "routes-only",
			Stage:   "test",
			Network: envspec.Network{CidrBlock: "10.0.0.0/16"},
			Api: envspec.Api{
				Routes: []envspec.Route{{Method: "GET", Path: "/health", Function: "missing"}},
			},
		}
		env.ApplyDefaults()

		plan, err := BuildPlan(env)
		require.NoError(t, err)
		order, err := plan.DeployOrder()
		require.NoError(t, err)
		assert.Equal([]string{StackNetwork}, order)
	})
}

func TestNewNetwork(t *testing.T) {
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		env := testEnv()
		network, err := NewNetwork(ctx, "orders-test", &NetworkArgs{
			Spec:    env.Network,
			AzNames: []string{"us-east-1a", "us-east-1b"},
			Tags:    baseTags(env),
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		awaitT(&wg, network.VpcId, func(v any) {
			assert.NotEmpty(t, v.(string))
		})
		awaitT(&wg, network.PublicSubnetIds, func(v any) {
			assert.Len(t, v.([]string), 2)
		})
		awaitT(&wg, network.PrivateSubnetIds, func(v any) {
			assert.Len(t, v.([]string), 2)
		})
		awaitT(&wg, network.SecurityGroupId, func(v any) {
			assert.NotEmpty(t, v.(string))
		})
		wg.Wait()
		return nil
	}, pulumi.WithMocks("orders", "test", mocks{}))
	assert.NoError(t, err)
}

func TestNewNetworkCapsAtMaxAZs(t *testing.T) {
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		network, err := NewNetwork(ctx, "capped", &NetworkArgs{
			Spec: envspec.Network{
				CidrBlock:  "10.0.0.0/16",
				SubnetBits: 24,
				MaxAZs:     2,
			},
			AzNames: []string{"us-east-1a", "us-east-1b", "us-east-1c"},
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		awaitT(&wg, network.PublicSubnetIds, func(v any) {
			assert.Len(t, v.([]string), 2)
		})
		wg.Wait()
		return nil
	}, pulumi.WithMocks("orders", "test", mocks{}))
	assert.NoError(t, err)
}

func TestNewNetworkNoZones(t *testing.T) {
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		_, err := NewNetwork(ctx, "nozones", &NetworkArgs{
			Spec: envspec.Network{CidrBlock: "10.0.0.0/16", SubnetBits: 24},
		})
		assert.Error(t, err)
		return nil
	}, pulumi.WithMocks("orders", "test", mocks{}))
	assert.NoError(t, err)
}

func TestNewStorage(t *testing.T) {
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		env := testEnv()
		storage, err := NewStorage(ctx, "orders-test", &StorageArgs{
			Spec: env.Storage,
			Tags: baseTags(env),
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		awaitT(&wg, storage.TableNames, func(v any) {
			names := v.(map[string]string)
			assert.Contains(t, names, "items")
			assert.NotEmpty(t, names["items"])
		})
		awaitT(&wg, storage.BucketNames, func(v any) {
			names := v.(map[string]string)
			assert.Contains(t, names, "artifacts")
		})
		awaitT(&wg, storage.QueueUrl, func(v any) {
			assert.NotEmpty(t, v.(string))
		})
		wg.Wait()
		return nil
	}, pulumi.WithMocks("orders", "test", mocks{}))
	assert.NoError(t, err)
}

func TestNewStorageWithoutQueue(t *testing.T) {
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		storage, err := NewStorage(ctx, "noqueue", &StorageArgs{
			Spec: envspec.Storage{
				Tables: []envspec.Table{{Name: "items", HashKey: "id", BillingMode: envspec.BillingPayPerRequest}},
			},
		})
		require.NoError(t, err)

		var wg sync.WaitGroup
		awaitT(&wg, storage.QueueUrl, func(v any) {
			assert.Empty(t, v.(string))
		})
		wg.Wait()
		return nil
	}, pulumi.WithMocks("orders", "test", mocks{}))
	assert.NoError(t, err)
}

// The handlers read the v1 proxy event (httpMethod, path, body), so every
// integration must ask the gateway for 1.0 events.
func TestNewApiDeliversProxyEvents(t *testing.T) {
	recorder := &integrationRecorder{}
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		env := testEnv()
		_, err := NewTapStack(ctx, "orders-test", &TapStackArgs{
			Env:     env,
			AzNames: []string{"us-east-1a", "us-east-1b"},
		})
		return err
	}, pulumi.WithMocks("orders", "test", recorder))
	require.NoError(t, err)

	require.NotEmpty(t, recorder.formats)
	for _, format := range recorder.formats {
		assert.Equal(t, "1.0", format)
	}
}

func TestNewTapStack(t *testing.T) {
	err := pulumi.RunErr(func(ctx *pulumi.Context) error {
		env := testEnv()
		stack, err := NewTapStack(ctx, "orders-test", &TapStackArgs{
			Env:     env,
			AzNames: []string{"us-east-1a", "us-east-1b"},
		})
		require.NoError(t, err)

		require.NotNil(t, stack.Network)
		require.NotNil(t, stack.Storage)
		require.NotNil(t, stack.Compute)
		require.NotNil(t, stack.Monitoring)
		require.NotNil(t, stack.Api)

		var wg sync.WaitGroup
		awaitT(&wg, stack.Compute.FunctionNames, func(v any) {
			names := v.(map[string]string)
			assert.Len(t, names, 2)
			assert.Contains(t, names, "items")
			assert.Contains(t, names, "enqueue")
		})
		awaitT(&wg, stack.Api.ApiEndpoint, func(v any) {
			assert.NotEmpty(t, v.(string))
		})
		awaitT(&wg, stack.Monitoring.TopicArn, func(v any) {
			assert.NotEmpty(t, v.(string))
		})
		wg.Wait()
		return nil
	}, pulumi.WithMocks("orders", "test", mocks{}))
	assert.NoError(t, err)
}
